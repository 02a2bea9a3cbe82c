// Package ollama implements provider.Provider against an Ollama-style
// model serving endpoint with generate and chat APIs.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/provider"
)

const maxErrorBody = 300

// Client talks to a single Ollama-compatible endpoint. Transport
// failures are retried with exponential backoff plus jitter; any other
// failure is retried after a flat second. The last error is returned
// once retries are exhausted.
type Client struct {
	baseURL     string
	temperature float64
	maxRetries  int
	client      *http.Client
	logger      *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a client from LLM configuration.
func New(cfg config.LLMConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 3
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		maxRetries:  retries,
		client:      &http.Client{Timeout: timeout},
		logger:      log.New(log.Writer(), "[OLLAMA] ", log.LstdFlags),
		sleep:       sleepCtx,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generate calls the chat endpoint when a schema format is supplied and
// the generate endpoint otherwise.
func (c *Client) Generate(ctx context.Context, req provider.Request) (string, error) {
	isSchema := len(req.Format) > 0

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	var url string
	body := map[string]interface{}{
		"model":   req.Model,
		"stream":  false,
		"options": map[string]interface{}{"temperature": temperature},
	}
	if isSchema {
		url = c.baseURL + "/api/chat"
		var messages []chatMessage
		if req.System != "" {
			messages = append(messages, chatMessage{Role: "system", Content: req.System})
		}
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
		body["messages"] = messages
		body["format"] = req.Format
	} else {
		url = c.baseURL + "/api/generate"
		body["prompt"] = req.Prompt
		if req.System != "" {
			body["system"] = req.System
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		answer, err := c.post(ctx, url, payload, req.Model, isSchema)
		if err == nil {
			return answer, nil
		}
		lastErr = err
		if attempt == c.maxRetries-1 {
			break
		}

		var delay time.Duration
		if _, transport := err.(*transportError); transport {
			delay = time.Duration((math.Pow(2, float64(attempt)) + rand.Float64()) * float64(time.Second))
			c.logger.Printf("request failed (%v), retrying in %s", err, delay.Round(100*time.Millisecond))
		} else {
			delay = time.Second
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// transportError marks connection-level failures, which back off
// exponentially rather than with the flat retry delay.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) post(ctx context.Context, url string, payload []byte, model string, isSchema bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &transportError{fmt.Errorf("cannot reach %s: %w", url, err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transportError{fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("model %q: %w", model, provider.ErrModelNotFound)
		}
		return "", fmt.Errorf("ollama HTTP %d: %s", resp.StatusCode, truncate(string(raw), maxErrorBody))
	}

	var data struct {
		Error    string          `json:"error"`
		Response *string         `json:"response"`
		Message  json.RawMessage `json:"message"`
		Choices  []struct {
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("non-JSON response from ollama: %s", truncate(string(raw), maxErrorBody))
	}
	if data.Error != "" {
		return "", fmt.Errorf("ollama error: %s", data.Error)
	}

	if isSchema {
		return decodeChatContent(data.Message)
	}
	if data.Response != nil {
		return strings.TrimSpace(*data.Response), nil
	}
	if len(data.Choices) > 0 {
		return strings.TrimSpace(data.Choices[0].Text), nil
	}
	return "", fmt.Errorf("unexpected ollama response structure")
}

// decodeChatContent extracts message.content, which may arrive either
// as a string or, with constrained decoding, as a JSON value. Both are
// returned as a string; JSON values keep their encoded form.
func decodeChatContent(message json.RawMessage) (string, error) {
	if len(message) == 0 {
		return "", fmt.Errorf("unexpected ollama response structure")
	}
	var msg struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(message, &msg); err != nil || len(msg.Content) == 0 {
		return "", fmt.Errorf("unexpected ollama response structure")
	}
	var s string
	if err := json.Unmarshal(msg.Content, &s); err == nil {
		return s, nil
	}
	return string(msg.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
