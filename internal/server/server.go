package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/internal/deepsearch"
	"github.com/mohammad-safakhou/deepsearch/internal/telemetry"
	ollamaprovider "github.com/mohammad-safakhou/deepsearch/provider/ollama"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search"
)

// searchRequest is the POST /api/search body.
type searchRequest struct {
	Question   string          `json:"question"`
	Model      string          `json:"model,omitempty"`
	NumResults int             `json:"num_results,omitempty"`
	Auto       bool            `json:"auto,omitempty"`
	Schema     json.RawMessage `json:"schema,omitempty"`
}

// searchResponse mirrors a run result on the wire.
type searchResponse struct {
	ID        string                `json:"id"`
	Answer    string                `json:"answer"`
	Sources   []sourceEntry         `json:"sources"`
	Plan      []deepsearch.PlanStep `json:"plan,omitempty"`
	ElapsedMS int64                 `json:"elapsed_ms"`
}

type sourceEntry struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// New builds the echo instance with all routes registered.
func New(orch *deepsearch.Orchestrator) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/search", handleSearch(orch))
	return e
}

// Run wires the pipeline from configuration and serves until the
// listener fails.
func Run(cfg *config.Config) error {
	searcher, err := web_search.NewWebSearcher(cfg.Search)
	if err != nil {
		return fmt.Errorf("building searcher: %w", err)
	}
	llm := ollamaprovider.New(cfg.LLM)
	tele := telemetry.NewTelemetry(cfg.Telemetry)
	orch := deepsearch.NewOrchestrator(cfg, searcher, llm, tele)

	e := New(orch)
	return e.Start(cfg.Server.Address)
}

func handleSearch(orch *deepsearch.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req searchRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		req.Question = strings.TrimSpace(req.Question)
		if req.Question == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "question is required")
		}
		if req.NumResults < 0 || req.NumResults > 10 {
			return echo.NewHTTPError(http.StatusBadRequest, "num_results must be in [1,10]")
		}

		res := orch.DeepSearch(c.Request().Context(), req.Question, deepsearch.Options{
			Model:       req.Model,
			ResultCount: req.NumResults,
			AutoPlan:    req.Auto,
			Schema:      req.Schema,
		})

		sources := make([]sourceEntry, 0, len(res.Sources))
		for _, s := range res.Sources {
			sources = append(sources, sourceEntry{Title: s.Title, URL: s.URL, Snippet: s.Snippet})
		}
		return c.JSON(http.StatusOK, searchResponse{
			ID:        res.ID,
			Answer:    res.Answer,
			Sources:   sources,
			Plan:      res.Plan,
			ElapsedMS: res.Elapsed.Milliseconds(),
		})
	}
}
