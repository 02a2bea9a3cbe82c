package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepsearch/config"
	"github.com/mohammad-safakhou/deepsearch/internal/deepsearch"
	srv "github.com/mohammad-safakhou/deepsearch/internal/server"
	"github.com/mohammad-safakhou/deepsearch/internal/telemetry"
	ollamaprovider "github.com/mohammad-safakhou/deepsearch/provider/ollama"
	"github.com/mohammad-safakhou/deepsearch/tools/web_search"
)

func main() {
	var cfgPath string
	var root = &cobra.Command{Use: "deepsearch"}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path")

	var model string
	var numResults int
	var auto bool
	var schemaArg string
	var verbose bool
	var search = &cobra.Command{
		Use:   "search <question>",
		Short: "Answer a question from live web search results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if !verbose {
				log.SetOutput(io.Discard)
			}

			schema, err := loadSchema(schemaArg)
			if err != nil {
				return err
			}
			if numResults != 0 && (numResults < 1 || numResults > 10) {
				return fmt.Errorf("--num-results must be in [1,10]")
			}

			searcher, err := web_search.NewWebSearcher(cfg.Search)
			if err != nil {
				return err
			}
			llm := ollamaprovider.New(cfg.LLM)
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			orch := deepsearch.NewOrchestrator(cfg, searcher, llm, tele)

			res := orch.DeepSearch(context.Background(), args[0], deepsearch.Options{
				Model:       model,
				ResultCount: numResults,
				AutoPlan:    auto,
				Schema:      schema,
			})
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	search.Flags().StringVar(&model, "model", "", "override the configured model")
	search.Flags().IntVarP(&numResults, "num-results", "k", 0, "results per search query (1-10)")
	search.Flags().BoolVar(&auto, "auto", false, "let the model plan sub-queries")
	search.Flags().StringVar(&schemaArg, "schema", "", "JSON schema for the answer (inline or @file)")
	search.Flags().BoolVarP(&verbose, "verbose", "v", false, "show pipeline logs")

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Run(cfg)
		},
	}

	root.AddCommand(search, serve)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSchema accepts an inline JSON document or an @-prefixed file
// path and validates it before the pipeline runs.
func loadSchema(arg string) (json.RawMessage, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}
	raw := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("reading schema file: %w", err)
		}
		raw = data
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("schema is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func printResult(w io.Writer, res deepsearch.Result) {
	fmt.Fprintln(w, "ANSWER")
	fmt.Fprintln(w, strings.TrimSpace(res.Answer))
	if len(res.Plan) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SEARCH PLAN")
		for i, step := range res.Plan {
			fmt.Fprintf(w, "%d. %s (results: %d", i+1, step.Query, step.NumResults)
			if len(step.Keywords) > 0 {
				fmt.Fprintf(w, ", keywords: %s", strings.Join(step.Keywords, ", "))
			}
			fmt.Fprintln(w, ")")
		}
	}
	if len(res.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SOURCES")
		for _, s := range res.Sources {
			if s.Title != "" {
				fmt.Fprintf(w, "- %s (%s)\n", s.Title, s.URL)
			} else {
				fmt.Fprintf(w, "- %s\n", s.URL)
			}
		}
	}
	fmt.Fprintf(w, "\nTook %v\n", res.Elapsed.Round(time.Millisecond))
}
