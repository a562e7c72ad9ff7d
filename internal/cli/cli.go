// Package cli defines the eventagent command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oaklog/eventagent/internal/config"
	"github.com/oaklog/eventagent/internal/content"
	"github.com/oaklog/eventagent/internal/llm"
	"github.com/oaklog/eventagent/internal/metrics"
	"github.com/oaklog/eventagent/internal/pagesource"
	"github.com/oaklog/eventagent/internal/pipeline"
	"github.com/oaklog/eventagent/internal/prompt"
	"github.com/oaklog/eventagent/internal/validate"
)

var (
	flagConfig  string
	flagVerbose bool
	flagSource  string
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventagent",
		Short: "Extract structured event data from web pages and images",
		Long: `eventagent turns event web pages and poster images into structured
records using a language model, reconciled against any schema.org
markup the page carries and validated for plausibility.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flagVerbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config (default: environment variables)")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newExtractCmd(), newImageCmd())
	return cmd
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <url>",
		Short: "Scrape a web page and extract its event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := buildOrchestrator()
			if err != nil {
				return err
			}
			resp := o.ScrapeEvent(cmd.Context(), args[0])
			return emit(resp)
		},
	}
}

func newImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Extract an event from a poster or flyer image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			o, err := buildOrchestrator()
			if err != nil {
				return err
			}
			resp := o.AnalyzeImage(cmd.Context(), image, flagSource)
			return emit(resp)
		},
	}
	cmd.Flags().StringVar(&flagSource, "source", "", "Where the image came from, recorded in the extraction notes")
	return cmd
}

func loadConfig() (config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	return config.FromEnv()
}

func buildOrchestrator() (*pipeline.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	zone, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	prompts := prompt.Builder{Location: zone, TimezoneName: cfg.Timezone}

	extractor, err := llm.NewExtractor(llm.Options{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		EndpointURL: cfg.LLM.EndpointURL,
		Prompts:     prompts,
	})
	if err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, err
	}

	return &pipeline.Orchestrator{
		Source: &pagesource.Client{
			HTTPClient:  &http.Client{},
			UserAgent:   cfg.Fetch.UserAgent,
			MaxAttempts: cfg.Fetch.MaxAttempts,
			Timeout:     time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		},
		Extractor:  extractor,
		Normalizer: content.Normalizer{},
		Validator:  validate.Policy{DefaultZone: zone},
		Metrics:    collector,
	}, nil
}

// emit prints the response envelope as JSON. A failed run exits nonzero but
// the envelope still goes to stdout, so callers can script against it.
func emit(resp pipeline.Response) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.Success {
		log.Error().Str("error", resp.Error).Msg("run failed")
		return errExtraction
	}
	return nil
}

// errExtraction signals a failed run without duplicating the envelope's error
// text on stderr.
var errExtraction = fmt.Errorf("extraction unsuccessful")
