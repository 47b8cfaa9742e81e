// Command extractpipeline drives a PDF's pages through the extraction
// pipeline and writes the aggregate result as JSON to an output directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hkshon115/semanticarranger/internal/cache"
	"github.com/hkshon115/semanticarranger/internal/chunk"
	"github.com/hkshon115/semanticarranger/internal/dispatch"
	"github.com/hkshon115/semanticarranger/internal/extractor"
	"github.com/hkshon115/semanticarranger/internal/llm"
	"github.com/hkshon115/semanticarranger/internal/model"
	"github.com/hkshon115/semanticarranger/internal/modelconfig"
	"github.com/hkshon115/semanticarranger/internal/orchestrator"
	"github.com/hkshon115/semanticarranger/internal/ratelimit"
	"github.com/hkshon115/semanticarranger/internal/refine"
	"github.com/hkshon115/semanticarranger/internal/render"
	"github.com/hkshon115/semanticarranger/internal/retry"
	"github.com/hkshon115/semanticarranger/internal/router"
	"github.com/hkshon115/semanticarranger/internal/strategy"
	"github.com/hkshon115/semanticarranger/internal/summary"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		outputDir   string
		configPath  string
		concurrency int
		rateLimit   int
		pages       int
		verbose     bool
		cacheDir    string
		cacheStrict bool
	)
	flag.StringVar(&outputDir, "output_dir", "out", "Directory to write the run's result.json into")
	flag.StringVar(&configPath, "config", "models.yaml", "Path to the model registry YAML file")
	flag.IntVar(&concurrency, "concurrency", 4, "Maximum pages processed concurrently")
	flag.IntVar(&rateLimit, "rate-limit", 60, "LLM calls allowed per minute")
	flag.IntVar(&pages, "pages", 1, "Number of placeholder pages to synthesize (no real PDF rasterizer is wired in)")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.StringVar(&cacheDir, "cache.dir", "", "Optional directory to cache LLM responses in across runs; empty disables caching")
	flag.BoolVar(&cacheStrict, "cache.strict-perms", false, "Restrict the cache directory to 0700 and cache files to 0600")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: extractpipeline <pdf_path> --output_dir <dir> [--config models.yaml] [--concurrency N] [--rate-limit N] [--pages N]")
		os.Exit(1)
	}
	pdfPath := flag.Arg(0)
	if _, err := os.Stat(pdfPath); err != nil {
		log.Error().Err(err).Str("path", pdfPath).Msg("input path unreadable")
		os.Exit(1)
	}

	reg, err := modelconfig.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("model config validation failed")
		os.Exit(1)
	}

	cfg := model.DefaultPipelineConfig()
	cfg.ConcurrencyLimit = concurrency
	cfg.RateLimitPerMinute = rateLimit

	orch := buildOrchestrator(reg, cfg, pages, cacheDir, cacheStrict)
	if orch.Router.Dispatcher.Cache != nil {
		if entries, bytes, err := orch.Router.Dispatcher.Cache.Stats(); err != nil {
			log.Warn().Err(err).Msg("failed to read cache stats")
		} else {
			log.Info().Int("entries", entries).Int64("bytes", bytes).Msg("cache warm start")
		}
	}

	ctx := context.Background()
	result := orch.ProcessDocument(ctx, pdfPath)

	if err := writeResult(outputDir, result); err != nil {
		log.Error().Err(err).Msg("failed to write result")
		os.Exit(1)
	}

	log.Info().
		Str("run", result.RunID).
		Int("pages", len(result.Pages)).
		Int("errors", len(result.Errors)).
		Msg("run complete")

	if len(result.Errors) > 0 {
		os.Exit(2)
	}
	os.Exit(0)
}

func buildOrchestrator(reg *modelconfig.Registry, cfg model.PipelineConfig, placeholderPages int, cacheDir string, cacheStrictPerms bool) *orchestrator.Orchestrator {
	apiKey := os.Getenv("LLM_API_KEY")
	baseURL := os.Getenv("LLM_BASE_URL")
	client := llm.NewOpenAIClient(apiKey, baseURL)

	limiter := ratelimit.New(cfg.RateLimitPerMinute)
	registry := dispatch.NewMapRegistry(reg.Models)
	retryOpts := retry.Options{MaxAttempts: cfg.RetryMaxAttempts, InitialDelay: cfg.RetryInitialDelay}

	d := &dispatch.Dispatcher{Client: client, Limiter: limiter, Registry: registry, Retry: retryOpts}
	if cacheDir != "" {
		d.Cache = &cache.LLMCache{Dir: cacheDir, StrictPerms: cacheStrictPerms}
	}

	return &orchestrator.Orchestrator{
		Renderer:  render.PlaceholderRenderer{PageCount: placeholderPages},
		Router:    &router.Router{Dispatcher: d, DefaultModel: reg.Defaults.Router},
		Extractor: &extractor.Extractor{Dispatcher: d, Registry: strategy.NewRegistry(), DefaultModel: reg.Defaults.Extraction},
		Refiner:   &refine.Analyzer{Dispatcher: d, DefaultModel: reg.Defaults.Extraction, Config: cfg},
		Summary:   &summary.Generator{Dispatcher: d, DefaultModel: reg.Defaults.Summarizer},
		ChunkOpts: chunk.DefaultOptions(),
		Config:    cfg,
	}
}

func writeResult(outputDir string, result orchestrator.Result) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	path := filepath.Join(outputDir, "result.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
