// Package main provides the entry point for the paper search service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/cache"
	"github.com/helixir/paper-search-service/internal/config"
	"github.com/helixir/paper-search-service/internal/dispatch"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/observability"
	"github.com/helixir/paper-search-service/internal/ratelimit"
	"github.com/helixir/paper-search-service/internal/server"
	"github.com/helixir/paper-search-service/internal/sources"
	"github.com/helixir/paper-search-service/internal/sources/arxiv"
	"github.com/helixir/paper-search-service/internal/sources/biorxiv"
	"github.com/helixir/paper-search-service/internal/sources/crossref"
	"github.com/helixir/paper-search-service/internal/sources/openalex"
	"github.com/helixir/paper-search-service/internal/sources/pubmed"
	"github.com/helixir/paper-search-service/internal/sources/semanticscholar"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-search-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Register enabled source adapters.
	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("build source registry: %w", err)
	}
	if registry.IsEmpty() {
		return errors.New("no sources enabled")
	}
	logger.Info().Strs("sources", registry.IDs()).Msg("sources registered")

	// Rate limiting, cache, metrics, and the dispatch engine.
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:     cfg.RateLimits.DefaultRPS,
		DefaultBurst:   cfg.RateLimits.DefaultBurst,
		MaxConcurrent:  cfg.RateLimits.MaxConcurrent,
		AcquireTimeout: cfg.RateLimits.AcquireTimeout,
		SourceRPS:      cfg.RateLimits.SourceRPS,
	})

	store := cache.New(cache.Config{
		Enabled:   cfg.Cache.Enabled,
		Directory: cfg.Cache.Directory,
		MaxSizeMB: cfg.Cache.MaxSizeMB,
	}, logger)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("paper_search")
	}

	engine := dispatch.NewEngine(registry, limiter, store, metrics, logger, dispatch.Config{
		SearchTTL:       cfg.Cache.SearchTTL,
		CitationTTL:     cfg.Cache.CitationTTL,
		AuthorThreshold: cfg.Dedup.AuthorThreshold,
	})

	// HTTP server.
	serverCfg := server.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if cfg.Metrics.Enabled {
		serverCfg.MetricsPath = cfg.Metrics.Path
	}
	srv := server.NewServer(serverCfg, engine, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	logger.Info().Str("address", serverCfg.Address).Msg("paper-search-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-search-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("paper-search-service shutdown complete")
	return nil
}

// buildRegistry constructs the source registry from the enabled sources.
func buildRegistry(cfg *config.Config, logger zerolog.Logger) (*sources.Registry, error) {
	registry := sources.NewRegistry()

	register := func(name string, src sources.Source, err error) error {
		if err != nil {
			return fmt.Errorf("create %s source: %w", name, err)
		}
		if err := registry.Register(src); err != nil {
			return fmt.Errorf("register %s source: %w", name, err)
		}
		logger.Debug().Str("source", src.ID()).Str("capabilities", src.Capabilities().String()).Msg("source enabled")
		return nil
	}

	if c := cfg.Sources.ArXiv; c.Enabled {
		src, err := arxiv.New(arxiv.Config{
			BaseURL:    c.BaseURL,
			PDFBaseURL: c.PDFBaseURL,
			Timeout:    c.Timeout,
			MaxResults: c.MaxResults,
			MaxPDFSize: c.MaxPDFSize,
			ProxyURL:   c.ProxyURL,
		})
		if err := register("arxiv", src, err); err != nil {
			return nil, err
		}
	}

	if c := cfg.Sources.PubMed; c.Enabled {
		src, err := pubmed.New(pubmed.Config{
			BaseURL:    c.BaseURL,
			APIKey:     c.APIKey,
			Timeout:    c.Timeout,
			MaxResults: c.MaxResults,
			ProxyURL:   c.ProxyURL,
		})
		if err := register("pubmed", src, err); err != nil {
			return nil, err
		}
	}

	if c := cfg.Sources.BioRxiv; c.Enabled {
		sourceType := domain.SourceTypeBioRxiv
		if c.Server == "medRxiv" || c.Server == "medrxiv" {
			sourceType = domain.SourceTypeMedRxiv
		}
		src, err := biorxiv.New(biorxiv.Config{
			BaseURL:    c.BaseURL,
			Server:     c.Server,
			SourceType: sourceType,
			Timeout:    c.Timeout,
			MaxResults: c.MaxResults,
			ProxyURL:   c.ProxyURL,
		})
		if err := register("biorxiv", src, err); err != nil {
			return nil, err
		}
	}

	if c := cfg.Sources.SemanticScholar; c.Enabled {
		src, err := semanticscholar.New(semanticscholar.Config{
			BaseURL:    c.BaseURL,
			APIKey:     c.APIKey,
			Timeout:    c.Timeout,
			MaxResults: c.MaxResults,
			ProxyURL:   c.ProxyURL,
		})
		if err := register("semantic_scholar", src, err); err != nil {
			return nil, err
		}
	}

	if c := cfg.Sources.OpenAlex; c.Enabled {
		src, err := openalex.New(openalex.Config{
			BaseURL:    c.BaseURL,
			Email:      c.Email,
			Timeout:    c.Timeout,
			MaxResults: c.MaxResults,
			ProxyURL:   c.ProxyURL,
		})
		if err := register("openalex", src, err); err != nil {
			return nil, err
		}
	}

	if c := cfg.Sources.CrossRef; c.Enabled {
		src, err := crossref.New(crossref.Config{
			BaseURL:    c.BaseURL,
			Email:      c.Email,
			Timeout:    c.Timeout,
			MaxResults: c.MaxResults,
			ProxyURL:   c.ProxyURL,
		})
		if err := register("crossref", src, err); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
