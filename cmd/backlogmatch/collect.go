package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/backlog-match/config"
	"github.com/aluiziolira/backlog-match/models"
	"github.com/aluiziolira/backlog-match/parser"
	"github.com/aluiziolira/backlog-match/pipeline"
	"github.com/aluiziolira/backlog-match/scraper"
	"golang.org/x/sync/errgroup"
)

type profile struct {
	username string
	url      string
}

type collection struct {
	profile    profile
	result     *models.CollectResult
	outputs    []string
	incomplete bool
}

func resolveProfiles(cfg *config.Config, inputs ...string) ([]profile, error) {
	profiles := make([]profile, 0, len(inputs))
	for _, input := range inputs {
		username, profileURL, err := parser.ResolveProfile(input, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", input, err)
		}
		profiles = append(profiles, profile{username: username, url: profileURL})
	}
	return profiles, nil
}

// openSources builds one page source per profile. Profiles on the same site
// share one circuit breaker. The browser backend shares a single session;
// the returned cleanup closes it.
func openSources(cfg *config.Config, profiles []profile) ([]scraper.PageSource, func(), error) {
	sources := make([]scraper.PageSource, 0, len(profiles))
	breakers := make(map[string]*scraper.Breaker)
	guard := func(p profile, source scraper.PageSource) scraper.PageSource {
		site := siteKey(p.url)
		breaker, ok := breakers[site]
		if !ok {
			breaker = scraper.NewBreaker(site, cfg)
			breakers[site] = breaker
		}
		return breaker.Wrap(source)
	}

	if cfg.Backend == "browser" {
		session, err := scraper.NewBrowserSession(cfg)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range profiles {
			sources = append(sources, guard(p, session.Source(p.url)))
		}
		cleanup := func() {
			if err := session.Close(); err != nil {
				slog.Error("close browser session", slog.Any("error", err))
			}
		}
		return sources, cleanup, nil
	}

	for _, p := range profiles {
		source, err := scraper.NewHTTPSource(p.url, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("http source for %s: %w", p.username, err)
		}
		sources = append(sources, guard(p, source))
	}
	return sources, func() {}, nil
}

// siteKey folds a profile URL to its host without a leading www.
func siteKey(profileURL string) string {
	u, err := url.Parse(profileURL)
	if err != nil || u.Host == "" {
		return profileURL
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// collectAll collects every profile, concurrently when asked. Results keep
// the order of profiles.
func collectAll(ctx context.Context, cfg *config.Config, profiles []profile, sources []scraper.PageSource, metrics *scraper.Metrics, concurrent bool) ([]*collection, error) {
	collections := make([]*collection, len(profiles))

	if !concurrent {
		for i, p := range profiles {
			c, err := collectProfile(ctx, cfg, p, sources[i], metrics)
			collections[i] = c
			if err != nil {
				return collections, err
			}
		}
		return collections, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range profiles {
		i, p := i, p
		g.Go(func() error {
			c, err := collectProfile(gctx, cfg, p, sources[i], metrics)
			collections[i] = c
			return err
		})
	}
	return collections, g.Wait()
}

// collectProfile runs one collection and streams its pages to disk.
func collectProfile(ctx context.Context, cfg *config.Config, p profile, source scraper.PageSource, metrics *scraper.Metrics) (*collection, error) {
	writer, outputs, err := createWriter(cfg.OutputFormat, cfg.OutputDir, p.username)
	if err != nil {
		return nil, fmt.Errorf("create writer for %s: %w", p.username, err)
	}

	pl := pipeline.NewPipeline(ctx, writer, cfg)
	pl.Start()
	if cfg.Verbose {
		pl.StartMetricsReporting(10 * time.Second)
	}

	slog.Info("collecting catalogue",
		slog.String("profile", p.username),
		slog.String("url", p.url),
		slog.String("backend", cfg.Backend),
		slog.Int("max_pages", cfg.MaxPages),
	)

	collector := scraper.NewCollector(source, cfg,
		scraper.WithMetrics(metrics),
		scraper.WithLabel(p.username),
		scraper.WithPageSink(func(_ int, records []models.Record) error {
			return pl.Process(records...)
		}),
	)
	result, collectErr := collector.Collect(ctx)
	pipelineErr := pl.Close()
	closeErr := writer.Close()

	c := &collection{profile: p, result: result, outputs: outputs, incomplete: !result.Complete()}
	if collectErr != nil && !errors.Is(collectErr, scraper.ErrSafetyCapExceeded) {
		return c, fmt.Errorf("collect %s: %w", p.username, collectErr)
	}
	if pipelineErr != nil {
		return c, fmt.Errorf("save %s: %w", p.username, pipelineErr)
	}
	if closeErr != nil {
		return c, fmt.Errorf("close output for %s: %w", p.username, closeErr)
	}
	if err := writer.Validate(); err != nil {
		return c, fmt.Errorf("output validation for %s: %w", p.username, err)
	}

	slog.Info("catalogue saved",
		slog.String("profile", p.username),
		slog.Int("records", len(result.Catalogue)),
		slog.String("stop", string(result.Stop)),
		slog.Any("outputs", outputs),
	)
	return c, nil
}

func createWriter(format, dir, username string) (pipeline.OutputWriter, []string, error) {
	switch format {
	case "json":
		path := pipeline.CatalogueFile(dir, username, "jsonl")
		w, err := pipeline.NewJSONWriter(path)
		return w, []string{path}, err
	case "csv":
		path := pipeline.CatalogueFile(dir, username, "csv")
		w, err := pipeline.NewCSVWriter(path)
		return w, []string{path}, err
	case "dual":
		csvPath := pipeline.CatalogueFile(dir, username, "csv")
		jsonPath := pipeline.CatalogueFile(dir, username, "jsonl")
		w, err := pipeline.NewDualWriter(csvPath, jsonPath)
		return w, []string{csvPath, jsonPath}, err
	default:
		return nil, nil, fmt.Errorf("unsupported format: %s", format)
	}
}
