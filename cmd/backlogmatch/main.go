package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/backlog-match/config"
	"github.com/aluiziolira/backlog-match/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	backend     string
	maxPages    int
	outputDir   string
	format      string
	mode        string
	metricsAddr string
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCMD(&rootOptions{}).ExecuteContext(ctx); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func newRootCMD(opts *rootOptions) *cobra.Command {
	defaults := config.DefaultConfig()

	root := &cobra.Command{
		Use:           "backlogmatch",
		Short:         "Compare two backloggd game catalogues",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(opts.verbose))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.backend, "backend", defaults.Backend, "page source: http or browser")
	flags.IntVar(&opts.maxPages, "max-pages", defaults.MaxPages, "safety cap on pages per profile")
	flags.StringVar(&opts.outputDir, "output-dir", defaults.OutputDir, "directory for saved catalogues")
	flags.StringVar(&opts.format, "format", defaults.OutputFormat, "output format: csv, json, or dual")
	flags.StringVar(&opts.mode, "mode", defaults.ScoreMode, "score mode: bonus or split")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(compareCMD(opts), fetchCMD(opts), scoreCMD(opts))
	return root
}

// loadConfig layers the persistent flags the user actually set over
// config.Load (defaults, file, env).
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = strings.ToLower(opts.backend)
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages = opts.maxPages
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(opts.format)
	}
	if flags.Changed("mode") {
		cfg.ScoreMode = strings.ToLower(opts.mode)
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serveMetrics exposes m on cfg.MetricsAddr until the returned func is called.
func serveMetrics(cfg *config.Config, m *scraper.Metrics) func() {
	if cfg.MetricsAddr == "" || m == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	// Logs go to stderr so the summary on stdout stays clean.
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
