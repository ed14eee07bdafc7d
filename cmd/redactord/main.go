// Command redactord runs the redaction HTTP service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Xaisr/redactor"
	"github.com/Xaisr/redactor/analyzer"
	"github.com/Xaisr/redactor/internal/config"
	"github.com/Xaisr/redactor/internal/otel"
	"github.com/Xaisr/redactor/internal/server"
	"github.com/Xaisr/redactor/store"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "redactord",
		Short:         "Reversible text redaction service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("redactord failed")
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the redactord version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the redaction HTTP service",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	otelShutdown, err := otel.Setup("redactord", version, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	opts := []redactor.Option{
		redactor.WithFuzzyLevel(cfg.FuzzyLevel),
	}
	if cfg.PatternFile != "" {
		opts = append(opts, redactor.WithPatternFile(cfg.PatternFile))
	}
	if len(cfg.EntityTypes) > 0 {
		opts = append(opts, redactor.WithEntityTypes(cfg.EntityTypes...))
	}
	if cfg.AnalyzerURL != "" {
		opts = append(opts, redactor.WithDetector(analyzer.New(cfg.AnalyzerURL)))
		log.Info().Str("analyzer_url", cfg.AnalyzerURL).Msg("using remote analyzer")
	}

	red, err := redactor.New(opts...)
	if err != nil {
		return fmt.Errorf("building redactor: %w", err)
	}

	sessions, err := store.New(cfg.SessionDBPath())
	if err != nil {
		return fmt.Errorf("opening session store: %w", err)
	}
	defer sessions.Close()

	srv := server.New(red,
		server.WithSessionStore(sessions),
		server.WithVersion(version),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", version).Msg("redactord listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
