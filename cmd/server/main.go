// Command server runs the DocFusion document query server.
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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/docfusion/docfusion/cmd/server/config"
	"github.com/docfusion/docfusion/cmd/server/middleware"
	"github.com/docfusion/docfusion/pkg/cache"
	"github.com/docfusion/docfusion/pkg/engine"
	"github.com/docfusion/docfusion/pkg/handlers"
	"github.com/docfusion/docfusion/pkg/infrastructure/metrics"
	"github.com/docfusion/docfusion/pkg/infrastructure/pool"
	"github.com/docfusion/docfusion/pkg/repositories/postgres"
	"github.com/docfusion/docfusion/pkg/scan"
	"github.com/docfusion/docfusion/pkg/services"
)

var version = "dev"

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "docfusion",
		Short: "JSON document query server on PostgreSQL",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
	serve.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("docfusion", version)
		},
	}

	root.AddCommand(serve, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("service", "docfusion").Logger()
}

func runServer(cfg *config.Config) error {
	logger := newLogger(cfg.Logging)
	logger.Info().Str("version", version).Str("addr", cfg.Address()).Msg("starting server")

	var collector metrics.Collector = metrics.NewNoOpCollector()
	var prom *metrics.PrometheusCollector
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusCollector(cfg.Metrics.Namespace)
		collector = prom
	}

	connPool, err := pool.New(cfg.Database, logger, collector)
	if err != nil {
		return err
	}
	defer connPool.Close()

	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ensureSchema(bootCtx, connPool); err != nil {
		return fmt.Errorf("schema bootstrap: %w", err)
	}

	queryCache, err := cache.New(cfg.Cache, logger)
	if err != nil {
		return err
	}

	executor := scan.NewExecutor(connPool, cfg.Server.ScanBatchSize, collector, logger)
	queryEngine := engine.New(executor, logger)
	repo := postgres.New(connPool, logger)

	queryService := services.NewQueryService(queryEngine, queryCache, collector, logger)
	documentService := services.NewDocumentService(repo, queryCache, collector, logger)

	routerCfg := handlers.RouterConfig{
		Query:     handlers.NewQueryHandler(queryService, logger),
		Documents: handlers.NewDocumentHandler(documentService, logger),
		Health:    handlers.NewHealthHandler(connPool, queryCache, logger),
		Middleware: []gin.HandlerFunc{
			middleware.RequestLogging(logger),
			middleware.Metrics(collector),
		},
	}
	if prom != nil {
		routerCfg.Metrics = prom.Handler()
	}
	if cfg.Auth.Enabled {
		routerCfg.Auth = middleware.Auth(middleware.AuthConfig{
			APIKey:    cfg.Auth.APIKey,
			JWTSecret: cfg.Auth.JWTSecret,
		})
	}

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handlers.NewRouter(routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// ensureSchema creates the documents table and its GIN index so containment
// predicates use the inverted index.
func ensureSchema(ctx context.Context, p *pool.ConnectionPool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS documents_doc_gin ON documents USING GIN (doc)`,
	}
	return p.Retry(ctx, func(ctx context.Context) error {
		for _, stmt := range statements {
			if _, err := p.DB().ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
