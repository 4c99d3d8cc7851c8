package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/transport/rest"
	"github.com/frahmantamala/payroll-admin/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var (
	openAPIPath string

	httpServerCmd = &cobra.Command{
		Use:   "server",
		Short: "Start HTTP server",
		Long:  `Start the HTTP server to handle API requests`,
		Run: func(cmd *cobra.Command, args []string) {
			startHTTPServer()
		},
	}
)

func init() {
	httpServerCmd.Flags().StringVar(&openAPIPath, "openapi", "./api/openapi.yml", "path of the published OpenAPI document")
}

func startHTTPServer() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	app, err := newApplication(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := app.db.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to access database pool: %v\n", err)
		os.Exit(1)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, sqlDB, app.handlers(), rest.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPIPath:    openAPIPath,
		HealthChecks:   app.healthChecks(),
	}, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
			_ = app.Close()
			os.Exit(1)
		}
	}

	if err := app.Close(); err != nil {
		log.Error("dependency close error", "error", err)
	}
	log.Info("server stopped")
}
