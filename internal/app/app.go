package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"authbroker-go/internal/auth"
	"authbroker-go/internal/config"
	"authbroker-go/internal/oidc"
	"authbroker-go/internal/storage"
	"authbroker-go/internal/sweeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Application holds all the major components of the service.
type Application struct {
	Config        *config.Config
	Logger        *log.Logger
	Store         *storage.SQLiteStorage
	Broker        *auth.Broker
	Sweeper       *sweeper.Sweeper
	HTTPServer    *http.Server
	MetricsServer *http.Server
}

// New creates and initializes a new Application instance.
func New(cfg *config.Config) (*Application, error) {
	logger := log.New(os.Stdout, "authbroker: ", log.LstdFlags)

	// Setup: Database
	dbCfg := storage.DefaultConfig()
	dbCfg.Path = cfg.DBPath
	store, err := storage.OpenDatabase(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Setup: Session code store (access tokens encrypted at rest)
	codes, err := storage.NewSessionCodes(store, []byte(cfg.EncryptionKey))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create session code store: %w", err)
	}

	// Setup: Broker
	broker, err := auth.NewBroker(auth.BrokerConfig{
		Issuer:        cfg.Auth.Issuer,
		ClientID:      cfg.Auth.ClientID,
		ClientSecret:  cfg.Auth.ClientSecret,
		Scopes:        cfg.Auth.Scopes,
		Verifications: store,
		Codes:         codes,
		Discovery:     oidc.NewResolver(cfg.HTTPTimeout.Duration),
		Exchanger:     oidc.NewExchanger(cfg.HTTPTimeout.Duration),
		Logger:        logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create broker: %w", err)
	}

	// Setup: Background sweeper
	sweep := sweeper.New(store, cfg.Sweeper.Interval.Duration, cfg.Sweeper.Retention.Duration, logger)

	// Setup: HTTP server for metrics
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metricsMux,
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		Store:         store,
		Broker:        broker,
		Sweeper:       sweep,
		MetricsServer: metricsServer,
	}

	// Setup: Main HTTP server
	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/auth/login", app.handleLogin)
	httpMux.HandleFunc("/auth/callback", app.handleCallback)
	httpMux.HandleFunc("/auth/token", app.handleToken)
	httpMux.HandleFunc("/healthz", app.handleHealth)

	app.HTTPServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: app.withRequestLogging(httpMux),
	}

	return app, nil
}

// Start begins the application's services.
func (a *Application) Start(ctx context.Context) error {
	a.Logger.Println("Starting application services...")

	a.Sweeper.Start()
	a.Logger.Println("Sweeper started.")

	go func() {
		a.Logger.Printf("Starting metrics server on %s", a.MetricsServer.Addr)
		if err := a.MetricsServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatalf("Metrics server ListenAndServe: %v", err)
		}
	}()

	go func() {
		a.Logger.Printf("Starting HTTP server on %s", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != http.ErrServerClosed {
			a.Logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the application's services.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Println("Stopping application services...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Printf("HTTP server shutdown error: %v", err)
	}

	if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Printf("Metrics server shutdown error: %v", err)
	}

	a.Sweeper.Stop()
	a.Logger.Println("Sweeper stopped.")

	if err := a.Store.Close(); err != nil {
		a.Logger.Printf("Error closing database: %v", err)
	}

	a.Logger.Println("Application stopped gracefully.")
	return nil
}
