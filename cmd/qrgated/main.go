package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qrgate/qrgate"
	audithook "github.com/qrgate/qrgate/audit_hook"
	"github.com/qrgate/qrgate/httpapi"
	"github.com/qrgate/qrgate/idp"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/render"
	"github.com/qrgate/qrgate/store"
	"github.com/qrgate/qrgate/store/memory"
	mongostore "github.com/qrgate/qrgate/store/mongo"
	postgresstore "github.com/qrgate/qrgate/store/postgres"
	sqlitestore "github.com/qrgate/qrgate/store/sqlite"
)

func main() {
	cfg := Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	renderer, err := render.NewClient(render.ClientConfig{BaseURL: cfg.RenderBaseURL, Logger: logger})
	if err != nil {
		logger.Error("failed to build renderer", "error", err)
		os.Exit(1)
	}

	provider, err := idp.NewClient(idp.ClientConfig{BaseURL: cfg.IdentityURL, Logger: logger})
	if err != nil {
		logger.Error("failed to build identity provider client", "error", err)
		os.Exit(1)
	}

	promos := promo.NewRegistry()
	for _, code := range cfg.PromoCodes {
		promos.Add(code)
	}

	gate := qrgate.New(st,
		qrgate.WithLogger(logger),
		qrgate.WithRenderer(renderer),
		qrgate.WithIdentityProvider(provider),
		qrgate.WithPromoRegistry(promos),
		qrgate.WithSessionTTL(cfg.SessionTTL),
		qrgate.WithPlugin(auditTrail(logger)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gate.Start(ctx); err != nil {
		logger.Error("failed to start gate", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(gate, logger, cfg.ClientIPHeader),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("qrgated listening",
		"addr", cfg.HTTPAddr,
		"store", cfg.StoreDriver,
		"version", httpapi.Version,
	)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	// Stop closes the store.
	if err := gate.Stop(); err != nil {
		logger.Error("gate stop error", "error", err)
	}
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil
	case "mongo":
		return mongostore.Connect(cfg.MongoURI, cfg.MongoDatabase)
	case "postgres":
		return postgresstore.New(cfg.PostgresDSN)
	case "sqlite":
		return sqlitestore.New(cfg.SQLiteDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// auditTrail writes gate audit events to the structured log.
func auditTrail(logger *slog.Logger) *audithook.Extension {
	auditLog := logger.With("component", "audit")
	return audithook.New(audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
		auditLog.Info(evt.Action,
			"resource", evt.Resource,
			"resource_id", evt.ResourceID,
			"category", evt.Category,
			"outcome", evt.Outcome,
			"severity", evt.Severity,
			"metadata", evt.Metadata,
		)
		return nil
	}), audithook.WithLogger(logger))
}
