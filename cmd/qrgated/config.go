package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/qrgate/qrgate/render"
	"github.com/qrgate/qrgate/session"
)

// defaultIdentityURL is the identity provider's base URL; the client
// appends /session-data for the exchange call.
const defaultIdentityURL = "https://demobackend.emergentagent.com/auth/v1/env/oauth"

type Config struct {
	HTTPAddr    string
	StoreDriver string // memory | mongo | sqlite | postgres

	MongoURI      string
	MongoDatabase string
	SQLiteDSN     string
	PostgresDSN   string

	RenderBaseURL string
	IdentityURL   string

	// ClientIPHeader names the trusted header carrying the original client
	// address behind a proxy. Empty means trust the transport peer address.
	ClientIPHeader string

	SessionTTL time.Duration

	// PromoCodes are extra founder codes accepted beside the default.
	PromoCodes []string
}

func Load() Config {
	cfg := Config{
		HTTPAddr:       getEnv("QRGATE_HTTP_ADDR", ":8080"),
		StoreDriver:    getEnv("QRGATE_STORE", "memory"),
		MongoURI:       getEnv("QRGATE_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("QRGATE_MONGO_DB", "qrgate"),
		SQLiteDSN:      getEnv("QRGATE_SQLITE_DSN", "file:qrgate.db?cache=shared&mode=rwc"),
		PostgresDSN:    getEnv("QRGATE_POSTGRES_DSN", "postgres://localhost:5432/qrgate?sslmode=disable"),
		RenderBaseURL:  getEnv("QRGATE_RENDER_URL", render.DefaultBaseURL),
		IdentityURL:    getEnv("QRGATE_IDP_URL", defaultIdentityURL),
		ClientIPHeader: getEnv("QRGATE_CLIENT_IP_HEADER", ""),
		SessionTTL:     getEnvDuration("QRGATE_SESSION_TTL", session.DefaultTTL),
	}
	if v := getEnv("QRGATE_PROMO_CODES", ""); v != "" {
		for _, code := range strings.Split(v, ",") {
			if code = strings.TrimSpace(code); code != "" {
				cfg.PromoCodes = append(cfg.PromoCodes, code)
			}
		}
	}
	if cfg.StoreDriver == "memory" {
		log.Println("WARNING: using in-memory store; all data is lost on restart. Set QRGATE_STORE=mongo, postgres or sqlite.")
	}
	return cfg
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARNING: invalid %s %q, using %s", key, v, def)
		return def
	}
	return d
}
