// Package httpapi exposes the gate over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qrgate/qrgate"
)

// Version is reported by the service banner.
const Version = "2.1.0"

const bannerMessage = "QR Gate API"

// maxRequestBytes bounds request bodies; every accepted payload is tiny.
const maxRequestBytes = 1 << 20

type Router struct {
	gate   *qrgate.Gate
	logger *slog.Logger

	// clientIPHeader, when set, names the trusted header carrying the
	// original client address (e.g. "X-Forwarded-For"). Guests are
	// counted by this address.
	clientIPHeader string
}

func NewRouter(gate *qrgate.Gate, logger *slog.Logger, clientIPHeader string) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{gate: gate, logger: logger, clientIPHeader: clientIPHeader}
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)

	mux.Get("/health", r.handleHealth)

	mux.Group(func(pr chi.Router) {
		pr.Use(r.identityMiddleware)
		pr.Get("/api/", r.handleBanner)
		pr.Post("/api/auth/session", r.handleCreateSession)
		pr.Get("/api/auth/me", r.handleMe)
		pr.Post("/api/auth/logout", r.handleLogout)
		pr.Post("/api/auth/redeem-promo", r.handleRedeemPromo)
		pr.Post("/api/qr/generate", r.handleGenerate)
		pr.Get("/api/qr/history", r.handleHistory)
		pr.Delete("/api/qr/{qr_id}", r.handleDeleteArtifact)
		pr.Post("/api/subscription/upgrade", r.handleUpgrade)
		pr.Get("/api/subscription/status", r.handleSubscriptionStatus)
	})

	return mux
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleBanner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": bannerMessage, "version": Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxRequestBytes)
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return qrgate.ValidationError{Field: "body", Message: "invalid json"}
	}
	return nil
}

// writeError maps engine errors to HTTP statuses.
func (r *Router) writeError(w http.ResponseWriter, err error) {
	switch {
	case qrgate.IsValidation(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, qrgate.ErrUnauthorized),
		errors.Is(err, qrgate.ErrIdentityProviderDenied):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, qrgate.ErrLimitReached),
		errors.Is(err, qrgate.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case qrgate.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, qrgate.ErrInvalidPromoCode),
		errors.Is(err, qrgate.ErrPromoAlreadyRedeemed),
		errors.Is(err, qrgate.ErrAlreadyFounder):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, qrgate.ErrRenderUnavailable),
		errors.Is(err, qrgate.ErrIdentityProviderFailure):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		r.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
