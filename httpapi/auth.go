package httpapi

import (
	"net/http"
	"time"

	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/session"
)

const sessionCookieName = "session_token"

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type promoRequest struct {
	PromoCode string `json:"promoCode"`
}

func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) {
	var body sessionRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	acct, sess, err := r.gate.CreateSession(req.Context(), body.SessionID)
	if err != nil {
		r.writeError(w, err)
		return
	}

	setSessionCookie(w, sess)

	limits, err := r.gate.Limits(req.Context(), acct.Identity())
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": acct, "limits": limits})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	acct, err := r.gate.ResolveToken(req.Context(), sessionToken(req))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limits, err := r.gate.Limits(req.Context(), acct.Identity())
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": acct, "limits": limits})
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())
	if err := r.gate.Logout(req.Context(), ident); err != nil {
		r.writeError(w, err)
		return
	}

	// Cleared even for guests so a stale cookie doesn't linger.
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (r *Router) handleRedeemPromo(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())
	if !ident.IsAccount() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var body promoRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	if err := r.gate.RedeemPromoCode(req.Context(), ident, body.PromoCode); err != nil {
		r.writeError(w, err)
		return
	}

	// The account is founder now; snapshot limits under the new tier.
	limits, err := r.gate.Limits(req.Context(), identity.Account(ident.AccountID, identity.TierFounder, nil))
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Founder access granted: unlimited QR generation, permanently.",
		"limits":  limits,
	})
}

func setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
