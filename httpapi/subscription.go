package httpapi

import (
	"errors"
	"net/http"

	"github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/identity"
)

type upgradeRequest struct {
	PlanType string `json:"planType"`
}

func (r *Router) handleUpgrade(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())
	if !ident.IsAccount() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	// The body is optional; an omitted planType buys the monthly plan.
	var body upgradeRequest
	if req.ContentLength != 0 {
		if err := decodeJSON(w, req, &body); err != nil {
			r.writeError(w, err)
			return
		}
	}

	sub, err := r.gate.ActivateSubscription(req.Context(), ident, body.PlanType)
	if err != nil {
		r.writeError(w, err)
		return
	}

	// Premium takes effect immediately; snapshot limits under the new tier.
	limits, err := r.gate.Limits(req.Context(), identity.Account(ident.AccountID, identity.TierPremium, &sub.ExpiresAt))
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscription": sub, "limits": limits})
}

func (r *Router) handleSubscriptionStatus(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())
	if !ident.IsAccount() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	limits, err := r.gate.Limits(req.Context(), ident)
	if err != nil {
		r.writeError(w, err)
		return
	}

	sub, err := r.gate.SubscriptionStatus(req.Context(), ident)
	if err != nil {
		if errors.Is(err, qrgate.ErrNoActiveSubscription) {
			writeJSON(w, http.StatusOK, map[string]any{"subscription": nil, "limits": limits})
			return
		}
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscription": sub, "limits": limits})
}
