package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
)

type generateRequest struct {
	URL  string `json:"url"`
	Size string `json:"size"`
}

func (r *Router) handleGenerate(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())

	var body generateRequest
	if err := decodeJSON(w, req, &body); err != nil {
		r.writeError(w, err)
		return
	}

	art, limits, err := r.gate.Generate(req.Context(), ident, body.URL, body.Size)
	if errors.Is(err, qrgate.ErrLimitReached) {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":  fmt.Sprintf("generation limit reached: %d/%s used", limits.Used, formatMax(limits.Max)),
			"limits": limits,
		})
		return
	}
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"qr_code": art, "limits": limits})
}

func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())

	arts, err := r.gate.History(req.Context(), ident)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if arts == nil {
		arts = []*artifact.Artifact{}
	}

	limits, err := r.gate.Limits(req.Context(), ident)
	if err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"qr_codes": arts, "limits": limits})
}

func (r *Router) handleDeleteArtifact(w http.ResponseWriter, req *http.Request) {
	ident := requestIdentity(req.Context())
	if !ident.IsAccount() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	// An identifier that doesn't parse cannot name an artifact.
	artifactID, err := id.ParseArtifactID(chi.URLParam(req, "qr_id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "QR code not found"})
		return
	}

	if err := r.gate.DeleteArtifact(req.Context(), ident, artifactID); err != nil {
		r.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func formatMax(max int64) string {
	if max < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", max)
}
