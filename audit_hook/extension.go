// Package audithook bridges gate lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qrgate/qrgate/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnArtifactCreated       = (*Extension)(nil)
	_ plugin.OnArtifactDeleted       = (*Extension)(nil)
	_ plugin.OnQuotaExceeded         = (*Extension)(nil)
	_ plugin.OnSessionCreated        = (*Extension)(nil)
	_ plugin.OnSessionsPurged        = (*Extension)(nil)
	_ plugin.OnTierChanged           = (*Extension)(nil)
	_ plugin.OnSubscriptionActivated = (*Extension)(nil)
	_ plugin.OnPromoRedeemed         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not import
// a concrete audit store — callers inject one at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges gate lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Artifact lifecycle hooks
// ──────────────────────────────────────────────────

// OnArtifactCreated implements plugin.OnArtifactCreated.
func (e *Extension) OnArtifactCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionArtifactCreated, SeverityInfo, OutcomeSuccess,
		ResourceArtifact, "", CategoryGeneration, nil,
		"event", "artifact_created",
	)
}

// OnArtifactDeleted implements plugin.OnArtifactDeleted.
func (e *Extension) OnArtifactDeleted(ctx context.Context, artifactID, ownerKey string) error {
	return e.record(ctx, ActionArtifactDeleted, SeverityInfo, OutcomeSuccess,
		ResourceArtifact, artifactID, CategoryGeneration, nil,
		"artifact_id", artifactID,
		"owner_key", ownerKey,
	)
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, ownerKey string, used, limit int64) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityWarning, OutcomeFailure,
		ResourceArtifact, "", CategoryAccess, nil,
		"owner_key", ownerKey,
		"used", used,
		"limit", limit,
	)
}

// OnTierChanged implements plugin.OnTierChanged.
func (e *Extension) OnTierChanged(ctx context.Context, accountID, oldTier, newTier string) error {
	return e.record(ctx, ActionTierChanged, SeverityInfo, OutcomeSuccess,
		ResourceAccount, accountID, CategoryAccess, nil,
		"account_id", accountID,
		"old_tier", oldTier,
		"new_tier", newTier,
	)
}

// ──────────────────────────────────────────────────
// Session lifecycle hooks
// ──────────────────────────────────────────────────

// OnSessionCreated implements plugin.OnSessionCreated.
func (e *Extension) OnSessionCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSessionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSession, "", CategoryAuth, nil,
		"event", "session_created",
	)
}

// OnSessionsPurged implements plugin.OnSessionsPurged.
func (e *Extension) OnSessionsPurged(ctx context.Context, count int64, elapsed time.Duration) error {
	return e.record(ctx, ActionSessionsPurged, SeverityInfo, OutcomeSuccess,
		ResourceSession, "", CategoryAuth, nil,
		"purged", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (e *Extension) OnSubscriptionActivated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionActivated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_activated",
	)
}

// ──────────────────────────────────────────────────
// Promo lifecycle hooks
// ──────────────────────────────────────────────────

// OnPromoRedeemed implements plugin.OnPromoRedeemed.
func (e *Extension) OnPromoRedeemed(ctx context.Context, accountID, code string) error {
	return e.record(ctx, ActionPromoRedeemed, SeverityInfo, OutcomeSuccess,
		ResourcePromo, code, CategoryAccess, nil,
		"account_id", accountID,
		"code", code,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
