// Package plugin provides an extensible plugin system for QRGate.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, gate interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Artifact lifecycle hooks
// ──────────────────────────────────────────────────

// OnArtifactCreated is called when a QR artifact is generated and recorded.
type OnArtifactCreated interface {
	Plugin
	OnArtifactCreated(ctx context.Context, artifact interface{}) error
}

// OnArtifactDeleted is called when a QR artifact is deleted.
type OnArtifactDeleted interface {
	Plugin
	OnArtifactDeleted(ctx context.Context, artifactID, ownerKey string) error
}

// OnQuotaExceeded is called when a generation attempt is blocked by the
// owner's ceiling.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, ownerKey string, used, limit int64) error
}

// ──────────────────────────────────────────────────
// Identity hooks
// ──────────────────────────────────────────────────

// OnSessionCreated is called when an account logs in.
type OnSessionCreated interface {
	Plugin
	OnSessionCreated(ctx context.Context, session interface{}) error
}

// OnSessionsPurged is called when the expiry sweep removes sessions.
type OnSessionsPurged interface {
	Plugin
	OnSessionsPurged(ctx context.Context, count int64, elapsed time.Duration) error
}

// OnTierChanged is called when an account's tier changes for any reason:
// upgrade, promo redemption, or premium expiry downgrade.
type OnTierChanged interface {
	Plugin
	OnTierChanged(ctx context.Context, accountID, oldTier, newTier string) error
}

// ──────────────────────────────────────────────────
// Subscription and promo hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated is called when a premium subscription starts.
type OnSubscriptionActivated interface {
	Plugin
	OnSubscriptionActivated(ctx context.Context, sub interface{}) error
}

// OnPromoRedeemed is called when a founder code is redeemed.
type OnPromoRedeemed interface {
	Plugin
	OnPromoRedeemed(ctx context.Context, accountID, code string) error
}
