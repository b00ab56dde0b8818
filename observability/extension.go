// Package observability provides a metrics extension that records gate
// lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnArtifactCreated       = (*MetricsExtension)(nil)
	_ plugin.OnArtifactDeleted       = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded         = (*MetricsExtension)(nil)
	_ plugin.OnSessionCreated        = (*MetricsExtension)(nil)
	_ plugin.OnSessionsPurged        = (*MetricsExtension)(nil)
	_ plugin.OnTierChanged           = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionActivated = (*MetricsExtension)(nil)
	_ plugin.OnPromoRedeemed         = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a gate plugin to automatically track generation metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Artifact metrics
	ArtifactCreated Counter
	ArtifactDeleted Counter

	// Entitlement metrics
	QuotaDenied    Counter
	TierUpgraded   Counter
	TierDowngraded Counter

	// Session metrics
	SessionCreated      Counter
	SessionsPurged      Counter
	SessionPurgeLatency Histogram

	// Subscription metrics
	SubscriptionActivated Counter

	// Promo metrics
	PromoRedeemed Counter

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Artifact metrics
		ArtifactCreated: factory.Counter("qrgate.artifact.created"),
		ArtifactDeleted: factory.Counter("qrgate.artifact.deleted"),

		// Entitlement metrics
		QuotaDenied:    factory.Counter("qrgate.quota.denied"),
		TierUpgraded:   factory.Counter("qrgate.tier.upgraded"),
		TierDowngraded: factory.Counter("qrgate.tier.downgraded"),

		// Session metrics
		SessionCreated:      factory.Counter("qrgate.session.created"),
		SessionsPurged:      factory.Counter("qrgate.session.purged"),
		SessionPurgeLatency: factory.Histogram("qrgate.session.purge.latency_ms"),

		// Subscription metrics
		SubscriptionActivated: factory.Counter("qrgate.subscription.activated"),

		// Promo metrics
		PromoRedeemed: factory.Counter("qrgate.promo.redeemed"),

		// Error metrics
		StoreErrors:  factory.Counter("qrgate.store.errors"),
		PluginErrors: factory.Counter("qrgate.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Artifact lifecycle hooks
// ──────────────────────────────────────────────────

// OnArtifactCreated implements plugin.OnArtifactCreated.
func (m *MetricsExtension) OnArtifactCreated(_ context.Context, _ interface{}) error {
	m.ArtifactCreated.Inc()
	return nil
}

// OnArtifactDeleted implements plugin.OnArtifactDeleted.
func (m *MetricsExtension) OnArtifactDeleted(_ context.Context, _, _ string) error {
	m.ArtifactDeleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _ string, _, _ int64) error {
	m.QuotaDenied.Inc()
	return nil
}

// OnTierChanged implements plugin.OnTierChanged.
func (m *MetricsExtension) OnTierChanged(_ context.Context, _, oldTier, newTier string) error {
	if identity.Tier(newTier).Rank() >= identity.Tier(oldTier).Rank() {
		m.TierUpgraded.Inc()
	} else {
		m.TierDowngraded.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Session lifecycle hooks
// ──────────────────────────────────────────────────

// OnSessionCreated implements plugin.OnSessionCreated.
func (m *MetricsExtension) OnSessionCreated(_ context.Context, _ interface{}) error {
	m.SessionCreated.Inc()
	return nil
}

// OnSessionsPurged implements plugin.OnSessionsPurged.
func (m *MetricsExtension) OnSessionsPurged(_ context.Context, count int64, elapsed time.Duration) error {
	m.SessionsPurged.Add(float64(count))
	m.SessionPurgeLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (m *MetricsExtension) OnSubscriptionActivated(_ context.Context, _ interface{}) error {
	m.SubscriptionActivated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Promo lifecycle hooks
// ──────────────────────────────────────────────────

// OnPromoRedeemed implements plugin.OnPromoRedeemed.
func (m *MetricsExtension) OnPromoRedeemed(_ context.Context, _, _ string) error {
	m.PromoRedeemed.Inc()
	return nil
}
