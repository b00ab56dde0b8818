package audithook

// Action constants for audit events.
const (
	// Artifact actions
	ActionArtifactCreated = "artifact.created"
	ActionArtifactDeleted = "artifact.deleted"

	// Entitlement actions
	ActionQuotaExceeded = "quota.exceeded"
	ActionTierChanged   = "tier.changed"

	// Session actions
	ActionSessionCreated = "session.created"
	ActionSessionsPurged = "sessions.purged"

	// Subscription actions
	ActionSubscriptionActivated = "subscription.activated"

	// Promo actions
	ActionPromoRedeemed = "promo.redeemed"
)

// Resource constants for audit events.
const (
	ResourceArtifact     = "artifact"
	ResourceAccount      = "account"
	ResourceSession      = "session"
	ResourceSubscription = "subscription"
	ResourcePromo        = "promo"
)

// Category constants for audit events.
const (
	CategoryGeneration   = "generation"
	CategoryAccess       = "access"
	CategoryAuth         = "auth"
	CategorySubscription = "subscription"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
