package qrgate

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("qrgate: not found")
	ErrAlreadyExists = errors.New("qrgate: already exists")
	ErrInvalidInput  = errors.New("qrgate: invalid input")
	ErrUnauthorized  = errors.New("qrgate: unauthorized")
	ErrForbidden     = errors.New("qrgate: forbidden")

	// Account errors
	ErrAccountNotFound = errors.New("qrgate: account not found")
	ErrAccountExists   = errors.New("qrgate: account already exists")

	// Session errors
	ErrSessionNotFound = errors.New("qrgate: session not found")
	ErrSessionExpired  = errors.New("qrgate: session expired")

	// Artifact errors
	ErrArtifactNotFound = errors.New("qrgate: artifact not found")

	// Entitlement errors
	ErrLimitReached = errors.New("qrgate: generation limit reached")

	// Subscription errors
	ErrSubscriptionNotFound = errors.New("qrgate: subscription not found")
	ErrNoActiveSubscription = errors.New("qrgate: no active subscription")
	ErrUnknownPlan          = errors.New("qrgate: unknown plan type")

	// Promo errors
	ErrInvalidPromoCode     = errors.New("qrgate: invalid promo code")
	ErrPromoAlreadyRedeemed = errors.New("qrgate: promo code already redeemed")
	ErrAlreadyFounder       = errors.New("qrgate: account already has founder tier")

	// External collaborator errors
	ErrRenderUnavailable       = errors.New("qrgate: render service unavailable")
	ErrIdentityProviderDenied  = errors.New("qrgate: identity provider rejected session")
	ErrIdentityProviderFailure = errors.New("qrgate: identity provider unreachable")

	// Store errors
	ErrStoreNotReady     = errors.New("qrgate: store not ready")
	ErrStoreClosed       = errors.New("qrgate: store is closed")
	ErrTransactionFailed = errors.New("qrgate: transaction failed")
	ErrMigrationFailed   = errors.New("qrgate: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("qrgate: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrArtifactNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound)
}

// IsValidation returns true if the error is a user-correctable validation failure.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownPlan)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRenderUnavailable) ||
		errors.Is(err, ErrIdentityProviderFailure) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
