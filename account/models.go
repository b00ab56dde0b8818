// Package account defines the user account entity and its store contract.
package account

import (
	"time"

	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/types"
)

// Account is a verified user. Created on first successful identity
// verification, mutated by tier promotions, never hard-deleted.
type Account struct {
	types.Entity
	ID            id.AccountID  `json:"id"`
	Email         string        `json:"email"`
	Name          string        `json:"name"`
	Picture       string        `json:"picture,omitempty"`
	Tier          identity.Tier `json:"tier"`
	PremiumExpiry *time.Time    `json:"premium_expiry,omitempty"`

	// GenerationCount is a denormalized display cache. The authoritative
	// count is always the number of live artifacts owned by the account.
	GenerationCount int64 `json:"generation_count"`
}

// Identity returns the authenticated identity for this account.
func (a *Account) Identity() identity.Identity {
	return identity.Account(a.ID, a.Tier, a.PremiumExpiry)
}

// IsFounder reports whether the account holds the permanent founder tier.
func (a *Account) IsFounder() bool {
	return a.Tier == identity.TierFounder
}
