// Package identity defines who is making a request: an anonymous guest
// keyed by network address, or an authenticated account keyed by account ID.
// Identity is always passed explicitly into engine operations, never read
// from ambient state.
package identity

import (
	"time"

	"github.com/qrgate/qrgate/id"
)

// Kind discriminates the identity union.
type Kind string

const (
	KindGuest   Kind = "guest"
	KindAccount Kind = "account"
)

// Tier is the entitlement tier of an identity.
type Tier string

const (
	TierGuest    Tier = "guest"
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierFounder  Tier = "founder"
)

// Rank orders tiers for monotonicity checks. Higher rank never has a
// lower generation ceiling.
func (t Tier) Rank() int {
	switch t {
	case TierGuest:
		return 0
	case TierStandard:
		return 1
	case TierPremium:
		return 2
	case TierFounder:
		return 3
	default:
		return -1
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// Identity is a tagged union: Guest{Address} or Account{AccountID, Tier}.
// For premium accounts PremiumExpiry carries the subscription expiry so
// the entitlement policy can evaluate without further I/O.
type Identity struct {
	Kind Kind `json:"kind"`

	// Guest fields
	Address string `json:"address,omitempty"`

	// Account fields
	AccountID     id.AccountID `json:"account_id,omitempty"`
	Tier          Tier         `json:"tier,omitempty"`
	PremiumExpiry *time.Time   `json:"premium_expiry,omitempty"`
}

// Guest returns a guest identity keyed by the given network address.
func Guest(address string) Identity {
	return Identity{Kind: KindGuest, Address: address, Tier: TierGuest}
}

// Account returns an authenticated identity for the given account.
// premiumExpiry may be nil for non-premium tiers.
func Account(accountID id.AccountID, tier Tier, premiumExpiry *time.Time) Identity {
	return Identity{
		Kind:          KindAccount,
		AccountID:     accountID,
		Tier:          tier,
		PremiumExpiry: premiumExpiry,
	}
}

// IsGuest reports whether the identity is anonymous.
func (i Identity) IsGuest() bool { return i.Kind == KindGuest }

// IsAccount reports whether the identity is an authenticated account.
func (i Identity) IsAccount() bool { return i.Kind == KindAccount }

// OwnerKey returns the usage-counting key for this identity.
// Accounts count under their account ID; guests count under a
// "guest:" prefixed network address. TypeIDs never contain a colon,
// so the two namespaces cannot collide.
func (i Identity) OwnerKey() string {
	if i.Kind == KindAccount {
		return i.AccountID.String()
	}
	return "guest:" + i.Address
}
