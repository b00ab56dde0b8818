// Package entitlement maps an identity's tier to its generation ceiling.
// The policy is a pure function: all tier rules live here and nowhere else.
package entitlement

import (
	"time"

	"github.com/qrgate/qrgate/identity"
)

// Unlimited is the ceiling sentinel for tiers without a generation cap.
const Unlimited int64 = -1

// Generation ceilings per tier.
const (
	GuestCeiling    int64 = 3
	StandardCeiling int64 = 5
)

// Decision is the outcome of evaluating the policy for one identity.
type Decision struct {
	// OwnerKey is the usage-counting key for the identity.
	OwnerKey string

	// Tier is the effective tier after expiry evaluation. An expired
	// premium identity decides as standard.
	Tier identity.Tier

	// Ceiling is the generation cap, or Unlimited.
	Ceiling int64

	// Downgrade is set when a premium subscription has expired. The
	// caller must persist the tier reversion before further use.
	Downgrade bool
}

// Allows reports whether a new generation is permitted at the given
// live usage count.
func (d Decision) Allows(used int64) bool {
	return d.Ceiling == Unlimited || used < d.Ceiling
}

// Evaluate maps an identity to its owner key and generation ceiling.
//
// Guests get GuestCeiling. Standard accounts get StandardCeiling.
// Premium accounts are unlimited while their expiry is in the future;
// once expired they decide as standard with Downgrade set. Founder is
// unlimited and never expires. A premium identity with no expiry on
// record is treated as expired.
func Evaluate(ident identity.Identity, now time.Time) Decision {
	d := Decision{OwnerKey: ident.OwnerKey(), Tier: ident.Tier}

	if ident.IsGuest() {
		d.Tier = identity.TierGuest
		d.Ceiling = GuestCeiling
		return d
	}

	switch ident.Tier {
	case identity.TierFounder:
		d.Ceiling = Unlimited
	case identity.TierPremium:
		if ident.PremiumExpiry != nil && ident.PremiumExpiry.After(now) {
			d.Ceiling = Unlimited
			return d
		}
		d.Tier = identity.TierStandard
		d.Ceiling = StandardCeiling
		d.Downgrade = true
	default:
		d.Tier = identity.TierStandard
		d.Ceiling = StandardCeiling
	}
	return d
}
