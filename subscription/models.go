// Package subscription models premium subscription periods for accounts.
package subscription

import (
	"time"

	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/types"
)

// PlanMonthly names the single purchasable plan. There is no plan catalog;
// premium is the only paid offering.
const PlanMonthly = "monthly"

// DefaultPeriod is how long a newly activated subscription stays premium.
const DefaultPeriod = 30 * 24 * time.Hour

// KnownPlan reports whether planType names a purchasable plan.
func KnownPlan(planType string) bool {
	return planType == PlanMonthly
}

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Subscription is one premium period purchased by an account. Activating
// a new subscription supersedes any prior active one.
type Subscription struct {
	types.Entity
	ID        id.SubscriptionID `json:"id"`
	AccountID id.AccountID      `json:"account_id"`
	Plan      string            `json:"plan"`
	Status    Status            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ActiveAt reports whether the subscription confers premium at the given
// instant. A subscription expiring exactly now is no longer active.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.Status == StatusActive && s.ExpiresAt.After(now)
}
