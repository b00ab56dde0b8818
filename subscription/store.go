package subscription

import (
	"context"

	"github.com/qrgate/qrgate/id"
)

// Store persists subscriptions.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	// GetActive returns the account's most recently started subscription
	// with StatusActive, or ErrNoActiveSubscription when none exists.
	GetActive(ctx context.Context, accountID id.AccountID) (*Subscription, error)
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]*Subscription, error)
	SetStatus(ctx context.Context, subID id.SubscriptionID, status Status) error
}
