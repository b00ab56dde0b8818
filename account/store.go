package account

import (
	"context"
	"time"

	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
)

type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, accountID id.AccountID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Update(ctx context.Context, a *Account) error
	SetTier(ctx context.Context, accountID id.AccountID, tier identity.Tier, premiumExpiry *time.Time) error
	SetGenerationCount(ctx context.Context, accountID id.AccountID, count int64) error
}
