package promo

import (
	"context"

	"github.com/qrgate/qrgate/id"
)

// Store persists redemptions.
type Store interface {
	// CreateRedemption records a redemption. A second redemption of the
	// same code by the same account returns ErrAlreadyExists.
	CreateRedemption(ctx context.Context, r *Redemption) error
	GetRedemption(ctx context.Context, accountID id.AccountID, code string) (*Redemption, error)
}
