package session

import (
	"context"
	"time"

	"github.com/qrgate/qrgate/id"
)

type Store interface {
	// Put stores a session, replacing any prior session for the same account.
	Put(ctx context.Context, s *Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	DeleteForAccount(ctx context.Context, accountID id.AccountID) error
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}
