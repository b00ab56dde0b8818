package store

import (
	"context"
	"time"

	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	"github.com/qrgate/qrgate/subscription"
)

// Store is the unified storage interface for all QRGate entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*account.Account, error)
	UpdateAccount(ctx context.Context, a *account.Account) error
	SetAccountTier(ctx context.Context, accountID id.AccountID, tier identity.Tier, premiumExpiry *time.Time) error
	SetGenerationCount(ctx context.Context, accountID id.AccountID, count int64) error

	// Session methods
	PutSession(ctx context.Context, s *session.Session) error
	GetSessionByToken(ctx context.Context, token string) (*session.Session, error)
	DeleteSessionsForAccount(ctx context.Context, accountID id.AccountID) error
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)

	// Artifact methods
	RecordArtifact(ctx context.Context, a *artifact.Artifact) error
	GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*artifact.Artifact, error)
	CountArtifactsByOwner(ctx context.Context, ownerKey string) (int64, error)
	ListArtifactsByOwner(ctx context.Context, ownerKey string, opts artifact.ListOptions) ([]*artifact.Artifact, error)
	DeleteArtifact(ctx context.Context, artifactID id.ArtifactID) error

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetActiveSubscription(ctx context.Context, accountID id.AccountID) (*subscription.Subscription, error)
	ListSubscriptionsByAccount(ctx context.Context, accountID id.AccountID) ([]*subscription.Subscription, error)
	SetSubscriptionStatus(ctx context.Context, subID id.SubscriptionID, status subscription.Status) error

	// Promo methods
	CreateRedemption(ctx context.Context, r *promo.Redemption) error
	GetRedemption(ctx context.Context, accountID id.AccountID, code string) (*promo.Redemption, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
