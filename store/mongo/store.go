// Package mongo provides a MongoDB store implementation using the
// official driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	qrgate "github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	qrgatestore "github.com/qrgate/qrgate/store"
	"github.com/qrgate/qrgate/subscription"
)

// Collection name constants.
const (
	colAccounts      = "qrgate_accounts"
	colSessions      = "qrgate_sessions"
	colArtifacts     = "qrgate_artifacts"
	colSubscriptions = "qrgate_subscriptions"
	colRedemptions   = "qrgate_redemptions"
)

// compile-time interface check
var _ qrgatestore.Store = (*Store)(nil)

// Store implements store.Store on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a MongoDB store on an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Connect dials MongoDB and returns a store bound to the named database.
func Connect(uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("qrgate/mongo: connect: %w", err)
	}
	return New(client, database), nil
}

// Migrate creates indexes for all QRGate collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("qrgate/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	_, err := s.db.Collection(colAccounts).InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return qrgate.ErrAccountExists
		}
		return fmt.Errorf("qrgate/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).
		FindOne(ctx, bson.M{"_id": accountID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrAccountNotFound
		}
		return nil, fmt.Errorf("qrgate/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).
		FindOne(ctx, bson.M{"email": email}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrAccountNotFound
		}
		return nil, fmt.Errorf("qrgate/mongo: get account by email: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	m := toAccountModel(a)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colAccounts).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("qrgate/mongo: update account: %w", err)
	}
	if res.MatchedCount == 0 {
		return qrgate.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetAccountTier(ctx context.Context, accountID id.AccountID, tier identity.Tier, premiumExpiry *time.Time) error {
	res, err := s.db.Collection(colAccounts).
		UpdateOne(ctx,
			bson.M{"_id": accountID.String()},
			bson.M{"$set": bson.M{
				"tier":           string(tier),
				"premium_expiry": premiumExpiry,
				"updated_at":     now(),
			}})
	if err != nil {
		return fmt.Errorf("qrgate/mongo: set account tier: %w", err)
	}
	if res.MatchedCount == 0 {
		return qrgate.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetGenerationCount(ctx context.Context, accountID id.AccountID, count int64) error {
	res, err := s.db.Collection(colAccounts).
		UpdateOne(ctx,
			bson.M{"_id": accountID.String()},
			bson.M{"$set": bson.M{
				"generation_count": count,
				"updated_at":       now(),
			}})
	if err != nil {
		return fmt.Errorf("qrgate/mongo: set generation count: %w", err)
	}
	if res.MatchedCount == 0 {
		return qrgate.ErrAccountNotFound
	}
	return nil
}

// ==================== Session Store ====================

func (s *Store) PutSession(ctx context.Context, sess *session.Session) error {
	// One session per account: drop any prior one first.
	_, err := s.db.Collection(colSessions).
		DeleteMany(ctx, bson.M{"account_id": sess.AccountID.String()})
	if err != nil {
		return fmt.Errorf("qrgate/mongo: put session: %w", err)
	}

	m := toSessionModel(sess)
	_, err = s.db.Collection(colSessions).InsertOne(ctx, m)
	if err != nil {
		return fmt.Errorf("qrgate/mongo: put session: %w", err)
	}
	return nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*session.Session, error) {
	var m sessionModel
	err := s.db.Collection(colSessions).
		FindOne(ctx, bson.M{"token": token}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrSessionNotFound
		}
		return nil, fmt.Errorf("qrgate/mongo: get session by token: %w", err)
	}
	return fromSessionModel(&m)
}

func (s *Store) DeleteSessionsForAccount(ctx context.Context, accountID id.AccountID) error {
	_, err := s.db.Collection(colSessions).
		DeleteMany(ctx, bson.M{"account_id": accountID.String()})
	if err != nil {
		return fmt.Errorf("qrgate/mongo: delete sessions for account: %w", err)
	}
	return nil
}

func (s *Store) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Collection(colSessions).
		DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": before}})
	if err != nil {
		return 0, fmt.Errorf("qrgate/mongo: purge expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}

// ==================== Artifact Store ====================

func (s *Store) RecordArtifact(ctx context.Context, a *artifact.Artifact) error {
	m := toArtifactModel(a)
	_, err := s.db.Collection(colArtifacts).InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return qrgate.ErrAlreadyExists
		}
		return fmt.Errorf("qrgate/mongo: record artifact: %w", err)
	}
	return nil
}

func (s *Store) GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*artifact.Artifact, error) {
	var m artifactModel
	err := s.db.Collection(colArtifacts).
		FindOne(ctx, bson.M{"_id": artifactID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("qrgate/mongo: get artifact: %w", err)
	}
	return fromArtifactModel(&m)
}

func (s *Store) CountArtifactsByOwner(ctx context.Context, ownerKey string) (int64, error) {
	count, err := s.db.Collection(colArtifacts).
		CountDocuments(ctx, bson.M{"owner_key": ownerKey})
	if err != nil {
		return 0, fmt.Errorf("qrgate/mongo: count artifacts: %w", err)
	}
	return count, nil
}

func (s *Store) ListArtifactsByOwner(ctx context.Context, ownerKey string, opts artifact.ListOptions) ([]*artifact.Artifact, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colArtifacts).
		Find(ctx, bson.M{"owner_key": ownerKey}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("qrgate/mongo: list artifacts: %w", err)
	}
	defer cursor.Close(ctx)

	var models []artifactModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("qrgate/mongo: list artifacts decode: %w", err)
	}

	result := make([]*artifact.Artifact, len(models))
	for i := range models {
		a, err := fromArtifactModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) DeleteArtifact(ctx context.Context, artifactID id.ArtifactID) error {
	res, err := s.db.Collection(colArtifacts).
		DeleteOne(ctx, bson.M{"_id": artifactID.String()})
	if err != nil {
		return fmt.Errorf("qrgate/mongo: delete artifact: %w", err)
	}
	if res.DeletedCount == 0 {
		return qrgate.ErrArtifactNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.db.Collection(colSubscriptions).InsertOne(ctx, m)
	if err != nil {
		return fmt.Errorf("qrgate/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx, bson.M{"_id": subID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("qrgate/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetActiveSubscription(ctx context.Context, accountID id.AccountID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.db.Collection(colSubscriptions).
		FindOne(ctx,
			bson.M{
				"account_id": accountID.String(),
				"status":     string(subscription.StatusActive),
			},
			options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("qrgate/mongo: get active subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptionsByAccount(ctx context.Context, accountID id.AccountID) ([]*subscription.Subscription, error) {
	cursor, err := s.db.Collection(colSubscriptions).
		Find(ctx,
			bson.M{"account_id": accountID.String()},
			options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("qrgate/mongo: list subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	var models []subscriptionModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("qrgate/mongo: list subscriptions decode: %w", err)
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

func (s *Store) SetSubscriptionStatus(ctx context.Context, subID id.SubscriptionID, status subscription.Status) error {
	res, err := s.db.Collection(colSubscriptions).
		UpdateOne(ctx,
			bson.M{"_id": subID.String()},
			bson.M{"$set": bson.M{
				"status":     string(status),
				"updated_at": now(),
			}})
	if err != nil {
		return fmt.Errorf("qrgate/mongo: set subscription status: %w", err)
	}
	if res.MatchedCount == 0 {
		return qrgate.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Promo Store ====================

func (s *Store) CreateRedemption(ctx context.Context, r *promo.Redemption) error {
	m := toRedemptionModel(r)
	_, err := s.db.Collection(colRedemptions).InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return qrgate.ErrAlreadyExists
		}
		return fmt.Errorf("qrgate/mongo: create redemption: %w", err)
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, accountID id.AccountID, code string) (*promo.Redemption, error) {
	var m redemptionModel
	err := s.db.Collection(colRedemptions).
		FindOne(ctx, bson.M{"account_id": accountID.String(), "code": code}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, qrgate.ErrNotFound
		}
		return nil, fmt.Errorf("qrgate/mongo: get redemption: %w", err)
	}
	return fromRedemptionModel(&m)
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all QRGate collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colSessions: {
			{
				Keys:    bson.D{{Key: "token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "account_id", Value: 1}}},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		colArtifacts: {
			{Keys: bson.D{{Key: "owner_key", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "status", Value: 1}, {Key: "started_at", Value: -1}}},
		},
		colRedemptions: {
			{
				Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
