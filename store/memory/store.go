// Package memory provides an in-memory store implementation, suitable for
// tests and single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	"github.com/qrgate/qrgate/subscription"
)

type Store struct {
	mu sync.RWMutex

	// Account storage
	accounts map[string]*account.Account

	// Session storage, keyed by token
	sessions map[string]*session.Session

	// Artifact storage
	artifacts map[string]*artifact.Artifact

	// Subscription storage
	subscriptions map[string]*subscription.Subscription

	// Redemption storage, keyed by "<account>:<code>"
	redemptions map[string]*promo.Redemption
}

func New() *Store {
	return &Store{
		accounts:      make(map[string]*account.Account),
		sessions:      make(map[string]*session.Session),
		artifacts:     make(map[string]*artifact.Artifact),
		subscriptions: make(map[string]*subscription.Subscription),
		redemptions:   make(map[string]*promo.Redemption),
	}
}

// Account Store implementation
func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID.String()]; exists {
		return qrgate.ErrAccountExists
	}
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return qrgate.ErrAccountExists
		}
	}
	s.accounts[a.ID.String()] = a
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountID.String()]; ok {
		return a, nil
	}
	return nil, qrgate.ErrAccountNotFound
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, qrgate.ErrAccountNotFound
}

func (s *Store) UpdateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID.String()]; !exists {
		return qrgate.ErrAccountNotFound
	}
	s.accounts[a.ID.String()] = a
	return nil
}

func (s *Store) SetAccountTier(_ context.Context, accountID id.AccountID, tier identity.Tier, premiumExpiry *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, exists := s.accounts[accountID.String()]; exists {
		a.Tier = tier
		a.PremiumExpiry = premiumExpiry
		a.Touch()
		return nil
	}
	return qrgate.ErrAccountNotFound
}

func (s *Store) SetGenerationCount(_ context.Context, accountID id.AccountID, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, exists := s.accounts[accountID.String()]; exists {
		a.GenerationCount = count
		return nil
	}
	return qrgate.ErrAccountNotFound
}

// Session Store implementation
func (s *Store) PutSession(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One session per account: drop any prior one.
	for token, existing := range s.sessions {
		if existing.AccountID == sess.AccountID {
			delete(s.sessions, token)
		}
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) GetSessionByToken(_ context.Context, token string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sess, ok := s.sessions[token]; ok {
		return sess, nil
	}
	return nil, qrgate.ErrSessionNotFound
}

func (s *Store) DeleteSessionsForAccount(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if sess.AccountID == accountID {
			delete(s.sessions, token)
		}
	}
	return nil
}

func (s *Store) PurgeExpiredSessions(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for token, sess := range s.sessions {
		if !sess.ExpiresAt.After(before) {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

// Artifact Store implementation
func (s *Store) RecordArtifact(_ context.Context, a *artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.artifacts[a.ID.String()]; exists {
		return qrgate.ErrAlreadyExists
	}
	s.artifacts[a.ID.String()] = a
	return nil
}

func (s *Store) GetArtifact(_ context.Context, artifactID id.ArtifactID) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.artifacts[artifactID.String()]; ok {
		return a, nil
	}
	return nil, qrgate.ErrArtifactNotFound
}

func (s *Store) CountArtifactsByOwner(_ context.Context, ownerKey string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, a := range s.artifacts {
		if a.OwnerKey == ownerKey {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListArtifactsByOwner(_ context.Context, ownerKey string, opts artifact.ListOptions) ([]*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*artifact.Artifact, 0)
	for _, a := range s.artifacts {
		if a.OwnerKey == ownerKey {
			result = append(result, a)
		}
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) DeleteArtifact(_ context.Context, artifactID id.ArtifactID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.artifacts, artifactID.String())
	return nil
}

// Subscription Store implementation
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return qrgate.ErrAlreadyExists
	}
	s.subscriptions[sub.ID.String()] = sub
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return sub, nil
	}
	return nil, qrgate.ErrSubscriptionNotFound
}

func (s *Store) GetActiveSubscription(_ context.Context, accountID id.AccountID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.AccountID != accountID || sub.Status != subscription.StatusActive {
			continue
		}
		if latest == nil || sub.StartedAt.After(latest.StartedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, qrgate.ErrNoActiveSubscription
	}
	return latest, nil
}

func (s *Store) ListSubscriptionsByAccount(_ context.Context, accountID id.AccountID) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.AccountID == accountID {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})
	return result, nil
}

func (s *Store) SetSubscriptionStatus(_ context.Context, subID id.SubscriptionID, status subscription.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, exists := s.subscriptions[subID.String()]; exists {
		sub.Status = status
		sub.Touch()
		return nil
	}
	return qrgate.ErrSubscriptionNotFound
}

// Promo Store implementation
func (s *Store) CreateRedemption(_ context.Context, r *promo.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.AccountID.String() + ":" + r.Code
	if _, exists := s.redemptions[key]; exists {
		return qrgate.ErrAlreadyExists
	}
	s.redemptions[key] = r
	return nil
}

func (s *Store) GetRedemption(_ context.Context, accountID id.AccountID, code string) (*promo.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.redemptions[accountID.String()+":"+code]; ok {
		return r, nil
	}
	return nil, qrgate.ErrNotFound
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
