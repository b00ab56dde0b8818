package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	"github.com/qrgate/qrgate/store/sqlite"
	"github.com/qrgate/qrgate/subscription"
	"github.com/qrgate/qrgate/types"
)

// newStore opens a named shared in-memory database so every connection in
// the pool sees the same data.
func newStore(t *testing.T, name string) *sqlite.Store {
	t.Helper()

	st, err := sqlite.New(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newAccount(email string) *account.Account {
	return &account.Account{
		Entity: types.NewEntity(),
		ID:     id.NewAccountID(),
		Email:  email,
		Name:   "Test User",
		Tier:   identity.TierStandard,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	st := newStore(t, "migrate_idempotent")
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestAccountRoundTrip(t *testing.T) {
	st := newStore(t, "account_round_trip")
	ctx := context.Background()

	a := newAccount("rt@example.com")
	require.NoError(t, st.CreateAccount(ctx, a))

	got, err := st.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, a.Email, got.Email)
	require.Equal(t, identity.TierStandard, got.Tier)
	require.Nil(t, got.PremiumExpiry)

	byEmail, err := st.GetAccountByEmail(ctx, "rt@example.com")
	require.NoError(t, err)
	require.Equal(t, a.ID, byEmail.ID)

	// Email is unique across accounts.
	dup := newAccount("rt@example.com")
	require.ErrorIs(t, st.CreateAccount(ctx, dup), qrgate.ErrAccountExists)

	_, err = st.GetAccount(ctx, id.NewAccountID())
	require.ErrorIs(t, err, qrgate.ErrAccountNotFound)
	_, err = st.GetAccountByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, qrgate.ErrAccountNotFound)
}

func TestAccountUpdates(t *testing.T) {
	st := newStore(t, "account_updates")
	ctx := context.Background()

	a := newAccount("up@example.com")
	require.NoError(t, st.CreateAccount(ctx, a))

	a.Name = "Renamed"
	a.Picture = "https://images.example/new.png"
	require.NoError(t, st.UpdateAccount(ctx, a))

	got, err := st.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Name)
	require.Equal(t, "https://images.example/new.png", got.Picture)

	expiry := time.Now().Add(30 * 24 * time.Hour).UTC()
	require.NoError(t, st.SetAccountTier(ctx, a.ID, identity.TierPremium, &expiry))
	got, err = st.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, identity.TierPremium, got.Tier)
	require.NotNil(t, got.PremiumExpiry)
	require.WithinDuration(t, expiry, *got.PremiumExpiry, time.Second)

	// A downgrade clears the expiry.
	require.NoError(t, st.SetAccountTier(ctx, a.ID, identity.TierStandard, nil))
	got, err = st.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, identity.TierStandard, got.Tier)
	require.Nil(t, got.PremiumExpiry)

	require.NoError(t, st.SetGenerationCount(ctx, a.ID, 4))
	got, err = st.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, int64(4), got.GenerationCount)

	missing := id.NewAccountID()
	require.ErrorIs(t, st.SetAccountTier(ctx, missing, identity.TierFounder, nil), qrgate.ErrAccountNotFound)
	require.ErrorIs(t, st.SetGenerationCount(ctx, missing, 1), qrgate.ErrAccountNotFound)
	require.ErrorIs(t, st.UpdateAccount(ctx, newAccount("ghost@example.com")), qrgate.ErrAccountNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	st := newStore(t, "session_lifecycle")
	ctx := context.Background()

	a := newAccount("sess@example.com")
	require.NoError(t, st.CreateAccount(ctx, a))

	putSession := func(expiresAt time.Time) *session.Session {
		token, err := session.NewToken()
		require.NoError(t, err)
		s := &session.Session{
			Entity:    types.NewEntity(),
			ID:        id.NewSessionID(),
			AccountID: a.ID,
			Token:     token,
			ExpiresAt: expiresAt,
		}
		require.NoError(t, st.PutSession(ctx, s))
		return s
	}

	first := putSession(time.Now().Add(time.Hour).UTC())
	got, err := st.GetSessionByToken(ctx, first.Token)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, a.ID, got.AccountID)

	// An account holds at most one session; a new login replaces it.
	second := putSession(time.Now().Add(time.Hour).UTC())
	_, err = st.GetSessionByToken(ctx, first.Token)
	require.ErrorIs(t, err, qrgate.ErrSessionNotFound)
	_, err = st.GetSessionByToken(ctx, second.Token)
	require.NoError(t, err)

	require.NoError(t, st.DeleteSessionsForAccount(ctx, a.ID))
	_, err = st.GetSessionByToken(ctx, second.Token)
	require.ErrorIs(t, err, qrgate.ErrSessionNotFound)
}

func TestPurgeExpiredSessions(t *testing.T) {
	st := newStore(t, "purge_sessions")
	ctx := context.Background()

	live := newAccount("live@example.com")
	stale := newAccount("stale@example.com")
	require.NoError(t, st.CreateAccount(ctx, live))
	require.NoError(t, st.CreateAccount(ctx, stale))

	now := time.Now().UTC()
	for _, tc := range []struct {
		acct      *account.Account
		expiresAt time.Time
	}{
		{live, now.Add(time.Hour)},
		{stale, now.Add(-time.Hour)},
	} {
		token, err := session.NewToken()
		require.NoError(t, err)
		require.NoError(t, st.PutSession(ctx, &session.Session{
			Entity:    types.NewEntity(),
			ID:        id.NewSessionID(),
			AccountID: tc.acct.ID,
			Token:     token,
			ExpiresAt: tc.expiresAt,
		}))
	}

	purged, err := st.PurgeExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	// Purging again finds nothing.
	purged, err = st.PurgeExpiredSessions(ctx, now)
	require.NoError(t, err)
	require.Zero(t, purged)
}

func TestArtifactLedger(t *testing.T) {
	st := newStore(t, "artifact_ledger")
	ctx := context.Background()

	ownerA := "guest:198.51.100.7"
	ownerB := "guest:198.51.100.8"

	record := func(owner string, at time.Time) *artifact.Artifact {
		a := &artifact.Artifact{
			Entity:    types.Entity{CreatedAt: at, UpdatedAt: at},
			ID:        id.NewArtifactID(),
			OwnerKey:  owner,
			TargetURL: "https://example.com",
			Width:     150,
			Height:    150,
			ImageRef:  "https://images.example/qr.png",
		}
		require.NoError(t, st.RecordArtifact(ctx, a))
		return a
	}

	base := time.Now().UTC().Truncate(time.Second)
	oldest := record(ownerA, base.Add(-2*time.Minute))
	middle := record(ownerA, base.Add(-time.Minute))
	newest := record(ownerA, base)
	other := record(ownerB, base)

	count, err := st.CountArtifactsByOwner(ctx, ownerA)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	count, err = st.CountArtifactsByOwner(ctx, ownerB)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	list, err := st.ListArtifactsByOwner(ctx, ownerA, artifact.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, newest.ID, list[0].ID)
	require.Equal(t, middle.ID, list[1].ID)
	require.Equal(t, oldest.ID, list[2].ID)

	list, err = st.ListArtifactsByOwner(ctx, ownerA, artifact.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, middle.ID, list[0].ID)

	got, err := st.GetArtifact(ctx, newest.ID)
	require.NoError(t, err)
	require.Equal(t, "https://example.com", got.TargetURL)
	require.Equal(t, 150, got.Width)
	require.False(t, got.Downloaded)

	require.NoError(t, st.DeleteArtifact(ctx, middle.ID))
	count, err = st.CountArtifactsByOwner(ctx, ownerA)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	require.ErrorIs(t, st.DeleteArtifact(ctx, middle.ID), qrgate.ErrArtifactNotFound)
	_, err = st.GetArtifact(ctx, middle.ID)
	require.ErrorIs(t, err, qrgate.ErrArtifactNotFound)

	// Recording the same ID twice is refused.
	require.ErrorIs(t, st.RecordArtifact(ctx, other), qrgate.ErrAlreadyExists)
}

func TestSubscriptionLifecycle(t *testing.T) {
	st := newStore(t, "subscription_lifecycle")
	ctx := context.Background()

	a := newAccount("sub@example.com")
	require.NoError(t, st.CreateAccount(ctx, a))

	now := time.Now().UTC().Truncate(time.Second)
	create := func(startedAt time.Time, status subscription.Status) *subscription.Subscription {
		sub := &subscription.Subscription{
			Entity:    types.NewEntity(),
			ID:        id.NewSubscriptionID(),
			AccountID: a.ID,
			Plan:      subscription.PlanMonthly,
			Status:    status,
			StartedAt: startedAt,
			ExpiresAt: startedAt.Add(subscription.DefaultPeriod),
		}
		require.NoError(t, st.CreateSubscription(ctx, sub))
		return sub
	}

	older := create(now.Add(-48*time.Hour), subscription.StatusActive)
	newer := create(now, subscription.StatusActive)

	// The newest active subscription wins.
	active, err := st.GetActiveSubscription(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, newer.ID, active.ID)

	got, err := st.GetSubscription(ctx, older.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.PlanMonthly, got.Plan)

	list, err := st.ListSubscriptionsByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)

	require.NoError(t, st.SetSubscriptionStatus(ctx, newer.ID, subscription.StatusExpired))
	active, err = st.GetActiveSubscription(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, older.ID, active.ID)

	require.NoError(t, st.SetSubscriptionStatus(ctx, older.ID, subscription.StatusExpired))
	_, err = st.GetActiveSubscription(ctx, a.ID)
	require.ErrorIs(t, err, qrgate.ErrNoActiveSubscription)

	_, err = st.GetSubscription(ctx, id.NewSubscriptionID())
	require.ErrorIs(t, err, qrgate.ErrSubscriptionNotFound)
	require.ErrorIs(t, st.SetSubscriptionStatus(ctx, id.NewSubscriptionID(), subscription.StatusCancelled), qrgate.ErrSubscriptionNotFound)
}

func TestRedemptionUniqueness(t *testing.T) {
	st := newStore(t, "redemption_uniqueness")
	ctx := context.Background()

	a := newAccount("promo@example.com")
	require.NoError(t, st.CreateAccount(ctx, a))

	red := &promo.Redemption{
		Entity:    types.NewEntity(),
		ID:        id.NewRedemptionID(),
		AccountID: a.ID,
		Code:      promo.DefaultFounderCode,
	}
	require.NoError(t, st.CreateRedemption(ctx, red))

	got, err := st.GetRedemption(ctx, a.ID, promo.DefaultFounderCode)
	require.NoError(t, err)
	require.Equal(t, red.ID, got.ID)
	require.Equal(t, promo.DefaultFounderCode, got.Code)

	// One redemption per (account, code).
	again := &promo.Redemption{
		Entity:    types.NewEntity(),
		ID:        id.NewRedemptionID(),
		AccountID: a.ID,
		Code:      promo.DefaultFounderCode,
	}
	require.ErrorIs(t, st.CreateRedemption(ctx, again), qrgate.ErrAlreadyExists)

	_, err = st.GetRedemption(ctx, a.ID, "QR-OTHER-CODES")
	require.ErrorIs(t, err, qrgate.ErrNotFound)
}
