package qrgate_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/entitlement"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	"github.com/qrgate/qrgate/store/memory"
	"github.com/qrgate/qrgate/subscription"
	"github.com/qrgate/qrgate/types"
)

// fakeRenderer lets a test script the render outcome.
type fakeRenderer struct {
	fn func(ctx context.Context, target string, width, height int) (string, error)
}

func (r fakeRenderer) Render(ctx context.Context, target string, width, height int) (string, error) {
	return r.fn(ctx, target, width, height)
}

// fakeProvider exchanges canned session identifiers for profiles. Each
// identifier works at most once, like the real provider.
type fakeProvider struct {
	mu       sync.Mutex
	profiles map[string]qrgate.Profile
}

func (p *fakeProvider) Exchange(_ context.Context, sessionID string) (*qrgate.Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prof, ok := p.profiles[sessionID]
	if !ok {
		return nil, qrgate.ErrIdentityProviderDenied
	}
	delete(p.profiles, sessionID)
	return &prof, nil
}

// failingStore wraps the memory store and fails artifact writes on demand.
type failingStore struct {
	*memory.Store
	failWrites bool
}

func (s *failingStore) RecordArtifact(ctx context.Context, art *artifact.Artifact) error {
	if s.failWrites {
		return qrgate.ErrTransactionFailed
	}
	return s.Store.RecordArtifact(ctx, art)
}

func newTestGate(t *testing.T, opts ...qrgate.Option) (*qrgate.Gate, *memory.Store) {
	t.Helper()

	st := memory.New()
	base := []qrgate.Option{
		qrgate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		qrgate.WithRenderer(fixedRenderer{}),
	}
	g := qrgate.New(st, append(base, opts...)...)
	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(func() { _ = g.Stop() })
	return g, st
}

func seedAccount(t *testing.T, st *memory.Store, tier identity.Tier, premiumExpiry *time.Time) *account.Account {
	t.Helper()

	acctID := id.NewAccountID()
	acct := &account.Account{
		Entity:        types.NewEntity(),
		ID:            acctID,
		Email:         fmt.Sprintf("%s@example.com", acctID),
		Name:          "Test User",
		Tier:          tier,
		PremiumExpiry: premiumExpiry,
	}
	require.NoError(t, st.CreateAccount(context.Background(), acct))
	return acct
}

func TestGenerateGuestCeiling(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	ident := identity.Guest("198.51.100.10")

	for i := 0; i < int(entitlement.GuestCeiling); i++ {
		art, limits, err := g.Generate(ctx, ident, "https://example.com", "")
		require.NoError(t, err)
		require.Equal(t, ident.OwnerKey(), art.OwnerKey)
		require.Equal(t, qrgate.DefaultSize, art.Size())
		require.NotEmpty(t, art.ImageRef)
		require.Equal(t, int64(i+1), limits.Used)
		require.Equal(t, entitlement.GuestCeiling, limits.Max)
	}

	art, limits, err := g.Generate(ctx, ident, "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrLimitReached)
	require.Nil(t, art)
	require.Equal(t, entitlement.GuestCeiling, limits.Used)
	require.Equal(t, identity.TierGuest, limits.Tier)
	require.True(t, limits.Exhausted())
}

func TestGenerateStandardCeiling(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()
	acct := seedAccount(t, st, identity.TierStandard, nil)
	ident := acct.Identity()

	for i := 0; i < int(entitlement.StandardCeiling); i++ {
		_, limits, err := g.Generate(ctx, ident, "https://example.com/page", "300x300")
		require.NoError(t, err)
		require.Equal(t, int64(i+1), limits.Used)
		require.Equal(t, entitlement.StandardCeiling, limits.Max)
	}

	_, _, err := g.Generate(ctx, ident, "https://example.com/page", "")
	require.ErrorIs(t, err, qrgate.ErrLimitReached)

	// The display cache follows the live count.
	stored, err := st.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, entitlement.StandardCeiling, stored.GenerationCount)
}

func TestGenerateFounderUnlimited(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()
	acct := seedAccount(t, st, identity.TierFounder, nil)

	// A lapsed subscription from before the founder grant must not matter.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, st.CreateSubscription(ctx, &subscription.Subscription{
		Entity:    types.NewEntity(),
		ID:        id.NewSubscriptionID(),
		AccountID: acct.ID,
		Plan:      subscription.PlanMonthly,
		Status:    subscription.StatusActive,
		StartedAt: past.Add(-subscription.DefaultPeriod),
		ExpiresAt: past,
	}))

	for i := 0; i < 50; i++ {
		_, limits, err := g.Generate(ctx, acct.Identity(), "https://example.com", "")
		require.NoError(t, err)
		require.Equal(t, entitlement.Unlimited, limits.Max)
		require.Equal(t, identity.TierFounder, limits.Tier)
	}

	stored, err := st.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, identity.TierFounder, stored.Tier)
}

func TestGeneratePremiumUnlimitedWhileActive(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()
	future := time.Now().Add(10 * 24 * time.Hour)
	acct := seedAccount(t, st, identity.TierPremium, &future)

	for i := 0; i < int(entitlement.StandardCeiling)+2; i++ {
		_, limits, err := g.Generate(ctx, acct.Identity(), "https://example.com", "")
		require.NoError(t, err)
		require.Equal(t, entitlement.Unlimited, limits.Max)
		require.Equal(t, identity.TierPremium, limits.Tier)
	}
}

func TestPremiumExpiryDowngradePersists(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	acct := seedAccount(t, st, identity.TierPremium, &past)

	// A lapsed subscription the status sweep has not reached yet.
	sub := &subscription.Subscription{
		Entity:    types.NewEntity(),
		ID:        id.NewSubscriptionID(),
		AccountID: acct.ID,
		Plan:      subscription.PlanMonthly,
		Status:    subscription.StatusActive,
		StartedAt: past.Add(-subscription.DefaultPeriod),
		ExpiresAt: past,
	}
	require.NoError(t, st.CreateSubscription(ctx, sub))

	limits, err := g.Limits(ctx, acct.Identity())
	require.NoError(t, err)
	require.Equal(t, identity.TierStandard, limits.Tier)
	require.Equal(t, entitlement.StandardCeiling, limits.Max)

	stored, err := st.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, identity.TierStandard, stored.Tier)
	require.Nil(t, stored.PremiumExpiry)

	refreshed, err := st.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, subscription.StatusExpired, refreshed.Status)
}

func TestDeleteArtifactFreesSlot(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	ident := identity.Guest("203.0.113.30")

	var first *artifact.Artifact
	for i := 0; i < int(entitlement.GuestCeiling); i++ {
		art, _, err := g.Generate(ctx, ident, "https://example.com", "")
		require.NoError(t, err)
		if first == nil {
			first = art
		}
	}

	_, _, err := g.Generate(ctx, ident, "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrLimitReached)

	require.NoError(t, g.DeleteArtifact(ctx, ident, first.ID))

	_, limits, err := g.Generate(ctx, ident, "https://example.com", "")
	require.NoError(t, err)
	require.Equal(t, entitlement.GuestCeiling, limits.Used)
}

func TestDeleteArtifactOwnership(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	owner := identity.Guest("198.51.100.1")
	other := identity.Guest("198.51.100.2")

	art, _, err := g.Generate(ctx, owner, "https://example.com", "")
	require.NoError(t, err)

	err = g.DeleteArtifact(ctx, other, art.ID)
	require.ErrorIs(t, err, qrgate.ErrForbidden)

	// The artifact survives a foreign delete attempt.
	history, err := g.History(ctx, owner)
	require.NoError(t, err)
	require.Len(t, history, 1)

	err = g.DeleteArtifact(ctx, owner, id.NewArtifactID())
	require.ErrorIs(t, err, qrgate.ErrArtifactNotFound)
}

func TestGenerateValidation(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	ident := identity.Guest("192.0.2.40")

	tests := []struct {
		name   string
		target string
		size   string
	}{
		{"empty url", "", ""},
		{"relative url", "/dashboard", ""},
		{"missing scheme", "example.com/page", ""},
		{"malformed size", "https://example.com", "banana"},
		{"one dimension", "https://example.com", "300"},
		{"below minimum", "https://example.com", "10x10"},
		{"above maximum", "https://example.com", "2000x2000"},
		{"five digit dimension", "https://example.com", "12345x300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := g.Generate(ctx, ident, tt.target, tt.size)
			require.Error(t, err)
			require.True(t, qrgate.IsValidation(err), "want validation error, got %v", err)
		})
	}

	// Rejected requests never consume a slot.
	limits, err := g.Limits(ctx, ident)
	require.NoError(t, err)
	require.Zero(t, limits.Used)
}

func TestGenerateRenderFailureDoesNotRecord(t *testing.T) {
	r := fakeRenderer{fn: func(context.Context, string, int, int) (string, error) {
		return "", qrgate.ErrRenderUnavailable
	}}
	g, _ := newTestGate(t, qrgate.WithRenderer(r))
	ctx := context.Background()
	ident := identity.Guest("192.0.2.41")

	_, _, err := g.Generate(ctx, ident, "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrRenderUnavailable)

	limits, err := g.Limits(ctx, ident)
	require.NoError(t, err)
	require.Zero(t, limits.Used)
}

func TestGenerateLedgerWriteFailureDoesNotRecord(t *testing.T) {
	st := &failingStore{Store: memory.New(), failWrites: true}
	g := qrgate.New(st,
		qrgate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		qrgate.WithRenderer(fixedRenderer{}),
	)
	require.NoError(t, g.Start(context.Background()))
	t.Cleanup(func() { _ = g.Stop() })

	ctx := context.Background()
	ident := identity.Guest("192.0.2.44")

	_, _, err := g.Generate(ctx, ident, "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrTransactionFailed)

	limits, err := g.Limits(ctx, ident)
	require.NoError(t, err)
	require.Zero(t, limits.Used)

	// Once the store recovers, the slot is still free.
	st.failWrites = false
	_, limits, err = g.Generate(ctx, ident, "https://example.com", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), limits.Used)
}

func TestGenerateCancellationDoesNotRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := fakeRenderer{fn: func(context.Context, string, int, int) (string, error) {
		// The client goes away while the image is in flight.
		cancel()
		return "https://images.example/qr", nil
	}}
	g, _ := newTestGate(t, qrgate.WithRenderer(r))
	ident := identity.Guest("192.0.2.42")

	_, _, err := g.Generate(ctx, ident, "https://example.com", "")
	require.ErrorIs(t, err, context.Canceled)

	limits, err := g.Limits(context.Background(), ident)
	require.NoError(t, err)
	require.Zero(t, limits.Used)
}

func TestGenerateWithoutRenderer(t *testing.T) {
	g := qrgate.New(memory.New())

	_, _, err := g.Generate(context.Background(), identity.Guest("192.0.2.43"), "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrRenderUnavailable)
}

func TestGenerateLastSlotConcurrency(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	ident := identity.Guest("203.0.113.99")

	for i := 0; i < int(entitlement.GuestCeiling)-1; i++ {
		_, _, err := g.Generate(ctx, ident, "https://example.com", "")
		require.NoError(t, err)
	}

	// Ten requests race for the single remaining slot.
	const workers = 10
	errs := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = g.Generate(ctx, ident, "https://example.com", "")
		}(i)
	}
	wg.Wait()

	var won, blocked int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, qrgate.ErrLimitReached):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, won)
	require.Equal(t, workers-1, blocked)

	limits, err := g.Limits(ctx, ident)
	require.NoError(t, err)
	require.Equal(t, entitlement.GuestCeiling, limits.Used)
}

func TestGuestAndAccountCountSeparately(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()

	guest := identity.Guest("203.0.113.50")
	for i := 0; i < int(entitlement.GuestCeiling); i++ {
		_, _, err := g.Generate(ctx, guest, "https://example.com", "")
		require.NoError(t, err)
	}
	_, _, err := g.Generate(ctx, guest, "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrLimitReached)

	// The same person logging in starts from a fresh account ledger.
	acct := seedAccount(t, st, identity.TierStandard, nil)
	_, limits, err := g.Generate(ctx, acct.Identity(), "https://example.com", "")
	require.NoError(t, err)
	require.Equal(t, int64(1), limits.Used)
	require.Equal(t, entitlement.StandardCeiling, limits.Max)
}

func TestHistory(t *testing.T) {
	g, st := newTestGate(t, qrgate.WithHistoryLimit(2))
	ctx := context.Background()
	acct := seedAccount(t, st, identity.TierStandard, nil)
	ident := acct.Identity()

	var ids []id.ArtifactID
	for i := 0; i < 3; i++ {
		art, _, err := g.Generate(ctx, ident, fmt.Sprintf("https://example.com/%d", i), "")
		require.NoError(t, err)
		ids = append(ids, art.ID)
		time.Sleep(2 * time.Millisecond)
	}

	history, err := g.History(ctx, ident)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, ids[2], history[0].ID)
	require.Equal(t, ids[1], history[1].ID)
}

func TestCreateSession(t *testing.T) {
	provider := &fakeProvider{profiles: map[string]qrgate.Profile{
		"sess-1": {Subject: "oidc|1", Email: "ada@example.com", Name: "Ada", Picture: "https://images.example/a.png"},
		"sess-2": {Subject: "oidc|1", Email: "ada@example.com", Name: "Ada L.", Picture: "https://images.example/b.png"},
	}}
	g, _ := newTestGate(t, qrgate.WithIdentityProvider(provider))
	ctx := context.Background()

	acct, sess, err := g.CreateSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", acct.Email)
	require.Equal(t, identity.TierStandard, acct.Tier)
	require.Equal(t, acct.ID, sess.AccountID)
	require.NotEmpty(t, sess.Token)
	require.WithinDuration(t, time.Now().Add(session.DefaultTTL), sess.ExpiresAt, time.Minute)

	// A later login with the same email reuses the account and refreshes
	// the profile fields.
	again, sess2, err := g.CreateSession(ctx, "sess-2")
	require.NoError(t, err)
	require.Equal(t, acct.ID, again.ID)
	require.Equal(t, "Ada L.", again.Name)
	require.NotEqual(t, sess.Token, sess2.Token)

	got, err := g.ResolveToken(ctx, sess2.Token)
	require.NoError(t, err)
	require.Equal(t, acct.ID, got.ID)

	_, _, err = g.CreateSession(ctx, "sess-unknown")
	require.ErrorIs(t, err, qrgate.ErrIdentityProviderDenied)

	_, _, err = g.CreateSession(ctx, "")
	require.True(t, qrgate.IsValidation(err))
}

func TestCreateSessionWithoutProvider(t *testing.T) {
	g, _ := newTestGate(t)

	_, _, err := g.CreateSession(context.Background(), "sess-1")
	require.ErrorIs(t, err, qrgate.ErrIdentityProviderFailure)
}

func TestResolve(t *testing.T) {
	provider := &fakeProvider{profiles: map[string]qrgate.Profile{
		"sess-9": {Email: "kim@example.com", Name: "Kim"},
	}}
	g, _ := newTestGate(t, qrgate.WithIdentityProvider(provider))
	ctx := context.Background()

	acct, sess, err := g.CreateSession(ctx, "sess-9")
	require.NoError(t, err)

	ident := g.Resolve(ctx, sess.Token, "203.0.113.5")
	require.True(t, ident.IsAccount())
	require.Equal(t, acct.ID, ident.AccountID)

	ident = g.Resolve(ctx, "", "203.0.113.5")
	require.True(t, ident.IsGuest())
	require.Equal(t, "guest:203.0.113.5", ident.OwnerKey())

	// A bad token degrades to guest rather than failing the request.
	ident = g.Resolve(ctx, "bogus-token", "203.0.113.5")
	require.True(t, ident.IsGuest())
}

func TestSessionExpiry(t *testing.T) {
	provider := &fakeProvider{profiles: map[string]qrgate.Profile{
		"sess-3": {Email: "late@example.com", Name: "Late"},
	}}
	g, _ := newTestGate(t,
		qrgate.WithIdentityProvider(provider),
		qrgate.WithSessionTTL(-time.Minute),
	)
	ctx := context.Background()

	_, sess, err := g.CreateSession(ctx, "sess-3")
	require.NoError(t, err)

	_, err = g.ResolveToken(ctx, sess.Token)
	require.ErrorIs(t, err, qrgate.ErrSessionExpired)

	ident := g.Resolve(ctx, sess.Token, "198.51.100.20")
	require.True(t, ident.IsGuest())
}

func TestLogout(t *testing.T) {
	provider := &fakeProvider{profiles: map[string]qrgate.Profile{
		"sess-4": {Email: "out@example.com", Name: "Out"},
	}}
	g, _ := newTestGate(t, qrgate.WithIdentityProvider(provider))
	ctx := context.Background()

	acct, sess, err := g.CreateSession(ctx, "sess-4")
	require.NoError(t, err)

	require.NoError(t, g.Logout(ctx, acct.Identity()))

	_, err = g.ResolveToken(ctx, sess.Token)
	require.ErrorIs(t, err, qrgate.ErrSessionNotFound)

	// Guests hold no sessions.
	require.NoError(t, g.Logout(ctx, identity.Guest("192.0.2.77")))
}

func TestActivateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes to premium", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		sub, err := g.ActivateSubscription(ctx, acct.Identity(), subscription.PlanMonthly)
		require.NoError(t, err)
		require.Equal(t, subscription.PlanMonthly, sub.Plan)
		require.Equal(t, subscription.StatusActive, sub.Status)
		require.WithinDuration(t, time.Now().Add(subscription.DefaultPeriod), sub.ExpiresAt, time.Minute)

		stored, err := st.GetAccount(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, identity.TierPremium, stored.Tier)
		require.NotNil(t, stored.PremiumExpiry)
		require.Equal(t, sub.ExpiresAt, *stored.PremiumExpiry)
	})

	t.Run("empty plan defaults to monthly", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		sub, err := g.ActivateSubscription(ctx, acct.Identity(), "")
		require.NoError(t, err)
		require.Equal(t, subscription.PlanMonthly, sub.Plan)

		active, err := st.GetActiveSubscription(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, sub.ID, active.ID)
	})

	t.Run("unknown plan is rejected", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		_, err := g.ActivateSubscription(ctx, acct.Identity(), "yearly")
		require.ErrorIs(t, err, qrgate.ErrUnknownPlan)

		_, err = st.GetActiveSubscription(ctx, acct.ID)
		require.ErrorIs(t, err, qrgate.ErrNoActiveSubscription)
	})

	t.Run("supersedes the prior subscription", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		first, err := g.ActivateSubscription(ctx, acct.Identity(), subscription.PlanMonthly)
		require.NoError(t, err)

		second, err := g.ActivateSubscription(ctx, identity.Account(acct.ID, identity.TierPremium, &first.ExpiresAt), subscription.PlanMonthly)
		require.NoError(t, err)
		require.NotEqual(t, first.ID, second.ID)

		prior, err := st.GetSubscription(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, subscription.StatusExpired, prior.Status)

		active, err := st.GetActiveSubscription(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, second.ID, active.ID)
	})

	t.Run("founder cannot upgrade", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierFounder, nil)

		_, err := g.ActivateSubscription(ctx, acct.Identity(), subscription.PlanMonthly)
		require.ErrorIs(t, err, qrgate.ErrAlreadyFounder)

		_, err = st.GetActiveSubscription(ctx, acct.ID)
		require.ErrorIs(t, err, qrgate.ErrNoActiveSubscription)
	})

	t.Run("guests cannot upgrade", func(t *testing.T) {
		g, _ := newTestGate(t)

		_, err := g.ActivateSubscription(ctx, identity.Guest("203.0.113.61"), subscription.PlanMonthly)
		require.ErrorIs(t, err, qrgate.ErrUnauthorized)
	})
}

func TestSubscriptionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("none active", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		_, err := g.SubscriptionStatus(ctx, acct.Identity())
		require.ErrorIs(t, err, qrgate.ErrNoActiveSubscription)
	})

	t.Run("active subscription", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		sub, err := g.ActivateSubscription(ctx, acct.Identity(), subscription.PlanMonthly)
		require.NoError(t, err)

		got, err := g.SubscriptionStatus(ctx, identity.Account(acct.ID, identity.TierPremium, &sub.ExpiresAt))
		require.NoError(t, err)
		require.Equal(t, sub.ID, got.ID)
	})

	t.Run("lapsed subscription reports none", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		past := time.Now().Add(-time.Hour)
		require.NoError(t, st.CreateSubscription(ctx, &subscription.Subscription{
			Entity:    types.NewEntity(),
			ID:        id.NewSubscriptionID(),
			AccountID: acct.ID,
			Plan:      subscription.PlanMonthly,
			Status:    subscription.StatusActive,
			StartedAt: past.Add(-subscription.DefaultPeriod),
			ExpiresAt: past,
		}))

		_, err := g.SubscriptionStatus(ctx, acct.Identity())
		require.ErrorIs(t, err, qrgate.ErrNoActiveSubscription)
	})

	t.Run("guests have no subscription", func(t *testing.T) {
		g, _ := newTestGate(t)

		_, err := g.SubscriptionStatus(ctx, identity.Guest("203.0.113.62"))
		require.ErrorIs(t, err, qrgate.ErrUnauthorized)
	})
}

func TestRedeemPromoCode(t *testing.T) {
	ctx := context.Background()

	t.Run("grants permanent founder tier", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		require.NoError(t, g.RedeemPromoCode(ctx, acct.Identity(), promo.DefaultFounderCode))

		stored, err := st.GetAccount(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, identity.TierFounder, stored.Tier)
		require.Nil(t, stored.PremiumExpiry)

		err = g.RedeemPromoCode(ctx, stored.Identity(), promo.DefaultFounderCode)
		require.ErrorIs(t, err, qrgate.ErrAlreadyFounder)
	})

	t.Run("rejects unknown codes", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		err := g.RedeemPromoCode(ctx, acct.Identity(), "QR-WRONG-WRONG")
		require.ErrorIs(t, err, qrgate.ErrInvalidPromoCode)
	})

	t.Run("codes match byte for byte", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		err := g.RedeemPromoCode(ctx, acct.Identity(), strings.ToLower(promo.DefaultFounderCode))
		require.ErrorIs(t, err, qrgate.ErrInvalidPromoCode)

		err = g.RedeemPromoCode(ctx, acct.Identity(), promo.DefaultFounderCode+" ")
		require.ErrorIs(t, err, qrgate.ErrInvalidPromoCode)
	})

	t.Run("one redemption per account and code", func(t *testing.T) {
		g, st := newTestGate(t)
		acct := seedAccount(t, st, identity.TierStandard, nil)

		// A redemption row without the tier write, as left by a crash
		// between the two.
		require.NoError(t, st.CreateRedemption(ctx, &promo.Redemption{
			Entity:    types.NewEntity(),
			ID:        id.NewRedemptionID(),
			AccountID: acct.ID,
			Code:      promo.DefaultFounderCode,
		}))

		err := g.RedeemPromoCode(ctx, acct.Identity(), promo.DefaultFounderCode)
		require.ErrorIs(t, err, qrgate.ErrPromoAlreadyRedeemed)
	})

	t.Run("guests cannot redeem", func(t *testing.T) {
		g, _ := newTestGate(t)

		err := g.RedeemPromoCode(ctx, identity.Guest("203.0.113.4"), promo.DefaultFounderCode)
		require.ErrorIs(t, err, qrgate.ErrUnauthorized)
	})

	t.Run("configured codes extend the default", func(t *testing.T) {
		reg := promo.NewRegistry()
		reg.Add("QR-AAAAA-BBBBB")

		g, st := newTestGate(t, qrgate.WithPromoRegistry(reg))
		acct := seedAccount(t, st, identity.TierStandard, nil)

		require.NoError(t, g.RedeemPromoCode(ctx, acct.Identity(), "QR-AAAAA-BBBBB"))

		stored, err := st.GetAccount(ctx, acct.ID)
		require.NoError(t, err)
		require.Equal(t, identity.TierFounder, stored.Tier)
	})
}

func TestFounderSurvivesGenerationAfterRedemption(t *testing.T) {
	g, st := newTestGate(t)
	ctx := context.Background()
	acct := seedAccount(t, st, identity.TierStandard, nil)

	for i := 0; i < int(entitlement.StandardCeiling); i++ {
		_, _, err := g.Generate(ctx, acct.Identity(), "https://example.com", "")
		require.NoError(t, err)
	}
	_, _, err := g.Generate(ctx, acct.Identity(), "https://example.com", "")
	require.ErrorIs(t, err, qrgate.ErrLimitReached)

	require.NoError(t, g.RedeemPromoCode(ctx, acct.Identity(), promo.DefaultFounderCode))

	// Existing artifacts stay; the ceiling is simply gone.
	promoted, err := st.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, limits, err := g.Generate(ctx, promoted.Identity(), "https://example.com", "")
		require.NoError(t, err)
		require.Equal(t, entitlement.StandardCeiling+int64(i+1), limits.Used)
		require.Equal(t, entitlement.Unlimited, limits.Max)
	}
}
