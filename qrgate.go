package qrgate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/entitlement"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/plugin"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	"github.com/qrgate/qrgate/store"
	"github.com/qrgate/qrgate/subscription"
	"github.com/qrgate/qrgate/types"
)

const (
	// DefaultSize is the rendered size used when a request omits one.
	DefaultSize = "150x150"

	// MinDimension and MaxDimension bound each side of a rendered QR code,
	// in pixels.
	MinDimension = 50
	MaxDimension = 1000

	// DefaultHistoryLimit caps how many artifacts History returns.
	DefaultHistoryLimit = 50

	// DefaultSweepInterval is how often the background worker purges
	// expired sessions.
	DefaultSweepInterval = time.Hour
)

// ownerLockStripes sizes the striped lock table for per-owner generation.
const ownerLockStripes = 64

var sizePattern = regexp.MustCompile(`^(\d{2,4})x(\d{2,4})$`)

// Renderer produces a stable image reference for a QR target.
type Renderer interface {
	Render(ctx context.Context, target string, width, height int) (string, error)
}

// IdentityProvider exchanges a one-time session identifier for a verified
// profile. The exchange succeeds at most once per identifier.
type IdentityProvider interface {
	Exchange(ctx context.Context, sessionID string) (*Profile, error)
}

// Profile is the verified identity returned by an IdentityProvider.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Gate is the QR generation engine. Every operation takes the caller's
// identity explicitly; nothing is read from ambient state.
type Gate struct {
	store    store.Store
	renderer Renderer
	idp      IdentityProvider
	promos   *promo.Registry
	plugins  *plugin.Registry
	logger   *slog.Logger

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Per-owner generation locks, striped by owner key hash. A lock is
	// held from the count check through the ledger write so concurrent
	// requests for one owner cannot both claim the last slot.
	ownerLocks [ownerLockStripes]sync.Mutex

	// Configuration
	sessionTTL    time.Duration
	historyLimit  int
	sweepInterval time.Duration
}

// New creates a new Gate instance.
func New(s store.Store, opts ...Option) *Gate {
	g := &Gate{
		store:         s,
		promos:        promo.NewRegistry(),
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		stopChan:      make(chan struct{}),
		sessionTTL:    session.DefaultTTL,
		historyLimit:  DefaultHistoryLimit,
		sweepInterval: DefaultSweepInterval,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Option configures a Gate instance.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
		g.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(g *Gate) {
		_ = g.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRenderer sets the QR renderer. Without one, Generate fails with
// ErrRenderUnavailable.
func WithRenderer(r Renderer) Option {
	return func(g *Gate) {
		g.renderer = r
	}
}

// WithIdentityProvider sets the identity provider used by CreateSession.
func WithIdentityProvider(p IdentityProvider) Option {
	return func(g *Gate) {
		g.idp = p
	}
}

// WithPromoRegistry replaces the default promo code registry.
func WithPromoRegistry(reg *promo.Registry) Option {
	return func(g *Gate) {
		if reg != nil {
			g.promos = reg
		}
	}
}

// WithSessionTTL sets how long minted sessions stay valid.
func WithSessionTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		g.sessionTTL = ttl
	}
}

// WithHistoryLimit caps how many artifacts History returns.
func WithHistoryLimit(n int) Option {
	return func(g *Gate) {
		g.historyLimit = n
	}
}

// WithSweepInterval sets the expired-session purge interval.
func WithSweepInterval(d time.Duration) Option {
	return func(g *Gate) {
		g.sweepInterval = d
	}
}

// Start begins background workers.
func (g *Gate) Start(ctx context.Context) error {
	// Migrate database
	if err := g.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	g.plugins.EmitInit(ctx, g)

	// Start session sweep worker
	g.wg.Add(1)
	go g.sessionSweepWorker(ctx)

	g.logger.Info("gate started",
		"session_ttl", g.sessionTTL,
		"sweep_interval", g.sweepInterval,
		"history_limit", g.historyLimit,
	)

	return nil
}

// Stop shuts down the Gate.
func (g *Gate) Stop() error {
	close(g.stopChan)
	g.wg.Wait()

	ctx := context.Background()
	g.plugins.EmitShutdown(ctx)

	return g.store.Close()
}

// sessionSweepWorker purges expired sessions on an interval.
func (g *Gate) sessionSweepWorker(ctx context.Context) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ticker.C:
			g.sweepSessions(ctx)
		}
	}
}

func (g *Gate) sweepSessions(ctx context.Context) {
	start := time.Now()

	count, err := g.store.PurgeExpiredSessions(ctx, time.Now())
	if err != nil {
		g.logger.Error("failed to purge expired sessions", "error", err)
		return
	}
	if count == 0 {
		return
	}

	elapsed := time.Since(start)
	g.plugins.EmitSessionsPurged(ctx, count, elapsed)

	g.logger.Debug("purged expired sessions",
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Identity Resolution
// ──────────────────────────────────────────────────

// CreateSession exchanges a one-time identity-provider session identifier
// for a local account and a freshly minted session. The account is matched
// by verified email and created on first login.
func (g *Gate) CreateSession(ctx context.Context, sessionID string) (*account.Account, *session.Session, error) {
	if g.idp == nil {
		return nil, nil, ErrIdentityProviderFailure
	}
	if sessionID == "" {
		return nil, nil, ValidationError{Field: "session_id", Message: "required"}
	}

	profile, err := g.idp.Exchange(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	acct, err := g.store.GetAccountByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		// Refresh profile fields that may have changed upstream.
		acct.Name = profile.Name
		acct.Picture = profile.Picture
		acct.Touch()
		if err := g.store.UpdateAccount(ctx, acct); err != nil {
			g.logger.Warn("failed to refresh account profile",
				"account_id", acct.ID,
				"error", err,
			)
		}
	case errors.Is(err, ErrAccountNotFound):
		acct = &account.Account{
			Entity:  types.NewEntity(),
			ID:      id.NewAccountID(),
			Email:   profile.Email,
			Name:    profile.Name,
			Picture: profile.Picture,
			Tier:    identity.TierStandard,
		}
		if err := g.store.CreateAccount(ctx, acct); err != nil {
			return nil, nil, err
		}
		g.logger.Info("account created", "account_id", acct.ID, "email", acct.Email)
	default:
		return nil, nil, err
	}

	token, err := session.NewToken()
	if err != nil {
		return nil, nil, err
	}

	sess := &session.Session{
		Entity:    types.NewEntity(),
		ID:        id.NewSessionID(),
		AccountID: acct.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(g.sessionTTL),
	}
	if err := g.store.PutSession(ctx, sess); err != nil {
		return nil, nil, err
	}

	g.plugins.EmitSessionCreated(ctx, sess)
	return acct, sess, nil
}

// ResolveToken returns the account behind a live session token.
func (g *Gate) ResolveToken(ctx context.Context, token string) (*account.Account, error) {
	sess, err := g.store.GetSessionByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.ExpiredAt(time.Now()) {
		return nil, ErrSessionExpired
	}
	return g.store.GetAccount(ctx, sess.AccountID)
}

// Resolve maps request credentials to an identity. Any failure to
// authenticate degrades to a guest identity for the client address, so a
// stale cookie never blocks generation outright.
func (g *Gate) Resolve(ctx context.Context, token, clientAddr string) identity.Identity {
	if token == "" {
		return identity.Guest(clientAddr)
	}
	acct, err := g.ResolveToken(ctx, token)
	if err != nil {
		g.logger.Debug("token resolution failed, treating as guest", "error", err)
		return identity.Guest(clientAddr)
	}
	return acct.Identity()
}

// Logout deletes every session held by the identity's account. Guests
// have no sessions, so logging out as a guest is a no-op.
func (g *Gate) Logout(ctx context.Context, ident identity.Identity) error {
	if !ident.IsAccount() {
		return nil
	}
	return g.store.DeleteSessionsForAccount(ctx, ident.AccountID)
}

// ──────────────────────────────────────────────────
// Generation Gate
// ──────────────────────────────────────────────────

// Generate validates the request, checks the identity's generation ceiling
// against its live artifact count, renders the QR image, and records the
// artifact. size is "WIDTHxHEIGHT"; an empty size uses DefaultSize.
//
// When the ceiling is reached it returns ErrLimitReached, and the returned
// Limits carries the usage snapshot that blocked the request.
func (g *Gate) Generate(ctx context.Context, ident identity.Identity, targetURL, size string) (*artifact.Artifact, entitlement.Limits, error) {
	var limits entitlement.Limits

	target, err := normalizeTarget(targetURL)
	if err != nil {
		return nil, limits, err
	}
	width, height, err := parseSize(size)
	if err != nil {
		return nil, limits, err
	}
	if g.renderer == nil {
		return nil, limits, ErrRenderUnavailable
	}

	decision := g.decide(ctx, ident)

	lock := g.ownerLock(decision.OwnerKey)
	lock.Lock()
	defer lock.Unlock()

	used, err := g.store.CountArtifactsByOwner(ctx, decision.OwnerKey)
	if err != nil {
		return nil, limits, err
	}
	limits = entitlement.Limits{Used: used, Max: decision.Ceiling, Tier: decision.Tier}

	if !decision.Allows(used) {
		g.plugins.EmitQuotaExceeded(ctx, decision.OwnerKey, used, decision.Ceiling)
		g.logger.Info("generation blocked",
			"owner_key", decision.OwnerKey,
			"used", used,
			"ceiling", decision.Ceiling,
		)
		return nil, limits, ErrLimitReached
	}

	imageRef, err := g.renderer.Render(ctx, target, width, height)
	if err != nil {
		return nil, limits, err
	}

	// A cancellation during rendering means the client never received the
	// image; the attempt must not consume a slot.
	if ctx.Err() != nil {
		return nil, limits, ctx.Err()
	}

	art := &artifact.Artifact{
		Entity:    types.NewEntity(),
		ID:        id.NewArtifactID(),
		OwnerKey:  decision.OwnerKey,
		TargetURL: target,
		Width:     width,
		Height:    height,
		ImageRef:  imageRef,
	}
	if err := g.store.RecordArtifact(ctx, art); err != nil {
		return nil, limits, err
	}

	limits.Used = used + 1
	if ident.IsAccount() {
		g.refreshGenerationCount(ctx, ident.AccountID, limits.Used)
	}

	g.plugins.EmitArtifactCreated(ctx, art)
	return art, limits, nil
}

// Limits returns the identity's current usage snapshot.
func (g *Gate) Limits(ctx context.Context, ident identity.Identity) (entitlement.Limits, error) {
	decision := g.decide(ctx, ident)

	used, err := g.store.CountArtifactsByOwner(ctx, decision.OwnerKey)
	if err != nil {
		return entitlement.Limits{}, err
	}
	return entitlement.Limits{Used: used, Max: decision.Ceiling, Tier: decision.Tier}, nil
}

// History lists the identity's artifacts, newest first, capped at the
// configured history limit.
func (g *Gate) History(ctx context.Context, ident identity.Identity) ([]*artifact.Artifact, error) {
	return g.store.ListArtifactsByOwner(ctx, ident.OwnerKey(), artifact.ListOptions{Limit: g.historyLimit})
}

// DeleteArtifact removes one of the identity's artifacts, immediately
// freeing a generation slot. Deleting an artifact owned by someone else
// fails with ErrForbidden.
func (g *Gate) DeleteArtifact(ctx context.Context, ident identity.Identity, artifactID id.ArtifactID) error {
	art, err := g.store.GetArtifact(ctx, artifactID)
	if err != nil {
		return err
	}

	ownerKey := ident.OwnerKey()
	if art.OwnerKey != ownerKey {
		return ErrForbidden
	}

	if err := g.store.DeleteArtifact(ctx, artifactID); err != nil {
		return err
	}

	if ident.IsAccount() {
		if used, err := g.store.CountArtifactsByOwner(ctx, ownerKey); err == nil {
			g.refreshGenerationCount(ctx, ident.AccountID, used)
		}
	}

	g.plugins.EmitArtifactDeleted(ctx, artifactID.String(), ownerKey)
	return nil
}

// ──────────────────────────────────────────────────
// Subscriptions
// ──────────────────────────────────────────────────

// ActivateSubscription starts a new premium subscription on the named plan
// for the identity's account and promotes its tier. An empty planType buys
// the monthly plan. Any prior active subscription is superseded rather than
// stacked, so at most one is active per account.
func (g *Gate) ActivateSubscription(ctx context.Context, ident identity.Identity, planType string) (*subscription.Subscription, error) {
	if !ident.IsAccount() {
		return nil, ErrUnauthorized
	}
	if planType == "" {
		planType = subscription.PlanMonthly
	}
	if !subscription.KnownPlan(planType) {
		return nil, ErrUnknownPlan
	}

	acct, err := g.store.GetAccount(ctx, ident.AccountID)
	if err != nil {
		return nil, err
	}
	// Founder already outranks premium, permanently.
	if acct.IsFounder() {
		return nil, ErrAlreadyFounder
	}

	now := time.Now()

	if prior, err := g.store.GetActiveSubscription(ctx, acct.ID); err == nil {
		if err := g.store.SetSubscriptionStatus(ctx, prior.ID, subscription.StatusExpired); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}

	sub := &subscription.Subscription{
		Entity:    types.NewEntity(),
		ID:        id.NewSubscriptionID(),
		AccountID: acct.ID,
		Plan:      planType,
		Status:    subscription.StatusActive,
		StartedAt: now,
		ExpiresAt: now.Add(subscription.DefaultPeriod),
	}
	if err := g.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	expiry := sub.ExpiresAt
	if err := g.store.SetAccountTier(ctx, acct.ID, identity.TierPremium, &expiry); err != nil {
		return nil, err
	}

	g.logger.Info("subscription activated",
		"account_id", acct.ID,
		"plan", sub.Plan,
		"expires_at", sub.ExpiresAt,
	)
	g.plugins.EmitSubscriptionActivated(ctx, sub)
	g.plugins.EmitTierChanged(ctx, acct.ID.String(), string(acct.Tier), string(identity.TierPremium))

	return sub, nil
}

// SubscriptionStatus returns the account's active, unexpired subscription,
// or ErrNoActiveSubscription.
func (g *Gate) SubscriptionStatus(ctx context.Context, ident identity.Identity) (*subscription.Subscription, error) {
	if !ident.IsAccount() {
		return nil, ErrUnauthorized
	}

	sub, err := g.store.GetActiveSubscription(ctx, ident.AccountID)
	if err != nil {
		return nil, err
	}
	if !sub.ActiveAt(time.Now()) {
		return nil, ErrNoActiveSubscription
	}
	return sub, nil
}

// ──────────────────────────────────────────────────
// Promo Codes
// ──────────────────────────────────────────────────

// RedeemPromoCode grants the identity's account the permanent founder tier.
// Codes match byte for byte against the configured registry, and each
// account can redeem a given code once.
func (g *Gate) RedeemPromoCode(ctx context.Context, ident identity.Identity, code string) error {
	if !ident.IsAccount() {
		return ErrUnauthorized
	}
	if !g.promos.Valid(code) {
		return ErrInvalidPromoCode
	}

	acct, err := g.store.GetAccount(ctx, ident.AccountID)
	if err != nil {
		return err
	}
	if acct.IsFounder() {
		return ErrAlreadyFounder
	}

	red := &promo.Redemption{
		Entity:    types.NewEntity(),
		ID:        id.NewRedemptionID(),
		AccountID: acct.ID,
		Code:      code,
	}
	if err := g.store.CreateRedemption(ctx, red); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return ErrPromoAlreadyRedeemed
		}
		return err
	}

	if err := g.store.SetAccountTier(ctx, acct.ID, identity.TierFounder, nil); err != nil {
		return err
	}

	g.logger.Info("promo code redeemed", "account_id", acct.ID)
	g.plugins.EmitPromoRedeemed(ctx, acct.ID.String(), code)
	g.plugins.EmitTierChanged(ctx, acct.ID.String(), string(acct.Tier), string(identity.TierFounder))

	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// decide evaluates the entitlement policy, persisting a premium expiry
// downgrade before the result is used.
func (g *Gate) decide(ctx context.Context, ident identity.Identity) entitlement.Decision {
	d := entitlement.Evaluate(ident, time.Now())
	if d.Downgrade {
		g.persistDowngrade(ctx, ident)
	}
	return d
}

// persistDowngrade reverts an expired premium account to standard and marks
// its lapsed subscription expired.
func (g *Gate) persistDowngrade(ctx context.Context, ident identity.Identity) {
	if !ident.IsAccount() {
		return
	}

	if sub, err := g.store.GetActiveSubscription(ctx, ident.AccountID); err == nil && !sub.ActiveAt(time.Now()) {
		if err := g.store.SetSubscriptionStatus(ctx, sub.ID, subscription.StatusExpired); err != nil {
			g.logger.Warn("failed to expire lapsed subscription",
				"subscription_id", sub.ID,
				"error", err,
			)
		}
	}

	if err := g.store.SetAccountTier(ctx, ident.AccountID, identity.TierStandard, nil); err != nil {
		g.logger.Warn("failed to persist premium downgrade",
			"account_id", ident.AccountID,
			"error", err,
		)
		return
	}

	g.logger.Info("premium expired, tier reverted", "account_id", ident.AccountID)
	g.plugins.EmitTierChanged(ctx, ident.AccountID.String(), string(identity.TierPremium), string(identity.TierStandard))
}

// refreshGenerationCount updates the denormalized display count. The
// authoritative value is always the live artifact count.
func (g *Gate) refreshGenerationCount(ctx context.Context, accountID id.AccountID, used int64) {
	if err := g.store.SetGenerationCount(ctx, accountID, used); err != nil {
		g.logger.Warn("failed to refresh generation count",
			"account_id", accountID,
			"error", err,
		)
	}
}

func (g *Gate) ownerLock(ownerKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ownerKey))
	return &g.ownerLocks[h.Sum32()%ownerLockStripes]
}

// normalizeTarget requires an absolute URL with a host. The target is
// stored as given; encoding for the render request is the renderer's job.
func normalizeTarget(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ValidationError{Field: "url", Message: "must be an absolute URL"}
	}
	return raw, nil
}

func parseSize(size string) (width, height int, err error) {
	if size == "" {
		size = DefaultSize
	}
	m := sizePattern.FindStringSubmatch(size)
	if m == nil {
		return 0, 0, ValidationError{Field: "size", Message: "use WIDTHxHEIGHT, e.g. 150x150"}
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	if width < MinDimension || width > MaxDimension || height < MinDimension || height > MaxDimension {
		return 0, 0, ValidationError{
			Field:   "size",
			Message: fmt.Sprintf("dimensions must be between %d and %d pixels", MinDimension, MaxDimension),
		}
	}
	return width, height, nil
}
