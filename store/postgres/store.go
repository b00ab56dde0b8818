// Package postgres provides a PostgreSQL store implementation on
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	qrgate "github.com/qrgate/qrgate"
	"github.com/qrgate/qrgate/account"
	"github.com/qrgate/qrgate/artifact"
	"github.com/qrgate/qrgate/id"
	"github.com/qrgate/qrgate/identity"
	"github.com/qrgate/qrgate/promo"
	"github.com/qrgate/qrgate/session"
	qrgatestore "github.com/qrgate/qrgate/store"
	"github.com/qrgate/qrgate/subscription"
	"github.com/qrgate/qrgate/types"
)

// compile-time interface check
var _ qrgatestore.Store = (*Store)(nil)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New opens a connection pool for the given DSN. The DSN uses the
// usual postgres:// URL or key=value form.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("qrgate/postgres: open: %w", err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies any pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS qrgate_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("qrgate/postgres: create migration table: %w", err)
	}

	for _, m := range migrations {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM qrgate_migrations WHERE name = $1`, m.name).Scan(&n)
		if err != nil {
			return fmt.Errorf("qrgate/postgres: check migration %s: %w", m.name, err)
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.up); err != nil {
			return fmt.Errorf("qrgate/postgres: apply migration %s: %w", m.name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO qrgate_migrations (name, applied_at) VALUES ($1, $2)`, m.name, now()); err != nil {
			return fmt.Errorf("qrgate/postgres: record migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO qrgate_accounts (id, email, name, picture, tier, premium_expiry, generation_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID.String(), a.Email, a.Name, a.Picture, string(a.Tier), a.PremiumExpiry, a.GenerationCount, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return qrgate.ErrAccountExists
		}
		return err
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, name, picture, tier, premium_expiry, generation_count, created_at, updated_at
FROM qrgate_accounts WHERE id = $1`, accountID.String())
	a, err := scanAccount(row)
	if err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, email, name, picture, tier, premium_expiry, generation_count, created_at, updated_at
FROM qrgate_accounts WHERE email = $1`, email)
	a, err := scanAccount(row)
	if err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrAccountNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE qrgate_accounts
SET email = $1, name = $2, picture = $3, tier = $4, premium_expiry = $5, generation_count = $6, updated_at = $7
WHERE id = $8`,
		a.Email, a.Name, a.Picture, string(a.Tier), a.PremiumExpiry, a.GenerationCount, now(), a.ID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return qrgate.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetAccountTier(ctx context.Context, accountID id.AccountID, tier identity.Tier, premiumExpiry *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE qrgate_accounts SET tier = $1, premium_expiry = $2, updated_at = $3 WHERE id = $4`,
		string(tier), premiumExpiry, now(), accountID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return qrgate.ErrAccountNotFound
	}
	return nil
}

func (s *Store) SetGenerationCount(ctx context.Context, accountID id.AccountID, count int64) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE qrgate_accounts SET generation_count = $1, updated_at = $2 WHERE id = $3`,
		count, now(), accountID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return qrgate.ErrAccountNotFound
	}
	return nil
}

// ==================== Session Store ====================

func (s *Store) PutSession(ctx context.Context, sess *session.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// One session per account: drop any prior one first.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM qrgate_sessions WHERE account_id = $1`, sess.AccountID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO qrgate_sessions (id, account_id, token, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID.String(), sess.AccountID.String(), sess.Token, sess.ExpiresAt, sess.CreatedAt, sess.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account_id, token, expires_at, created_at, updated_at
FROM qrgate_sessions WHERE token = $1`, token)
	sess, err := scanSession(row)
	if err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *Store) DeleteSessionsForAccount(ctx context.Context, accountID id.AccountID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM qrgate_sessions WHERE account_id = $1`, accountID.String())
	return err
}

func (s *Store) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM qrgate_sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ==================== Artifact Store ====================

func (s *Store) RecordArtifact(ctx context.Context, a *artifact.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO qrgate_artifacts (id, owner_key, url, width, height, image_ref, downloaded, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID.String(), a.OwnerKey, a.TargetURL, a.Width, a.Height, a.ImageRef, a.Downloaded, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return qrgate.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetArtifact(ctx context.Context, artifactID id.ArtifactID) (*artifact.Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, owner_key, url, width, height, image_ref, downloaded, created_at, updated_at
FROM qrgate_artifacts WHERE id = $1`, artifactID.String())
	a, err := scanArtifact(row)
	if err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrArtifactNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *Store) CountArtifactsByOwner(ctx context.Context, ownerKey string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM qrgate_artifacts WHERE owner_key = $1`, ownerKey).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) ListArtifactsByOwner(ctx context.Context, ownerKey string, opts artifact.ListOptions) ([]*artifact.Artifact, error) {
	// LIMIT NULL means no limit in Postgres.
	var limit any
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, owner_key, url, width, height, image_ref, downloaded, created_at, updated_at
FROM qrgate_artifacts WHERE owner_key = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, ownerKey, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*artifact.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) DeleteArtifact(ctx context.Context, artifactID id.ArtifactID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM qrgate_artifacts WHERE id = $1`, artifactID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return qrgate.ErrArtifactNotFound
	}
	return nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO qrgate_subscriptions (id, account_id, plan, status, started_at, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID.String(), sub.AccountID.String(), sub.Plan, string(sub.Status), sub.StartedAt, sub.ExpiresAt, sub.CreatedAt, sub.UpdatedAt)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account_id, plan, status, started_at, expires_at, created_at, updated_at
FROM qrgate_subscriptions WHERE id = $1`, subID.String())
	sub, err := scanSubscription(row)
	if err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *Store) GetActiveSubscription(ctx context.Context, accountID id.AccountID) (*subscription.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account_id, plan, status, started_at, expires_at, created_at, updated_at
FROM qrgate_subscriptions WHERE account_id = $1 AND status = $2
ORDER BY started_at DESC
LIMIT 1`, accountID.String(), string(subscription.StatusActive))
	sub, err := scanSubscription(row)
	if err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrNoActiveSubscription
		}
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListSubscriptionsByAccount(ctx context.Context, accountID id.AccountID) ([]*subscription.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, account_id, plan, status, started_at, expires_at, created_at, updated_at
FROM qrgate_subscriptions WHERE account_id = $1
ORDER BY started_at DESC`, accountID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

func (s *Store) SetSubscriptionStatus(ctx context.Context, subID id.SubscriptionID, status subscription.Status) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE qrgate_subscriptions SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), now(), subID.String())
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return qrgate.ErrSubscriptionNotFound
	}
	return nil
}

// ==================== Promo Store ====================

func (s *Store) CreateRedemption(ctx context.Context, r *promo.Redemption) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO qrgate_redemptions (id, account_id, code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`,
		r.ID.String(), r.AccountID.String(), r.Code, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return qrgate.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, accountID id.AccountID, code string) (*promo.Redemption, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, account_id, code, created_at, updated_at
FROM qrgate_redemptions WHERE account_id = $1 AND code = $2`, accountID.String(), code)

	var (
		idStr     string
		acctStr   string
		gotCode   string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&idStr, &acctStr, &gotCode, &createdAt, &updatedAt); err != nil {
		if isNoRows(err) {
			return nil, qrgate.ErrNotFound
		}
		return nil, err
	}

	redemptionID, err := id.ParseRedemptionID(idStr)
	if err != nil {
		return nil, err
	}
	acctID, err := id.ParseAccountID(acctStr)
	if err != nil {
		return nil, err
	}
	return &promo.Redemption{
		Entity:    types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:        redemptionID,
		AccountID: acctID,
		Code:      gotCode,
	}, nil
}

// ==================== Helpers ====================

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc rowScanner) (*account.Account, error) {
	var (
		idStr     string
		email     string
		name      string
		picture   string
		tier      string
		expiry    sql.NullTime
		genCount  int64
		createdAt time.Time
		updatedAt time.Time
	)
	if err := sc.Scan(&idStr, &email, &name, &picture, &tier, &expiry, &genCount, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	accountID, err := id.ParseAccountID(idStr)
	if err != nil {
		return nil, err
	}
	a := &account.Account{
		Entity:          types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:              accountID,
		Email:           email,
		Name:            name,
		Picture:         picture,
		Tier:            identity.Tier(tier),
		GenerationCount: genCount,
	}
	if expiry.Valid {
		t := expiry.Time
		a.PremiumExpiry = &t
	}
	return a, nil
}

func scanSession(sc rowScanner) (*session.Session, error) {
	var (
		idStr     string
		acctStr   string
		token     string
		expiresAt time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	if err := sc.Scan(&idStr, &acctStr, &token, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	sessionID, err := id.ParseSessionID(idStr)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(acctStr)
	if err != nil {
		return nil, err
	}
	return &session.Session{
		Entity:    types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:        sessionID,
		AccountID: accountID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func scanArtifact(sc rowScanner) (*artifact.Artifact, error) {
	var (
		idStr      string
		ownerKey   string
		targetURL  string
		width      int
		height     int
		imageRef   string
		downloaded bool
		createdAt  time.Time
		updatedAt  time.Time
	)
	if err := sc.Scan(&idStr, &ownerKey, &targetURL, &width, &height, &imageRef, &downloaded, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	artifactID, err := id.ParseArtifactID(idStr)
	if err != nil {
		return nil, err
	}
	return &artifact.Artifact{
		Entity:     types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:         artifactID,
		OwnerKey:   ownerKey,
		TargetURL:  targetURL,
		Width:      width,
		Height:     height,
		ImageRef:   imageRef,
		Downloaded: downloaded,
	}, nil
}

func scanSubscription(sc rowScanner) (*subscription.Subscription, error) {
	var (
		idStr     string
		acctStr   string
		plan      string
		status    string
		startedAt time.Time
		expiresAt time.Time
		createdAt time.Time
		updatedAt time.Time
	)
	if err := sc.Scan(&idStr, &acctStr, &plan, &status, &startedAt, &expiresAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	subID, err := id.ParseSubscriptionID(idStr)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(acctStr)
	if err != nil {
		return nil, err
	}
	return &subscription.Subscription{
		Entity:    types.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:        subID,
		AccountID: accountID,
		Plan:      plan,
		Status:    subscription.Status(status),
		StartedAt: startedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation matches the SQLSTATE for unique constraint errors
// as surfaced through the pgx stdlib driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "SQLSTATE 23505")
}
