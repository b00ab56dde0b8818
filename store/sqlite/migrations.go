package sqlite

// migration is one schema step. Steps are applied in order by
// Store.Migrate and tracked in qrgate_migrations by name.
type migration struct {
	name string
	up   string
}

var migrations = []migration{
	{
		name: "create_qrgate_accounts",
		up: `
CREATE TABLE IF NOT EXISTS qrgate_accounts (
    id               TEXT PRIMARY KEY,
    email            TEXT NOT NULL UNIQUE,
    name             TEXT NOT NULL DEFAULT '',
    picture          TEXT NOT NULL DEFAULT '',
    tier             TEXT NOT NULL DEFAULT 'standard',
    premium_expiry   TIMESTAMP,
    generation_count INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL
);
`,
	},
	{
		name: "create_qrgate_sessions",
		up: `
CREATE TABLE IF NOT EXISTS qrgate_sessions (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    token      TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qrgate_sessions_account ON qrgate_sessions (account_id);
CREATE INDEX IF NOT EXISTS idx_qrgate_sessions_expires ON qrgate_sessions (expires_at);
`,
	},
	{
		name: "create_qrgate_artifacts",
		up: `
CREATE TABLE IF NOT EXISTS qrgate_artifacts (
    id         TEXT PRIMARY KEY,
    owner_key  TEXT NOT NULL,
    url        TEXT NOT NULL DEFAULT '',
    width      INTEGER NOT NULL DEFAULT 0,
    height     INTEGER NOT NULL DEFAULT 0,
    image_ref  TEXT NOT NULL DEFAULT '',
    downloaded INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qrgate_artifacts_owner ON qrgate_artifacts (owner_key, created_at);
`,
	},
	{
		name: "create_qrgate_subscriptions",
		up: `
CREATE TABLE IF NOT EXISTS qrgate_subscriptions (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    plan       TEXT NOT NULL DEFAULT 'monthly',
    status     TEXT NOT NULL DEFAULT 'active',
    started_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qrgate_subs_account ON qrgate_subscriptions (account_id, status, started_at);
`,
	},
	{
		name: "create_qrgate_redemptions",
		up: `
CREATE TABLE IF NOT EXISTS qrgate_redemptions (
    id         TEXT PRIMARY KEY,
    account_id TEXT NOT NULL,
    code       TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_qrgate_redemptions_account_code ON qrgate_redemptions (account_id, code);
`,
	},
}
