package db

import "context"

// Schema is applied idempotently at startup. Migration tooling is deliberately
// out of scope; every statement here must be safe to re-run.
const Schema = `
CREATE TABLE IF NOT EXISTS players (
	id          BIGSERIAL PRIMARY KEY,
	alliance_id BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_players_alliance ON players (alliance_id);

CREATE TABLE IF NOT EXISTS player_aliases (
	id          BIGSERIAL PRIMARY KEY,
	player_id   BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	alliance_id BIGINT NOT NULL,
	alias       TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL,
	UNIQUE (alliance_id, alias)
);
CREATE INDEX IF NOT EXISTS idx_aliases_player ON player_aliases (player_id);

CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	alliance_id BIGINT NOT NULL,
	variant     TEXT NOT NULL,
	key         TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ,
	rally_count INT,
	total_value BIGINT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (alliance_id, variant, key, started_at)
);
CREATE INDEX IF NOT EXISTS idx_events_lookup ON events (alliance_id, variant, key, started_at);

CREATE TABLE IF NOT EXISTS leaf_records (
	id            BIGSERIAL PRIMARY KEY,
	event_id      BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
	player_id     BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
	kind          TEXT NOT NULL,
	value         BIGINT NOT NULL DEFAULT 0,
	rank          INT,
	furnace       INT,
	voted         BOOLEAN NOT NULL DEFAULT FALSE,
	flagged       BOOLEAN NOT NULL DEFAULT FALSE,
	flag_reason   TEXT NOT NULL DEFAULT '',
	recorded_at   TIMESTAMPTZ NOT NULL,
	screenshot_id BIGINT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (event_id, player_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_leaf_player ON leaf_records (player_id);

CREATE TABLE IF NOT EXISTS screenshots (
	id            BIGSERIAL PRIMARY KEY,
	alliance_id   BIGINT NOT NULL,
	filename      TEXT NOT NULL DEFAULT '',
	sha256        TEXT NOT NULL DEFAULT '',
	detected_type TEXT NOT NULL DEFAULT 'unknown',
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'pending',
	note          TEXT NOT NULL DEFAULT '',
	archive_url   TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	degraded      BOOLEAN NOT NULL DEFAULT FALSE,
	records_saved INT NOT NULL DEFAULT 0,
	captured_at   TIMESTAMPTZ,
	processed_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_screenshots_status ON screenshots (status);

CREATE TABLE IF NOT EXISTS classification_audit (
	id            BIGSERIAL PRIMARY KEY,
	screenshot_id BIGINT NOT NULL,
	detected_type TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	method        TEXT NOT NULL,
	text_preview  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS match_audit (
	id            BIGSERIAL PRIMARY KEY,
	alliance_id   BIGINT NOT NULL,
	screenshot_id BIGINT,
	raw_text      TEXT NOT NULL,
	matched_alias TEXT NOT NULL DEFAULT '',
	player_id     BIGINT,
	distance      INT NOT NULL DEFAULT 0,
	decision      TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS alliance_power_snapshots (
	id            BIGSERIAL PRIMARY KEY,
	alliance_name TEXT NOT NULL,
	alliance_tag  TEXT NOT NULL DEFAULT '',
	total_power   BIGINT NOT NULL,
	rank          INT NOT NULL,
	snapshot_date TIMESTAMPTZ NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_alliance_power_date ON alliance_power_snapshots (snapshot_date);
`

func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, Schema)
	return err
}
