package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// PostgresSchema creates the session, ledger and admin tables.
var PostgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		session_id       TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		status           TEXT NOT NULL,
		start_time       TIMESTAMPTZ NOT NULL,
		end_time         TIMESTAMPTZ,
		duration_ms      BIGINT,
		page_views       BIGINT NOT NULL DEFAULT 0,
		event_count      BIGINT NOT NULL DEFAULT 0,
		entry_page       TEXT,
		exit_page        TEXT,
		metadata         JSONB NOT NULL DEFAULT '{}',
		last_activity_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status_activity ON sessions (status, last_activity_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS visitor_ledger (
		user_id         TEXT PRIMARY KEY,
		total_events    BIGINT NOT NULL DEFAULT 0,
		total_sessions  BIGINT NOT NULL DEFAULT 0,
		total_purchases BIGINT NOT NULL DEFAULT 0,
		total_revenue   DOUBLE PRECISION NOT NULL DEFAULT 0,
		first_seen      TIMESTAMPTZ NOT NULL,
		last_seen       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS admin_users (
		id              SERIAL PRIMARY KEY,
		email           TEXT NOT NULL UNIQUE,
		hashed_password BYTEA NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// ClickHouseSchema creates the append-only event table.
var ClickHouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS visitor_events (
		event_id    String,
		user_id     String,
		session_id  String,
		event_type  LowCardinality(String),
		timestamp   DateTime64(3, 'UTC'),
		properties  String,
		metadata    Map(String, String),
		page_url    String,
		referrer    String,
		duration_ms Nullable(Int64)
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, event_id)`,
}

func EnsurePostgresSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range PostgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying postgres schema: %w", err)
		}
	}
	return nil
}

func EnsureClickHouseSchema(ctx context.Context, conn clickhouse.Conn) error {
	for _, stmt := range ClickHouseSchema {
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying clickhouse schema: %w", err)
		}
	}
	return nil
}
