// Package sqlitetest opens an in-memory ledger database for package tests.
package sqlitetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clubsphere/clubsphere-backend/pkg/db"
)

var seq atomic.Int64

// Schema mirrors the goose migrations using sqlite types, including the partial unique indexes.
var Schema = []string{
	`CREATE TABLE clubs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		banner_image TEXT,
		manager_id TEXT NOT NULL,
		membership_fee_cents INTEGER NOT NULL DEFAULT 0 CHECK (membership_fee_cents >= 0),
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		club_id TEXT NOT NULL REFERENCES clubs(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		event_date DATETIME NOT NULL,
		is_paid BOOLEAN NOT NULL DEFAULT 0,
		event_fee_cents INTEGER NOT NULL DEFAULT 0 CHECK (event_fee_cents >= 0),
		max_attendees INTEGER NOT NULL DEFAULT 0 CHECK (max_attendees >= 0),
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		club_id TEXT NOT NULL REFERENCES clubs(id),
		event_id TEXT REFERENCES events(id),
		amount_cents INTEGER NOT NULL CHECK (amount_cents >= 0),
		currency TEXT NOT NULL DEFAULT 'usd',
		external_ref TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		flagged_for_refund BOOLEAN NOT NULL DEFAULT 0,
		failure_reason TEXT,
		gateway_snapshot TEXT,
		confirmed_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_payments_external_ref ON payments(external_ref)`,
	`CREATE TABLE memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		club_id TEXT NOT NULL REFERENCES clubs(id),
		status TEXT NOT NULL DEFAULT 'active',
		payment_id TEXT REFERENCES payments(id),
		created_at DATETIME NOT NULL,
		expires_at DATETIME,
		expired_at DATETIME,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_memberships_active_user_club ON memberships(user_id, club_id) WHERE status = 'active'`,
	`CREATE UNIQUE INDEX ux_memberships_payment ON memberships(payment_id) WHERE payment_id IS NOT NULL`,
	`CREATE TABLE event_registrations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL REFERENCES events(id),
		club_id TEXT NOT NULL REFERENCES clubs(id),
		status TEXT NOT NULL DEFAULT 'registered',
		payment_id TEXT REFERENCES payments(id),
		registered_at DATETIME NOT NULL,
		cancelled_at DATETIME,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_event_registrations_active_user_event ON event_registrations(user_id, event_id) WHERE status = 'registered'`,
	`CREATE UNIQUE INDEX ux_event_registrations_payment ON event_registrations(payment_id) WHERE payment_id IS NOT NULL`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a fresh, isolated in-memory database with the ledger schema.
// The pool is capped at one connection so concurrent transactions serialize
// instead of failing with SQLITE_LOCKED.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// Client wraps Open in the db.Client used by services.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.Wrap(conn), conn
}
