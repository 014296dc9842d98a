package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_memberships_active_user_club"}
	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg any", err: fmt.Errorf("insert: %w", pgErr), want: true},
		{name: "pg named", err: pgErr, constraint: "ux_memberships_active_user_club", want: true},
		{name: "pg other constraint", err: pgErr, constraint: "ux_payments_external_ref", want: false},
		{name: "pg other code", err: &pgconn.PgError{Code: "23503"}, want: false},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: memberships.user_id, memberships.club_id"), constraint: "ux_memberships_active_user_club", want: true},
		{name: "text", err: errors.New(`duplicate key value violates unique constraint "ux_payments_external_ref"`), constraint: "ux_payments_external_ref", want: true},
		{name: "unrelated", err: errors.New("connection reset"), want: false},
	}
	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)) {
		t.Fatal("expected wrapped record-not-found to match")
	}
	if IsNotFound(errors.New("other")) {
		t.Fatal("unexpected match")
	}
}
