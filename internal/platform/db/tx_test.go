package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "prescriptions_user_diagnosis_key"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"plain error", errors.New("boom"), "", false},
		{"any constraint", dup, "", true},
		{"wrapped", fmt.Errorf("insert: %w", dup), "", true},
		{"matching constraint", dup, "prescriptions_user_diagnosis_key", true},
		{"other constraint", dup, "users_email_key", false},
		{"other code", &pgconn.PgError{Code: "23503"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("IsUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(pgx.ErrNoRows) {
		t.Error("expected pgx.ErrNoRows to match")
	}
	if !IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped pgx.ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Error("expected unrelated error not to match")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected no transaction on a bare context")
	}
}
