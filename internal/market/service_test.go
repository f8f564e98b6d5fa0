package market

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsSerializationError(t *testing.T) {
	serErr := &pgconn.PgError{Code: "40001"}
	if !isSerializationError(serErr) {
		t.Fatalf("expected 40001 to be a serialization error")
	}
	if !isSerializationError(fmt.Errorf("commit: %w", serErr)) {
		t.Fatalf("expected wrapped 40001 to be detected")
	}
	if isSerializationError(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("unique violation is not a serialization error")
	}
	if isSerializationError(errors.New("plain error")) {
		t.Fatalf("plain error is not a serialization error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("expected 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failure is not a unique violation")
	}
	if isUniqueViolation(nil) {
		t.Fatalf("nil is not a unique violation")
	}
}
