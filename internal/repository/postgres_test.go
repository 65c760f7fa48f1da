package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func shortenRetryDelays(t *testing.T) {
	t.Helper()
	saved := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { retryDelays = saved })
}

func TestWithRetry_WrapsExhaustedConflicts(t *testing.T) {
	shortenRetryDelays(t)

	tests := []struct {
		name string
		code string
	}{
		{name: "serialization failure", code: pgerrcode.SerializationFailure},
		{name: "deadlock detected", code: pgerrcode.DeadlockDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &PostgresRepository{}
			calls := 0
			err := r.withRetry(context.Background(), func() error {
				calls++
				return &pgconn.PgError{Code: tt.code}
			})

			if !errors.Is(err, ErrTransactionConflict) {
				t.Fatalf("expected ErrTransactionConflict, got %v", err)
			}
			if calls != len(retryDelays)+1 {
				t.Fatalf("calls = %d, want %d", calls, len(retryDelays)+1)
			}
		})
	}
}

func TestWithRetry_DoesNotRetryNumberCollision(t *testing.T) {
	r := &PostgresRepository{}
	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return fmt.Errorf("%w: 20260101000000-1-0001", ErrOrderNumberTaken)
	})

	if !errors.Is(err, ErrOrderNumberTaken) {
		t.Fatalf("expected ErrOrderNumberTaken, got %v", err)
	}
	if errors.Is(err, ErrTransactionConflict) {
		t.Fatalf("number collision must not be classified as transaction conflict")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_StopsOnContextError(t *testing.T) {
	r := &PostgresRepository{}
	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return context.Canceled
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_SucceedsAfterTransientConflict(t *testing.T) {
	shortenRetryDelays(t)

	r := &PostgresRepository{}
	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
