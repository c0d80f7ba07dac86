package database

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestPingWithRetryRecovers(t *testing.T) {
	calls := 0
	err := pingWithRetry(context.Background(), zerolog.Nop(), "test", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("pingWithRetry: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPingWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := pingWithRetry(ctx, zerolog.Nop(), "test", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
