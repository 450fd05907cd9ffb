package webclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	status, body, err := DoWithRetry(context.Background(), 3, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 200, []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
	if status != 200 || string(body) != "ok" {
		t.Errorf("unexpected result: %d %q", status, body)
	}
}

func TestDoWithRetryRetriesTransportError(t *testing.T) {
	calls := 0
	status, _, err := DoWithRetry(context.Background(), 3, time.Millisecond, func() (int, []byte, error) {
		calls++
		if calls < 3 {
			return 0, nil, errors.New("connection refused")
		}
		return 200, nil, nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if status != 200 {
		t.Errorf("expected status 200, got %d", status)
	}
}

func TestDoWithRetryTreatsNon2xxAsFailure(t *testing.T) {
	calls := 0
	status, _, err := DoWithRetry(context.Background(), 3, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 502, nil, nil
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if status != 502 {
		t.Errorf("expected last status 502, got %d", status)
	}
}

func TestDoWithRetryExhaustionReturnsLastError(t *testing.T) {
	wantErr := errors.New("boom")
	calls := 0
	_, _, err := DoWithRetry(context.Background(), 2, time.Millisecond, func() (int, []byte, error) {
		calls++
		return 0, nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestDoWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _, err := DoWithRetry(ctx, 5, time.Hour, func() (int, []byte, error) {
			calls++
			return 500, nil, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("DoWithRetry did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}
