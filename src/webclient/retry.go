package webclient

import (
	"context"
	"fmt"
	"time"
)

type AttemptFunc func() (status int, body []byte, err error)

// DoWithRetry retries the attempt function on transport errors and non-2xx
// responses, waiting a fixed delay between attempts. The last status, body
// and error are returned once attempts are exhausted.
func DoWithRetry(ctx context.Context, attempts int, delay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var (
		status int
		body   []byte
		err    error
	)
	for i := 0; i < attempts; i++ {
		status, body, err = fn()
		if err == nil && status >= 200 && status < 300 {
			return status, body, nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
	}
	if err == nil {
		err = fmt.Errorf("request failed with status %d after %d attempts", status, attempts)
	}
	return status, body, err
}
