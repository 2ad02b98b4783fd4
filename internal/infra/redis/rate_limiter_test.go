package redis

import (
	"context"
	"testing"
	"time"
)

// fakeClient counts per-key increments in memory.
type fakeClient struct {
	counts  map[string]int64
	expires map[string]time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{counts: make(map[string]int64), expires: make(map[string]time.Duration)}
}

func (f *fakeClient) Incr(ctx context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.expires[key] = expiration
	return nil
}

func (f *fakeClient) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cli := newFakeClient()
	rl := NewRateLimiter(cli)
	key := AskKey("203.0.113.7")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("request %d within limit must pass", i)
		}
	}

	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("request over the limit must be rejected")
	}

	// The window expiry is set exactly once, on the first increment.
	if exp := cli.expires[key]; exp != time.Minute {
		t.Fatalf("expiry %s, want 1m", exp)
	}

	// A different client is counted separately.
	ok, err = rl.Allow(ctx, AskKey("198.51.100.9"), 3, time.Minute)
	if err != nil || !ok {
		t.Fatalf("other client must pass: ok=%v err=%v", ok, err)
	}
}
