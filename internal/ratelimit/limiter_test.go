package ratelimit

import (
	"context"
	"testing"
	"time"

	"yardguard_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testConfig struct {
	max    int
	window time.Duration
}

func (c testConfig) GetRateLimitMax() int              { return c.max }
func (c testConfig) GetRateLimitWindow() time.Duration { return c.window }

func newTestLimiter(t *testing.T, max int, window time.Duration) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return New(rdb, testConfig{max: max, window: window}, logger.New("development")), mr
}

func TestCheckLimitAllowsUpToMax(t *testing.T) {
	limiter, _ := newTestLimiter(t, 3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result := limiter.CheckLimit(ctx, "customer@example.com")
		if !result.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if want := 3 - i - 1; result.Remaining != want {
			t.Errorf("attempt %d remaining = %d, want %d", i+1, result.Remaining, want)
		}
	}

	result := limiter.CheckLimit(ctx, "customer@example.com")
	if result.Allowed {
		t.Fatal("attempt over the limit should be denied")
	}
	if result.Remaining != 0 {
		t.Errorf("denied result remaining = %d, want 0", result.Remaining)
	}
	if result.ResetAt.IsZero() {
		t.Error("denied result should carry a reset time")
	}
}

func TestCheckLimitIsolatesIdentities(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Hour)
	ctx := context.Background()

	if r := limiter.CheckLimit(ctx, "a@example.com"); !r.Allowed {
		t.Fatal("first identity should be allowed")
	}
	if r := limiter.CheckLimit(ctx, "a@example.com"); r.Allowed {
		t.Fatal("first identity should now be blocked")
	}
	if r := limiter.CheckLimit(ctx, "b@example.com"); !r.Allowed {
		t.Fatal("second identity should not share the first identity's window")
	}
}

func TestCheckLimitSlidesWindow(t *testing.T) {
	limiter, mr := newTestLimiter(t, 2, time.Hour)
	ctx := context.Background()

	limiter.CheckLimit(ctx, "customer@example.com")
	limiter.CheckLimit(ctx, "customer@example.com")
	if r := limiter.CheckLimit(ctx, "customer@example.com"); r.Allowed {
		t.Fatal("third attempt inside the window should be denied")
	}

	// Age the recorded attempts out of the window by rewriting their scores.
	key := keyPrefix + "customer@example.com"
	members, err := mr.ZMembers(key)
	if err != nil {
		t.Fatalf("failed to read members: %v", err)
	}
	old := float64(time.Now().Add(-2 * time.Hour).UnixMilli())
	for _, m := range members {
		mr.ZAdd(key, old, m)
	}

	if r := limiter.CheckLimit(ctx, "customer@example.com"); !r.Allowed {
		t.Fatal("attempt after the window expired should be allowed")
	}
}

func TestCheckLimitFailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, time.Hour)
	ctx := context.Background()

	mr.Close()

	for i := 0; i < 5; i++ {
		if r := limiter.CheckLimit(ctx, "customer@example.com"); !r.Allowed {
			t.Fatal("limiter must fail open when Redis is unreachable")
		}
	}
}

func TestCheckLimitFailsOpenWithoutRedis(t *testing.T) {
	limiter := New(nil, testConfig{max: 1, window: time.Hour}, logger.New("development"))
	if r := limiter.CheckLimit(context.Background(), "customer@example.com"); !r.Allowed {
		t.Fatal("limiter must allow when Redis is not configured")
	}
}

func TestEnforceReturnsTypedError(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, time.Hour)
	ctx := context.Background()

	if err := limiter.Enforce(ctx, "customer@example.com"); err != nil {
		t.Fatalf("first attempt: unexpected error %v", err)
	}
	err := limiter.Enforce(ctx, "customer@example.com")
	if err == nil {
		t.Fatal("second attempt should be rate limited")
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Customer@Example.COM ", "customer@example.com"},
		{"user@münchen.de", "user@xn--mnchen-3ya.de"},
		{"no-at-sign", "no-at-sign"},
	}
	for _, tc := range tests {
		if got := NormalizeKey(tc.in); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCheckLimitCountsConcurrentAttempts(t *testing.T) {
	limiter, _ := newTestLimiter(t, 10, time.Hour)
	ctx := context.Background()

	done := make(chan Result, 20)
	for i := 0; i < 20; i++ {
		go func() {
			done <- limiter.CheckLimit(ctx, "shared@example.com")
		}()
	}

	allowed := 0
	for i := 0; i < 20; i++ {
		if r := <-done; r.Allowed {
			allowed++
		}
	}
	if allowed > 10 {
		t.Errorf("allowed %d concurrent attempts, limit is 10", allowed)
	}
}

func TestCheckLimitRecordsEveryAttempt(t *testing.T) {
	limiter, mr := newTestLimiter(t, 100, time.Hour)
	ctx := context.Background()

	// Attempts landing on the same clock tick must still count separately.
	for i := 0; i < 50; i++ {
		limiter.CheckLimit(ctx, "burst@example.com")
	}

	members, err := mr.ZMembers(keyPrefix + NormalizeKey("burst@example.com"))
	if err != nil {
		t.Fatalf("reading window members: %v", err)
	}
	if len(members) != 50 {
		t.Errorf("window holds %d members, want 50", len(members))
	}
}
