package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"critique-backend/internal/shared/server/respond"
)

func TestRateLimitSearchStricterThanDefault(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	groupFor := func(c *gin.Context) string {
		if c.FullPath() == "/search" {
			return "SEARCH"
		}
		return "DEFAULT"
	}

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor:     groupFor,
		Limiter:      limiter,
		Rules: map[string]RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 10},
			"SEARCH":  {Rate: 1, Burst: 2},
		},
	}))
	r.GET("/search", func(c *gin.Context) {
		c.JSON(http.StatusOK, []any{})
	})
	r.GET("/critics", func(c *gin.Context) {
		c.JSON(http.StatusOK, []any{})
	})

	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/search?query=x", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("search request %d expected 200, got %d", i+1, resp.Code)
		}
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/search?query=x", nil))
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("search request 3 expected 429, got %d", resp.Code)
	}

	for i := 0; i < 5; i++ {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/critics", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("default request %d expected 200, got %d", i+1, resp.Code)
		}
	}
}

func TestRateLimitKeysByUserBeforeIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(func(c *gin.Context) {
		SetUserID(c, c.GetHeader("X-Test-User"))
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		Limiter: limiter,
		Rules:   map[string]RateLimitRule{"DEFAULT": {Rate: 1, Burst: 1}},
	}))
	r.POST("/chat/events", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat/events", nil)
		req.Header.Set("X-Test-User", user)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		return resp.Code
	}
	if code := send("alice"); code != http.StatusOK {
		t.Fatalf("alice first: %d", code)
	}
	if code := send("bob"); code != http.StatusOK {
		t.Fatalf("bob first: %d", code)
	}
	if code := send("alice"); code != http.StatusTooManyRequests {
		t.Fatalf("alice second: %d", code)
	}

	now = now.Add(time.Second)
	if code := send("alice"); code != http.StatusOK {
		t.Fatalf("alice after refill: %d", code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		Limiter:      limiter,
		Rules: map[string]RateLimitRule{
			"DEFAULT": {Rate: 1, Burst: 1},
		},
	}))
	r.GET("/indices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, httptest.NewRequest(http.MethodGet, "/indices", nil))
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, httptest.NewRequest(http.MethodGet, "/indices", nil))
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if resp2.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After 1, got %q", resp2.Header().Get("Retry-After"))
	}

	var payload respond.ErrorResponse
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	details, ok := payload.Error.Details.(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %T", payload.Error.Details)
	}
	if _, ok := details["retryAfterMs"]; !ok {
		t.Fatalf("expected retryAfterMs in details")
	}
}

func TestRateLimiterIgnoresDisabledRule(t *testing.T) {
	l := NewRateLimiter(nil)
	for i := 0; i < 10; i++ {
		if ok, _ := l.Allow("k", RateLimitRule{}); !ok {
			t.Fatalf("disabled rule should always allow")
		}
	}
}

func TestRateLimiterSweepDropsRefilledBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 2}

	for _, key := range []string{"alice|DEFAULT", "bob|DEFAULT", "carol|DEFAULT", "alice|DEFAULT"} {
		if ok, _ := limiter.Allow(key, rule); !ok {
			t.Fatalf("expected %s to be allowed", key)
		}
	}

	now = now.Add(1500 * time.Millisecond)
	if removed := limiter.Sweep(); removed != 2 {
		t.Fatalf("expected 2 refilled buckets removed, got %d", removed)
	}
	if _, ok := limiter.buckets["alice|DEFAULT"]; !ok || len(limiter.buckets) != 1 {
		t.Fatalf("expected only alice's bucket to remain, got %v", limiter.buckets)
	}

	now = now.Add(time.Second)
	if removed := limiter.Sweep(); removed != 1 {
		t.Fatalf("expected alice's bucket removed, got %d", removed)
	}
	if len(limiter.buckets) != 0 {
		t.Fatalf("expected no buckets, got %d", len(limiter.buckets))
	}
}

func TestRateLimiterSweepKeepsDrainedBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	if ok, _ := limiter.Allow("alice|DEFAULT", rule); !ok {
		t.Fatalf("expected first request to be allowed")
	}

	now = now.Add(500 * time.Millisecond)
	if removed := limiter.Sweep(); removed != 0 {
		t.Fatalf("expected drained bucket kept, removed %d", removed)
	}
	ok, retryAfter := limiter.Allow("alice|DEFAULT", rule)
	if ok {
		t.Fatalf("expected drained bucket to still limit")
	}
	if retryAfter != 500*time.Millisecond {
		t.Fatalf("expected 500ms retry, got %s", retryAfter)
	}
}

func TestRateLimiterEvictsIdleBucketsWhileServing(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 20, Burst: 40}

	for i := 0; i < 500; i++ {
		if ok, _ := limiter.Allow(fmt.Sprintf("user-%d|DEFAULT", i), rule); !ok {
			t.Fatalf("expected user-%d to be allowed", i)
		}
	}
	if len(limiter.buckets) != 500 {
		t.Fatalf("expected 500 buckets, got %d", len(limiter.buckets))
	}

	now = now.Add(rateSweepInterval)
	if ok, _ := limiter.Allow("late|DEFAULT", rule); !ok {
		t.Fatalf("expected late request to be allowed")
	}
	if len(limiter.buckets) != 1 {
		t.Fatalf("expected idle buckets evicted, got %d", len(limiter.buckets))
	}
}
