package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(rl *RateLimiter, keyFn func(*gin.Context) string) *gin.Engine {
	r := gin.New()

	r.GET("/ping", rl.RateLimiterMiddleware(keyFn), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return r
}

func hit(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestRateLimiterEnforcesLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	r := limitedRouter(rl, KeyByIP)

	for i := 0; i < 3; i++ {
		if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got status %d", i, w.Code)
		}
	}

	w := hit(r, "10.0.0.1:1234")

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", w.Code)
	}

	if w.Header().Get("Retry-After") == "" {
		t.Error("no Retry-After header on 429")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	r := limitedRouter(rl, KeyByIP)

	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("first client: got status %d", w.Code)
	}
	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client second hit: got status %d, want 429", w.Code)
	}

	// a different client gets its own bucket
	if w := hit(r, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Fatalf("second client: got status %d", w.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	r := limitedRouter(rl, KeyByIP)

	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}
	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d, want 429", w.Code)
	}

	time.Sleep(30 * time.Millisecond)

	if w := hit(r, "10.0.0.1:1234"); w.Code != http.StatusOK {
		t.Fatalf("after window: got status %d", w.Code)
	}
}

func TestKeyByUserOrIPPrefersUser(t *testing.T) {
	r := gin.New()

	var key string

	r.GET("/k", func(c *gin.Context) {
		c.Set(ctxUserIDKey, "user-1")
		key = KeyByUserOrIP(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/k", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if key != "user:user-1" {
		t.Fatalf("key = %q, want user:user-1", key)
	}
}
