package integration__test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwelldev/inkwell/internal/config"
	"github.com/inkwelldev/inkwell/internal/db"
	apphttp "github.com/inkwelldev/inkwell/internal/http"
	"github.com/jackc/pgx/v5/pgxpool"
)

func testConfig() config.Config {
	return config.Config{
		Env:                 "test",
		Port:                0,
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
	}
}

// setupTestRouter gives back a router wired to the test database. Tests
// are skipped when TEST_DB_DSN is not set.
func setupTestRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)

	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}

	t.Cleanup(pool.Close)

	if err := db.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("failed to ensure schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := apphttp.NewRouter(logger, pool, testConfig())

	return router, pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE refresh_tokens, posts, users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	} `json:"user"`
}

type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type postResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Body          string    `json:"body"`
	FeaturedImage string    `json:"featuredImage"`
	Published     bool      `json:"published"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Author        struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author"`
}

type postListResponse struct {
	Items      []postResponse `json:"items"`
	Count      int            `json:"count"`
	NextCursor string         `json:"nextCursor"`
}

func doRequest(router http.Handler, method, path string, body string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *http.Response) {
	return doAuthedRequest(router, method, path, body, "", cookies...)
}

func doAuthedRequest(router http.Handler, method, path string, body string, accessToken string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *http.Response) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" && (method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch) {
		req.Header.Set("Content-Type", "application/json")
	}

	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w, w.Result()
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()

	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

// signUp creates a user through the API and returns its session.
func signUp(t *testing.T, router http.Handler, email, name string) tokenResponse {
	t.Helper()

	body := `{"email":"` + email + `","password":"password123","name":"` + name + `"}`

	w, _ := doRequest(router, http.MethodPost, "/auth/signup", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("signup got status %d, body=%s", w.Code, w.Body.String())
	}

	var token tokenResponse
	mustReadJSON(t, w, &token)

	return token
}

func refreshCookie(t *testing.T, response *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range response.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}

	t.Fatalf("refresh_token cookie not found in response")

	return nil
}
