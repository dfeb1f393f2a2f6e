package middlewares

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/inkwelldev/inkwell/internal/auth"
)

type stubVerifier struct {
	claims *auth.Claims
	err    error
}

func (s *stubVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func authedRouter(v TokenVerifier) *gin.Engine {
	r := gin.New()

	m := NewAuthMiddleware(v)

	r.GET("/secret", m.RequireAuth(), func(c *gin.Context) {
		id, _ := UserIDFromContext(c)
		role, _ := RoleFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": role})
	})

	return r
}

func TestRequireAuth(t *testing.T) {
	valid := &stubVerifier{claims: &auth.Claims{UserID: "user-1", Email: "u1@example.com", Role: "admin"}}
	broken := &stubVerifier{err: errors.New("bad token")}

	tests := []struct {
		name           string
		verifier       TokenVerifier
		header         string
		wantStatusCode int
	}{
		{name: "no_header", verifier: valid, header: "", wantStatusCode: http.StatusUnauthorized},
		{name: "not_bearer", verifier: valid, header: "Basic abc", wantStatusCode: http.StatusUnauthorized},
		{name: "empty_token", verifier: valid, header: "Bearer ", wantStatusCode: http.StatusUnauthorized},
		{name: "invalid_token", verifier: broken, header: "Bearer x", wantStatusCode: http.StatusUnauthorized},
		{name: "valid_token", verifier: valid, header: "Bearer x", wantStatusCode: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := authedRouter(tt.verifier)

			req := httptest.NewRequest(http.MethodGet, "/secret", nil)

			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestRequireAuthStashesIdentity(t *testing.T) {
	r := authedRouter(&stubVerifier{claims: &auth.Claims{UserID: "user-1", Role: "admin"}})

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("Authorization", "Bearer x")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	body := w.Body.String()

	for _, want := range []string{`"id":"user-1"`, `"role":"admin"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
}
