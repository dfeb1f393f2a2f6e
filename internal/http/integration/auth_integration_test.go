package integration__test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestAuthIntegration_Signup_Refresh_Logout(t *testing.T) {
	router, pool := setupTestRouter(t)
	resetDB(t, pool)

	defer resetDB(t, pool)

	// sign up

	signupBody := `{"email":"sam@example.com","password":"password123","name":"Sam Doe"}`

	w, response := doRequest(router, http.MethodPost, "/auth/signup", signupBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("signup got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var signupToken tokenResponse

	mustReadJSON(t, w, &signupToken)

	if strings.TrimSpace(signupToken.AccessToken) == "" {
		t.Fatalf("signup expected accessToken, got empty")
	}

	signupRefresh := refreshCookie(t, response)

	// refresh (happy path)

	w2, response2 := doRequest(router, http.MethodPost, "/auth/refresh", "", signupRefresh)

	if w2.Code != http.StatusOK {
		t.Fatalf("refresh got status %d, want %d, body=%s", w2.Code, http.StatusOK, w2.Body.String())
	}

	var refreshed tokenResponse
	mustReadJSON(t, w2, &refreshed)

	if strings.TrimSpace(refreshed.AccessToken) == "" {
		t.Fatalf("refresh expected access token, got empty")
	}

	rotatedRefresh := refreshCookie(t, response2)

	// the old cookie is dead after rotation

	w3, _ := doRequest(router, http.MethodPost, "/auth/refresh", "", signupRefresh)
	if w3.Code != http.StatusUnauthorized {
		t.Fatalf("refresh(old cookie) got status %d, want %d, body=%s", w3.Code, http.StatusUnauthorized, w3.Body.String())
	}

	// the rotated cookie still works

	w4, _ := doRequest(router, http.MethodPost, "/auth/refresh", "", rotatedRefresh)

	if w4.Code != http.StatusOK {
		t.Fatalf("refresh(new cookie) got status %d, want %d, body=%s", w4.Code, http.StatusOK, w4.Body.String())
	}

	rotatedAgain := refreshCookie(t, w4.Result())

	// logout revokes and clears the cookie

	w5, response5 := doRequest(router, http.MethodPost, "/auth/logout", "", rotatedAgain)

	if w5.Code != http.StatusNoContent {
		t.Fatalf("logout got status %d, want %d, body=%s", w5.Code, http.StatusNoContent, w5.Body.String())
	}

	cleared := false

	for _, c := range response5.Cookies() {
		if c.Name == "refresh_token" && (c.MaxAge < 0 || c.Value == "") {
			cleared = true
		}
	}

	if !cleared {
		t.Fatalf("expected logout to clear refresh_token cookie")
	}

	// refresh after logout fails

	w6, _ := doRequest(router, http.MethodPost, "/auth/refresh", "", rotatedAgain)
	if w6.Code != http.StatusUnauthorized {
		t.Fatalf("refresh(after logout) got status %d, want %d, body=%s", w6.Code, http.StatusUnauthorized, w6.Body.String())
	}
}

func TestAuthIntegration_LogoutAll_RevokesEverySession(t *testing.T) {
	router, pool := setupTestRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	// two sessions for the same user: one from signup, one from login

	w1, response1 := doRequest(router, http.MethodPost, "/auth/signup", `{"email":"sam@example.com","password":"password123","name":"Sam Doe"}`)

	if w1.Code != http.StatusCreated {
		t.Fatalf("signup got status %d, body=%s", w1.Code, w1.Body.String())
	}

	firstSession := refreshCookie(t, response1)

	w2, response2 := doRequest(router, http.MethodPost, "/auth/login", `{"email":"sam@example.com","password":"password123"}`)

	if w2.Code != http.StatusOK {
		t.Fatalf("login got status %d, body=%s", w2.Code, w2.Body.String())
	}

	secondSession := refreshCookie(t, response2)

	// logging out everywhere from the second device kills both

	w3, _ := doRequest(router, http.MethodPost, "/auth/logout-all", "", secondSession)

	if w3.Code != http.StatusNoContent {
		t.Fatalf("logout-all got status %d, want %d, body=%s", w3.Code, http.StatusNoContent, w3.Body.String())
	}

	w4, _ := doRequest(router, http.MethodPost, "/auth/refresh", "", firstSession)
	if w4.Code != http.StatusUnauthorized {
		t.Fatalf("refresh(first session) got status %d, want 401, body=%s", w4.Code, w4.Body.String())
	}

	w5, _ := doRequest(router, http.MethodPost, "/auth/refresh", "", secondSession)
	if w5.Code != http.StatusUnauthorized {
		t.Fatalf("refresh(second session) got status %d, want 401, body=%s", w5.Code, w5.Body.String())
	}
}

func TestAuthIntegration_Refresh_MissingCookie(t *testing.T) {
	router, pool := setupTestRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	w, _ := doRequest(router, http.MethodPost, "/auth/refresh", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh(missing cookie) got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}

	var e apiErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Error.Code != "no_refresh" {
		t.Fatalf("expected no_refresh, got %s", e.Error.Code)
	}
}

func TestAuthIntegration_Login(t *testing.T) {
	router, pool := setupTestRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	signUp(t, router, "sam@example.com", "Sam Doe")

	// correct credentials

	w, _ := doRequest(router, http.MethodPost, "/auth/login", `{"email":"sam@example.com","password":"password123"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("login got status %d, body=%s", w.Code, w.Body.String())
	}

	var token tokenResponse
	mustReadJSON(t, w, &token)

	if token.User.Email != "sam@example.com" {
		t.Fatalf("login returned wrong user: %+v", token.User)
	}

	// wrong password

	w2, _ := doRequest(router, http.MethodPost, "/auth/login", `{"email":"sam@example.com","password":"wrong-password"}`)

	if w2.Code != http.StatusUnauthorized {
		t.Fatalf("login(wrong password) got status %d, want %d, body=%s", w2.Code, http.StatusUnauthorized, w2.Body.String())
	}

	// unknown user

	w3, _ := doRequest(router, http.MethodPost, "/auth/login", `{"email":"nope@example.com","password":"whatever"}`)

	if w3.Code != http.StatusUnauthorized {
		t.Fatalf("login(unknown user) got status %d, want %d, body=%s", w3.Code, http.StatusUnauthorized, w3.Body.String())
	}
}

func TestAuthIntegration_DuplicateSignup(t *testing.T) {
	router, pool := setupTestRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	signUp(t, router, "sam@example.com", "Sam Doe")

	w, _ := doRequest(router, http.MethodPost, "/auth/signup", `{"email":"sam@example.com","password":"password123","name":"Other Sam"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}
