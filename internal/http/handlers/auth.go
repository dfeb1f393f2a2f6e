package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/inkwelldev/inkwell/internal/auth"
	"github.com/inkwelldev/inkwell/internal/config"
	"github.com/inkwelldev/inkwell/internal/domain/user"
	"github.com/inkwelldev/inkwell/internal/repo/postgres"
	"github.com/inkwelldev/inkwell/internal/security"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type UserWriter interface {
	Create(ctx context.Context, email, passwordHash, name, role string) (user.User, error)
	UpsertOAuth(ctx context.Context, email, name, image string) (user.User, error)
}

// GoogleAuthenticator is the slice of the oauth client the handler needs.
type GoogleAuthenticator interface {
	Enabled() bool
	AuthURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (auth.GoogleProfile, error)
}

type AuthHandler struct {
	users        UserReader
	userWriter   UserWriter
	jwt          *auth.Manager
	google       GoogleAuthenticator
	refreshStore *postgres.RefreshTokensRepo
	cfg          config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, google GoogleAuthenticator, refreshStore *postgres.RefreshTokensRepo, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:        users,
		userWriter:   userWriter,
		jwt:          jwtManager,
		google:       google,
		refreshStore: refreshStore,
		cfg:          cfg,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	u, err := h.userWriter.Create(cctx, req.Email, hash, req.Name, "")

	if err != nil {
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			RespondBadRequest(ctx, "Email is already in use.", nil)
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	h.issueSession(ctx, cctx, u, http.StatusCreated)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}
	// short timeout for DB lookup
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	// oauth-only accounts have no password hash
	if foundUser.PasswordHash == "" {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	err = security.CheckPassword(foundUser.PasswordHash, req.Password)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	h.issueSession(ctx, cctx, foundUser, http.StatusOK)
}

// Google sign-in

// GET /auth/google

func (h *AuthHandler) GoogleRedirect(ctx *gin.Context) {
	if h.google == nil || !h.google.Enabled() {
		RespondError(ctx, http.StatusNotImplemented, "not_configured", "Google sign-in is not configured", nil)
		return
	}

	state := uuid.NewString()

	url, err := h.google.AuthURL(state)

	if err != nil {
		RespondInternal(ctx, "Could not start Google sign-in")
		return
	}

	h.setStateCookie(ctx, state)

	ctx.Redirect(http.StatusTemporaryRedirect, url)
}

// GET /auth/google/callback

func (h *AuthHandler) GoogleCallback(ctx *gin.Context) {
	if h.google == nil || !h.google.Enabled() {
		RespondError(ctx, http.StatusNotImplemented, "not_configured", "Google sign-in is not configured", nil)
		return
	}

	state := ctx.Query("state")
	cookieState, err := ctx.Cookie(h.stateCookieName())

	if err != nil || state == "" || state != cookieState {
		RespondUnAuthorized(ctx, "invalid_state", "OAuth state mismatch")
		return
	}

	h.clearStateCookie(ctx)

	code := ctx.Query("code")

	if code == "" {
		RespondBadRequest(ctx, "missing code parameter", nil)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	profile, err := h.google.Exchange(cctx, code)

	if err != nil {
		RespondUnAuthorized(ctx, "oauth_failed", "Could not verify Google sign-in")
		return
	}

	// account is created on first successful sign-in
	u, err := h.userWriter.UpsertOAuth(cctx, profile.Email, profile.Name, profile.Picture)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	h.issueSession(ctx, cctx, u, http.StatusOK)
}

// Refresh rotates the refresh token inside a row-locked transaction.

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.refreshStore.GetForUpdate(cctx, tx, claims.JTI)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if row.RevokedAt != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	}

	// verify hash matches the presented token (prevents token substitution)

	if row.TokenHash != h.jwt.HashRefreshToken(raw) {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	}

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(row.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// revoke old, insert new

	err = h.refreshStore.Revoke(cctx, tx, row.ID, &newJTI)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRow := postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    row.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(cctx, tx, newRow)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = tx.Commit(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	accessToken, err := h.jwt.GenerateAccessToken(row.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		// still clear cookie to be safe
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	// revoke that one token (idempotent)
	_ = h.refreshStore.Revoke(cctx, tx, claims.JTI, nil)
	_ = tx.Commit(cctx)

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// LogoutAll revokes every live refresh token the user holds, ending the
// session on all devices at once.
func (h *AuthHandler) LogoutAll(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	_ = h.refreshStore.RevokeAllForUser(cctx, tx, claims.UserID)
	_ = tx.Commit(cctx)

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// helpers

// issueSession mints the access token, persists a refresh token and writes
// the standard session response.
func (h *AuthHandler) issueSession(ctx *gin.Context, cctx context.Context, u user.User, status int) {
	accessToken, err := h.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	rawRefreshToken, jti, expiresAt, err := h.jwt.GenerateRefreshToken(u.ID, u.Email, u.Role)

	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	if err := h.storeRefreshToken(cctx, u.ID, jti, rawRefreshToken, expiresAt); err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.setRefreshCookie(ctx, rawRefreshToken, expiresAt)

	ctx.JSON(status, gin.H{
		"accessToken": accessToken,
		"user": gin.H{
			"id":    u.ID,
			"email": u.Email,
			"name":  u.Name,
			"image": u.Image,
			"role":  u.Role,
		},
	})
}

func (h *AuthHandler) storeRefreshToken(ctx context.Context, userID, jti, raw string, expiresAt time.Time) error {
	tx, err := h.refreshStore.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    userID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(ctx, tx, row)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) stateCookieName() string {
	return "oauth_state"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}

func (h *AuthHandler) setStateCookie(ctx *gin.Context, state string) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		h.stateCookieName(),
		state,
		300, // five minutes to complete the consent screen
		"/auth",
		"",
		secure,
		true,
	)
}

func (h *AuthHandler) clearStateCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		h.stateCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}
