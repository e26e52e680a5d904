package handler

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tutorconnect-api/internal/config"
	"github.com/iliyamo/tutorconnect-api/internal/model"
	"github.com/iliyamo/tutorconnect-api/internal/repository"
	"github.com/iliyamo/tutorconnect-api/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Logger *zap.Logger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Logger: logger}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"` // student | tutor
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User) userPart {
	return userPart{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

// Register creates a student or tutor account and returns tokens
// immediately.  Missing role defaults to student.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleStudent
	}

	fieldErrs := map[string]string{}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		fieldErrs["email"] = "a valid email is required"
	}
	if len(req.Password) < 8 {
		fieldErrs["password"] = "password must be at least 8 characters"
	}
	if strings.TrimSpace(req.FirstName) == "" {
		fieldErrs["firstName"] = "first name is required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		fieldErrs["lastName"] = "last name is required"
	}
	if role != model.RoleStudent && role != model.RoleTutor {
		fieldErrs["role"] = "role must be student or tutor"
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, envelope{Success: false, Message: "Validation error", Errors: fieldErrs})
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		h.Logger.Error("hash password failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, repository.NewUser{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
	})
	if errors.Is(err, repository.ErrEmailExists) {
		return fail(c, http.StatusConflict, "email already exists")
	}
	if err != nil {
		h.Logger.Error("create user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	h.Logger.Info("user registered", zap.String("user_id", uid), zap.String("role", role))

	u := model.User{ID: uid, Email: req.Email, FirstName: strings.TrimSpace(req.FirstName),
		LastName: strings.TrimSpace(req.LastName), Role: role}
	return h.issue(c, ctx, http.StatusCreated, u)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		h.Logger.Error("load user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	return h.issue(c, ctx, http.StatusOK, u)
}

// Refresh validates a refresh token by hash, revokes it and issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return fail(c, http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		h.Logger.Warn("revoke rotated refresh token failed", zap.Error(err))
	}
	u, err := h.Users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusUnauthorized, "invalid refresh")
	}
	if err != nil {
		h.Logger.Error("load user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	return h.issue(c, ctx, http.StatusOK, u)
}

// Logout revokes the refresh token in the body, or every refresh token of
// the authenticated caller when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return fail(c, http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			h.Logger.Error("logout failed", zap.Error(err))
			return fail(c, http.StatusInternalServerError, "logout failed")
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return fail(c, http.StatusBadRequest, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.UserID); err != nil {
		h.Logger.Error("logout failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "logout failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	u, err := h.Users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(c, http.StatusNotFound, "user not found")
	}
	if err != nil {
		h.Logger.Error("load user failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	return ok(c, http.StatusOK, "", toUserPart(u))
}

// issue signs an access token, stores a fresh refresh token and writes the
// auth response.
func (h *AuthHandler) issue(c echo.Context, ctx context.Context, status int, u model.User) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		h.Logger.Error("issue access token failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		h.Logger.Error("issue refresh token failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		h.Logger.Error("store refresh token failed", zap.Error(err))
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
	return ok(c, status, "", authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}
