package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"smart-coop/internal/auth"
	"smart-coop/internal/history"
	"smart-coop/internal/middleware"
	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/repository"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// AuthDeps wires AuthHandler.
type AuthDeps struct {
	Users      *repository.UserRepository
	Sessions   *auth.TokenManager
	Revoker    *auth.Revoker
	History    *history.Service
	Mailer     notify.Mailer
	Clock      clockwork.Clock
	Logger     *slog.Logger
	BcryptCost int

	// CodeLimiter throttles code login per client IP; nil disables it.
	CodeLimiter *auth.AttemptLimiter
}

// AuthHandler serves registration, login, logout and login code rotation.
type AuthHandler struct {
	AuthDeps
}

func NewAuthHandler(d AuthDeps) *AuthHandler {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &AuthHandler{AuthDeps: d}
}

// ---------- register ----------

type registerReq struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "username, email and password are required")
		return
	}
	ctx := c.Request.Context()

	req.Username = strings.TrimSpace(req.Username)
	req.Email = util.NormalizeEmail(req.Email)
	if err := util.ValidateUsername(req.Username); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if err := util.ValidateEmail(req.Email); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid email address")
		return
	}
	if err := util.ValidatePassword(req.Password); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	role, ok := h.registrationRole(c, req.Role)
	if !ok {
		return
	}

	nameTaken, emailTaken, err := h.Users.Taken(ctx, req.Username, req.Email, 0)
	if err != nil {
		serverError(c, h.Logger, "failed to check user", err)
		return
	}
	if nameTaken {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "username already taken")
		return
	}
	if emailTaken {
		util.Error(c, http.StatusBadRequest, util.CodeConflict, "email already registered")
		return
	}

	hash, err := util.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		serverError(c, h.Logger, "failed to hash password", err)
		return
	}
	code, err := h.uniqueCode(ctx)
	if err != nil {
		serverError(c, h.Logger, "failed to generate login code", err)
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Code:         code,
		Role:         role,
		Status:       models.StatusActive,
		ReminderDays: 2,
	}
	if err := h.Users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "username or email already registered")
			return
		}
		serverError(c, h.Logger, "failed to create user", err)
		return
	}

	h.send(ctx, notify.Credentials(user.Email, user.Username, code))
	h.History.LogUser(ctx, user.ID, models.HistoryUser, "user_registered",
		fmt.Sprintf("account %s created", user.Username), map[string]interface{}{"role": user.Role})

	util.Created(c, util.Response{
		"message": "registration successful",
		"user":    userResponse(&user),
		"code":    code,
	})
}

// registrationRole allows "admin" only while no admin exists, so the
// first operator can bootstrap the directory.
func (h *AuthHandler) registrationRole(c *gin.Context, requested string) (string, bool) {
	switch requested {
	case "", models.RoleUser:
		return models.RoleUser, true
	case models.RoleAdmin:
		n, err := h.Users.CountByRole(c.Request.Context(), models.RoleAdmin)
		if err != nil {
			serverError(c, h.Logger, "failed to check roles", err)
			return "", false
		}
		if n > 0 {
			util.Error(c, http.StatusForbidden, util.CodeForbidden, "admin accounts are created by an administrator")
			return "", false
		}
		return models.RoleAdmin, true
	default:
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "role must be user or admin")
		return "", false
	}
}

func (h *AuthHandler) uniqueCode(ctx context.Context) (string, error) {
	const attempts = 10
	for i := 0; i < attempts; i++ {
		code, err := util.GenerateCode()
		if err != nil {
			return "", err
		}
		inUse, err := h.Users.CodeInUse(ctx, code)
		if err != nil {
			return "", err
		}
		if !inUse {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free login code after %d attempts", attempts)
}

// send delivers msg; a failure is logged and does not fail the request.
func (h *AuthHandler) send(ctx context.Context, msg notify.Message) {
	if err := h.Mailer.Send(ctx, msg); err != nil {
		h.Logger.Error("send mail", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}

// ---------- login ----------

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "email and password are required")
		return
	}

	user, err := h.Users.GetByEmail(c.Request.Context(), util.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid email or password")
		} else {
			serverError(c, h.Logger, "failed to query user", err)
		}
		return
	}
	if !util.CheckPassword(req.Password, user.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid email or password")
		return
	}

	h.completeLogin(c, user, "user_logged_in")
}

type codeLoginReq struct {
	Code string `json:"code"`
}

// LoginWithCode signs in with the 4-digit code sent at registration.
func (h *AuthHandler) LoginWithCode(c *gin.Context) {
	var req codeLoginReq
	_ = c.ShouldBindJSON(&req)
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "code is required")
		return
	}

	ip := c.ClientIP()
	if h.CodeLimiter != nil && !h.CodeLimiter.Allow(ip) {
		util.Error(c, http.StatusTooManyRequests, util.CodeTooMany, "too many attempts, try again later")
		return
	}
	if err := util.ValidateCode(req.Code); err != nil {
		h.codeFailed(c, ip)
		return
	}

	user, err := h.Users.GetByCode(c.Request.Context(), req.Code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.codeFailed(c, ip)
		} else {
			serverError(c, h.Logger, "failed to query user", err)
		}
		return
	}
	if h.CodeLimiter != nil {
		h.CodeLimiter.Reset(ip)
	}

	h.completeLogin(c, user, "user_logged_in_with_code")
}

func (h *AuthHandler) codeFailed(c *gin.Context, ip string) {
	if h.CodeLimiter != nil {
		h.CodeLimiter.Fail(ip)
	}
	util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid code")
}

func (h *AuthHandler) completeLogin(c *gin.Context, user *models.User, action string) {
	ctx := c.Request.Context()
	if !user.IsActive() {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "account disabled")
		return
	}

	token, expiresAt, err := h.Sessions.Issue(user)
	if err != nil {
		serverError(c, h.Logger, "failed to issue token", err)
		return
	}

	now := h.Clock.Now().UTC()
	ip := c.ClientIP()
	if err := h.Users.Update(ctx, user.ID, map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": ip,
	}); err != nil {
		h.Logger.Error("record login", "user_id", user.ID, "error", err)
	}
	user.LastLoginAt = timePtr(now)
	user.LastLoginIP = ip

	h.History.LogUser(ctx, user.ID, models.HistoryConnexion, action,
		fmt.Sprintf("%s logged in", user.Username), map[string]interface{}{"ip": ip})

	util.Success(c, util.Response{
		"token":      token,
		"expires_at": expiresAt,
		"user":       userResponse(user),
	})
}

// ---------- logout ----------

func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.Revoker.Revoke(ctx, middleware.CurrentToken(c)); err != nil {
		serverError(c, h.Logger, "failed to revoke token", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryAuth, "user_logged_out",
		fmt.Sprintf("%s logged out", user.Username), nil)

	util.Success(c, util.Response{"message": "logged out"})
}

// ---------- login code ----------

func (h *AuthHandler) UpdateCode(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	code, err := h.uniqueCode(ctx)
	if err != nil {
		serverError(c, h.Logger, "failed to generate login code", err)
		return
	}
	if err := h.Users.Update(ctx, user.ID, map[string]interface{}{"code": code}); err != nil {
		serverError(c, h.Logger, "failed to update code", err)
		return
	}

	h.send(ctx, notify.LoginCode(user.Email, user.Username, code))
	h.History.LogUser(ctx, user.ID, models.HistorySecurity, "code_updated", "login code rotated", nil)

	util.Success(c, util.Response{"message": "a new login code was sent by e-mail"})
}
