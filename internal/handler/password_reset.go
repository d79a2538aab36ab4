package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"smart-coop/internal/auth"
	"smart-coop/internal/history"
	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/repository"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

type ResetDeps struct {
	Users      *repository.UserRepository
	Resets     *auth.TokenManager
	Gate       *auth.Gate    // over Resets and the blacklist
	Revoker    *auth.Revoker // over Resets and the blacklist
	History    *history.Service
	Mailer     notify.Mailer
	Links      notify.Links
	Clock      clockwork.Clock
	Logger     *slog.Logger
	BcryptCost int
}

// ResetHandler serves the forgotten-password flow. Reset links are JWTs
// signed by their own manager and blacklisted once used.
type ResetHandler struct {
	ResetDeps
}

func NewResetHandler(d ResetDeps) *ResetHandler {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &ResetHandler{ResetDeps: d}
}

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required"`
}

func (h *ResetHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "email is required")
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.GetByEmail(ctx, util.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "no account with this email")
		} else {
			serverError(c, h.Logger, "failed to query user", err)
		}
		return
	}

	token, _, err := h.Resets.Issue(user)
	if err != nil {
		serverError(c, h.Logger, "failed to issue reset token", err)
		return
	}
	if err := h.Mailer.Send(ctx, notify.ResetLink(user.Email, user.Username, h.Links.ResetPassword(token), h.Resets.TTL())); err != nil {
		serverError(c, h.Logger, "failed to send reset e-mail", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistorySecurity, "password_reset_requested",
		"password reset requested", map[string]interface{}{"ip": c.ClientIP()})

	util.Success(c, util.Response{"message": "a reset link was sent by e-mail"})
}

// verify runs the reset gate and writes the rejection itself.
func (h *ResetHandler) verify(c *gin.Context, token string) (*models.User, bool) {
	user, _, err := h.Gate.Authenticate(c.Request.Context(), token)
	switch {
	case err == nil:
		return user, true
	case errors.Is(err, auth.ErrSessionExpired):
		util.Error(c, http.StatusUnauthorized, util.CodeSessionExpired, "reset link expired")
	case errors.Is(err, auth.ErrUnauthenticated):
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid reset link")
	default:
		serverError(c, h.Logger, "failed to verify reset link", err)
	}
	return nil, false
}

// CheckResetToken lets the frontend validate a link before showing the form.
func (h *ResetHandler) CheckResetToken(c *gin.Context) {
	user, ok := h.verify(c, c.Param("token"))
	if !ok {
		return
	}
	util.Success(c, util.Response{"valid": true, "email": user.Email})
}

type resetPasswordReq struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *ResetHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "token and password are required")
		return
	}
	if err := util.ValidatePassword(req.Password); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	user, ok := h.verify(c, req.Token)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// single use; a concurrent request with the same link loses here
	if err := h.Revoker.Consume(ctx, req.Token); err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "invalid reset link")
		} else {
			serverError(c, h.Logger, "failed to revoke reset token", err)
		}
		return
	}

	hash, err := util.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		serverError(c, h.Logger, "failed to hash password", err)
		return
	}
	if err := h.Users.Update(ctx, user.ID, map[string]interface{}{
		"password_hash":        hash,
		"last_password_update": h.Clock.Now().UTC(),
	}); err != nil {
		serverError(c, h.Logger, "failed to update password", err)
		return
	}

	if err := h.Mailer.Send(ctx, notify.PasswordChanged(user.Email, user.Username)); err != nil {
		h.Logger.Error("send mail", "to", user.Email, "error", err)
	}
	h.History.LogUser(ctx, user.ID, models.HistorySecurity, "password_reset", "password reset with e-mail link", nil)

	util.Success(c, util.Response{"message": "password updated, you can now log in"})
}
