package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

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

type ProfileDeps struct {
	Users      *repository.UserRepository
	Changes    *repository.PasswordChangeRepository
	Revoker    *auth.Revoker
	History    *history.Service
	Mailer     notify.Mailer
	Links      notify.Links
	Clock      clockwork.Clock
	Logger     *slog.Logger
	BcryptCost int
	ChangeTTL  time.Duration
}

// ProfileHandler serves the current user's profile and the e-mail
// confirmed password change.
type ProfileHandler struct {
	ProfileDeps
}

func NewProfileHandler(d ProfileDeps) *ProfileHandler {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return &ProfileHandler{ProfileDeps: d}
}

// GetMe returns the authenticated user.
func GetMe(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	util.Success(c, util.Response{"user": userResponse(user)})
}

// ---------- profile ----------

type updateProfileReq struct {
	Username             *string `json:"username"`
	Email                *string `json:"email"`
	EnableEmailReminders *bool   `json:"enable_email_reminders"`
	ReminderDays         *int    `json:"reminder_days"`
	DailySummary         *bool   `json:"daily_summary"`
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	ctx := c.Request.Context()

	fields := map[string]interface{}{}
	var username, email string
	if req.Username != nil {
		username = strings.TrimSpace(*req.Username)
		if err := util.ValidateUsername(username); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
		if username != user.Username {
			fields["username"] = username
		}
	}
	if req.Email != nil {
		email = util.NormalizeEmail(*req.Email)
		if err := util.ValidateEmail(email); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid email address")
			return
		}
		if email != user.Email {
			fields["email"] = email
		}
	}
	if req.ReminderDays != nil {
		if *req.ReminderDays < 1 || *req.ReminderDays > 7 {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "reminder_days must be between 1 and 7")
			return
		}
		fields["reminder_days"] = *req.ReminderDays
	}
	if req.EnableEmailReminders != nil {
		fields["enable_email_reminders"] = *req.EnableEmailReminders
	}
	if req.DailySummary != nil {
		fields["daily_summary"] = *req.DailySummary
	}
	if len(fields) == 0 {
		util.Success(c, util.Response{"user": userResponse(user)})
		return
	}

	nameTaken, emailTaken, err := h.Users.Taken(ctx, stringField(fields, "username"), stringField(fields, "email"), user.ID)
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

	if err := h.Users.Update(ctx, user.ID, fields); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			util.Error(c, http.StatusBadRequest, util.CodeConflict, "username or email already registered")
			return
		}
		serverError(c, h.Logger, "failed to update profile", err)
		return
	}
	updated, err := h.Users.GetByID(ctx, user.ID)
	if err != nil {
		serverError(c, h.Logger, "failed to reload user", err)
		return
	}

	changed := make([]string, 0, len(fields))
	for k := range fields {
		changed = append(changed, k)
	}
	h.History.LogUser(ctx, user.ID, models.HistoryUser, "profile_updated", "profile updated",
		map[string]interface{}{"fields": changed})

	util.Success(c, util.Response{"user": userResponse(updated)})
}

func stringField(fields map[string]interface{}, key string) string {
	s, _ := fields[key].(string)
	return s
}

// ---------- password change ----------

type updatePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// UpdatePassword stores the new hash as a pending change and e-mails
// confirm and cancel links. Nothing changes until the user confirms.
func (h *ProfileHandler) UpdatePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req updatePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "current_password and new_password are required")
		return
	}
	ctx := c.Request.Context()

	if !util.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "current password is incorrect")
		return
	}
	if err := util.ValidatePassword(req.NewPassword); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	hash, err := util.HashPassword(req.NewPassword, h.BcryptCost)
	if err != nil {
		serverError(c, h.Logger, "failed to hash password", err)
		return
	}
	token, err := util.RandomHex(32)
	if err != nil {
		serverError(c, h.Logger, "failed to generate token", err)
		return
	}

	now := h.Clock.Now()
	change := models.PasswordChangeRequest{
		UserID:          user.ID,
		Token:           token,
		NewPasswordHash: hash,
		SessionToken:    middleware.CurrentToken(c),
		ExpiresAt:       now.Add(h.ChangeTTL),
	}
	if err := h.Changes.Create(ctx, &change); err != nil {
		serverError(c, h.Logger, "failed to save password change", err)
		return
	}

	if err := h.Mailer.Send(ctx, notify.PasswordChangeRequested(user.Email, user.Username,
		h.Links.ConfirmPasswordChange(token), h.Links.CancelPasswordChange(token), now, h.ChangeTTL)); err != nil {
		h.Logger.Error("send mail", "to", user.Email, "error", err)
	}
	h.History.LogUser(ctx, user.ID, models.HistorySecurity, "password_change_requested",
		"password change requested", map[string]interface{}{"ip": c.ClientIP()})

	util.Success(c, util.Response{"message": "check your e-mail to confirm the password change"})
}

// takeChange loads the pending change for :token and deletes it. Only one
// caller can take a given change.
func (h *ProfileHandler) takeChange(c *gin.Context) (*models.PasswordChangeRequest, bool) {
	ctx := c.Request.Context()
	change, err := h.Changes.GetByToken(ctx, c.Param("token"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid or expired link")
		} else {
			serverError(c, h.Logger, "failed to load password change", err)
		}
		return nil, false
	}

	if err := h.Changes.Delete(ctx, change.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid or expired link")
		} else {
			serverError(c, h.Logger, "failed to delete password change", err)
		}
		return nil, false
	}
	if !h.Clock.Now().Before(change.ExpiresAt) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid or expired link")
		return nil, false
	}
	return change, true
}

// revokeSession blacklists the session that requested the change.
func (h *ProfileHandler) revokeSession(c *gin.Context, change *models.PasswordChangeRequest) {
	if change.SessionToken == "" {
		return
	}
	if err := h.Revoker.Revoke(c.Request.Context(), change.SessionToken); err != nil {
		h.Logger.Warn("revoke session after password change", "user_id", change.UserID, "error", err)
	}
}

func (h *ProfileHandler) ConfirmPasswordChange(c *gin.Context) {
	change, ok := h.takeChange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := h.Users.GetByID(ctx, change.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid or expired link")
		} else {
			serverError(c, h.Logger, "failed to load user", err)
		}
		return
	}
	if err := h.Users.Update(ctx, user.ID, map[string]interface{}{
		"password_hash":        change.NewPasswordHash,
		"last_password_update": h.Clock.Now().UTC(),
	}); err != nil {
		serverError(c, h.Logger, "failed to update password", err)
		return
	}
	h.revokeSession(c, change)

	if err := h.Mailer.Send(ctx, notify.PasswordChanged(user.Email, user.Username)); err != nil {
		h.Logger.Error("send mail", "to", user.Email, "error", err)
	}
	h.History.LogUser(ctx, user.ID, models.HistorySecurity, "password_changed", "password changed", nil)

	util.Success(c, util.Response{"message": "password changed, please log in again"})
}

func (h *ProfileHandler) CancelPasswordChange(c *gin.Context) {
	change, ok := h.takeChange(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	h.revokeSession(c, change)

	if user, err := h.Users.GetByID(ctx, change.UserID); err == nil {
		if err := h.Mailer.Send(ctx, notify.PasswordChangeCancelled(user.Email, user.Username)); err != nil {
			h.Logger.Error("send mail", "to", user.Email, "error", err)
		}
	}
	h.History.LogUser(ctx, change.UserID, models.HistoryUser, "password_change_cancelled",
		fmt.Sprintf("password change %d cancelled", change.ID), nil)

	util.Success(c, util.Response{"message": "password change cancelled"})
}
