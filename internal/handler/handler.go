// Package handler implements the HTTP endpoints.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"smart-coop/internal/middleware"
	"smart-coop/internal/models"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
)

func userResponse(u *models.User) gin.H {
	return gin.H{
		"id":                     u.ID,
		"username":               u.Username,
		"email":                  u.Email,
		"role":                   u.Role,
		"status":                 u.Status,
		"enable_email_reminders": u.EnableEmailReminders,
		"reminder_days":          u.ReminderDays,
		"daily_summary":          u.DailySummary,
		"last_login_at":          u.LastLoginAt,
		"last_password_update":   u.LastPasswordUpdate,
		"created_at":             u.CreatedAt,
	}
}

// currentUser writes a 401 and returns false when the auth middleware did
// not run.
func currentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "authentication required")
		return nil, false
	}
	return user, true
}

func serverError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	util.Error(c, http.StatusInternalServerError, util.CodeServerErr, msg)
}

func timePtr(t time.Time) *time.Time { return &t }

// parseID reads the :id path parameter, writing a 400 naming what when it
// is not a positive integer.
func parseID(c *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid "+what+" id")
		return 0, false
	}
	return uint(id), true
}
