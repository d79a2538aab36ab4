package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"smart-coop/internal/history"
	"smart-coop/internal/models"
	"smart-coop/internal/repository"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
)

// UserHandler is the admin-only user directory.
type UserHandler struct {
	Users   *repository.UserRepository
	History *history.Service
	Logger  *slog.Logger
}

func NewUserHandler(users *repository.UserRepository, svc *history.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{Users: users, History: svc, Logger: logger}
}

func (h *UserHandler) List(c *gin.Context) {
	page, size := pagination(c)
	users, total, err := h.Users.List(c.Request.Context(), size, (page-1)*size)
	if err != nil {
		serverError(c, h.Logger, "failed to list users", err)
		return
	}

	items := make([]gin.H, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

func (h *UserHandler) load(c *gin.Context) (*models.User, bool) {
	id, ok := parseID(c, "user")
	if !ok {
		return nil, false
	}
	user, err := h.Users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "user not found")
		} else {
			serverError(c, h.Logger, "failed to load user", err)
		}
		return nil, false
	}
	return user, true
}

func (h *UserHandler) Get(c *gin.Context) {
	user, ok := h.load(c)
	if !ok {
		return
	}
	util.Success(c, util.Response{"user": userResponse(user)})
}

type updateUserReq struct {
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

// Update changes role or status. Disabling a user makes the auth gate
// reject every token they hold.
func (h *UserHandler) Update(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		return
	}
	target, ok := h.load(c)
	if !ok {
		return
	}
	var req updateUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}

	fields := map[string]interface{}{}
	if req.Role != nil {
		if *req.Role != models.RoleUser && *req.Role != models.RoleAdmin {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "role must be user or admin")
			return
		}
		fields["role"] = *req.Role
	}
	if req.Status != nil {
		if *req.Status != models.StatusActive && *req.Status != models.StatusDisabled {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "status must be active or disabled")
			return
		}
		fields["status"] = *req.Status
	}
	if len(fields) == 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "nothing to update")
		return
	}
	if target.ID == admin.ID && (fields["role"] == models.RoleUser || fields["status"] == models.StatusDisabled) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "you cannot demote or disable your own account")
		return
	}

	ctx := c.Request.Context()
	if err := h.Users.Update(ctx, target.ID, fields); err != nil {
		serverError(c, h.Logger, "failed to update user", err)
		return
	}
	updated, err := h.Users.GetByID(ctx, target.ID)
	if err != nil {
		serverError(c, h.Logger, "failed to reload user", err)
		return
	}

	h.History.LogUser(ctx, admin.ID, models.HistoryUser, "user_updated",
		fmt.Sprintf("user %d updated by %s", target.ID, admin.Username), fields)

	util.Success(c, util.Response{"user": userResponse(updated)})
}
