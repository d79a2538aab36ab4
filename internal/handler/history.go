package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"smart-coop/internal/history"
	"smart-coop/internal/models"
	"smart-coop/internal/repository"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// rows per export
	maxExportRows = 10000
)

type HistoryHandler struct {
	History *history.Service
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

func NewHistoryHandler(svc *history.Service, clock clockwork.Clock, logger *slog.Logger) *HistoryHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HistoryHandler{History: svc, Clock: clock, Logger: logger}
}

func pagination(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page <= 0 {
		page = 1
	}
	size, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

// historyFilter reads type, start, end (YYYY-MM-DD, end inclusive) and
// user_id. Non-admins only ever see their own entries.
func historyFilter(c *gin.Context, user *models.User) (repository.HistoryFilter, bool) {
	var f repository.HistoryFilter
	f.Type = c.Query("type")

	if s := c.Query("start"); s != "" {
		start, err := util.ParseDate(s)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid start date, expected YYYY-MM-DD")
			return f, false
		}
		f.Start = start
	}
	if s := c.Query("end"); s != "" {
		end, err := util.ParseDate(s)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid end date, expected YYYY-MM-DD")
			return f, false
		}
		f.End = end.Add(24 * time.Hour)
	}

	if !user.IsAdmin() {
		id := user.ID
		f.UserID = &id
		return f, true
	}
	if s := c.Query("user_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid user_id")
			return f, false
		}
		uid := uint(id)
		f.UserID = &uid
	}
	return f, true
}

// List returns one page of history entries, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	f, ok := historyFilter(c, user)
	if !ok {
		return
	}
	page, size := pagination(c)
	f.Limit = size
	f.Offset = (page - 1) * size

	items, total, err := h.History.List(c.Request.Context(), f)
	if err != nil {
		serverError(c, h.Logger, "failed to list history", err)
		return
	}
	if items == nil {
		items = []models.History{}
	}

	util.Success(c, util.Response{
		"items": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}
