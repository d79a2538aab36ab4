package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/repository"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
)

type FeedingHandler struct {
	FarmDeps
}

func NewFeedingHandler(d FarmDeps) *FeedingHandler {
	return &FeedingHandler{FarmDeps: d.withDefaults()}
}

// List returns active feedings, or archived ones with archived=true.
func (h *FeedingHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	archived := c.Query("archived") == "true"
	feedings, err := h.Feedings.List(c.Request.Context(), user.ID, archived)
	if err != nil {
		serverError(c, h.Logger, "failed to list feedings", err)
		return
	}
	util.Success(c, util.Response{"feedings": feedings, "total": len(feedings)})
}

// Stats sums active stocks per feed type and flags the low ones.
func (h *FeedingHandler) Stats(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	stats, err := h.Feedings.Stats(c.Request.Context(), user.ID)
	if err != nil {
		serverError(c, h.Logger, "failed to compute feeding stats", err)
		return
	}
	low := []string{}
	var remaining, consumed float64
	for _, s := range stats {
		remaining += s.Remaining
		consumed += s.Consumed
		if s.Remaining < models.LowStockThreshold {
			low = append(low, s.FeedType)
		}
	}
	if stats == nil {
		stats = []repository.FeedStat{}
	}
	util.Success(c, util.Response{
		"stats":           stats,
		"total_remaining": remaining,
		"total_consumed":  consumed,
		"low_stock":       low,
	})
}

type feedingReq struct {
	FeedType         *string  `json:"feed_type"`
	Quantity         *float64 `json:"quantity"`
	Notes            *string  `json:"notes"`
	AutomaticFeeding *bool    `json:"automatic_feeding"`
	ProgramStart     *string  `json:"program_start"`
	ProgramEnd       *string  `json:"program_end"`
}

// optionalClock accepts an empty string or HH:MM.
func optionalClock(name, value string) error {
	if value == "" {
		return nil
	}
	if err := util.ValidateClock(value); err != nil {
		return fmt.Errorf("%s must be HH:MM", name)
	}
	return nil
}

func (req feedingReq) fields() (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if req.FeedType != nil {
		feedType := strings.TrimSpace(*req.FeedType)
		if feedType == "" {
			return nil, errors.New("feed_type is required")
		}
		fields["feed_type"] = feedType
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, errors.New("quantity cannot be negative")
		}
		fields["quantity"] = *req.Quantity
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.AutomaticFeeding != nil {
		fields["automatic_feeding"] = *req.AutomaticFeeding
	}
	if req.ProgramStart != nil {
		if err := optionalClock("program_start", *req.ProgramStart); err != nil {
			return nil, err
		}
		fields["program_start"] = *req.ProgramStart
		fields["reminded_on"] = ""
	}
	if req.ProgramEnd != nil {
		if err := optionalClock("program_end", *req.ProgramEnd); err != nil {
			return nil, err
		}
		fields["program_end"] = *req.ProgramEnd
	}
	return fields, nil
}

func (h *FeedingHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req feedingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.FeedType == nil || req.Quantity == nil || *req.Quantity <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "feed_type and a positive quantity are required")
		return
	}
	fields, err := req.fields()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	f := &models.Feeding{
		UserID:          user.ID,
		FeedType:        fields["feed_type"].(string),
		Quantity:        *req.Quantity,
		InitialQuantity: *req.Quantity,
	}
	if req.Notes != nil {
		f.Notes = *req.Notes
	}
	if req.AutomaticFeeding != nil {
		f.AutomaticFeeding = *req.AutomaticFeeding
	}
	if req.ProgramStart != nil {
		f.ProgramStart = *req.ProgramStart
	}
	if req.ProgramEnd != nil {
		f.ProgramEnd = *req.ProgramEnd
	}

	ctx := c.Request.Context()
	if err := h.Feedings.Create(ctx, f); err != nil {
		serverError(c, h.Logger, "failed to create feeding", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryFeeding, "feeding_created",
		fmt.Sprintf("%.1f kg of %s added", f.Quantity, f.FeedType),
		map[string]interface{}{"feeding_id": f.ID, "quantity": f.Quantity})
	util.Created(c, util.Response{"feeding": f})
}

func (h *FeedingHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "feeding")
	if !ok {
		return
	}
	var req feedingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	fields, err := req.fields()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}
	if len(fields) == 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "nothing to update")
		return
	}
	h.apply(c, user, id, fields, "feeding_updated", "feeding updated")
}

// Archive hides the feeding from the active list, stats and reminders.
func (h *FeedingHandler) Archive(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "feeding")
	if !ok {
		return
	}
	h.apply(c, user, id, map[string]interface{}{"archived": true}, "feeding_archived", "feeding archived")
}

type waterSupplyReq struct {
	WaterEnabled *bool  `json:"water_enabled"`
	WaterStart   string `json:"water_start"`
	WaterEnd     string `json:"water_end"`
}

// WaterSupply sets the watering window of a feeding program.
func (h *FeedingHandler) WaterSupply(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "feeding")
	if !ok {
		return
	}
	var req waterSupplyReq
	if err := c.ShouldBindJSON(&req); err != nil || req.WaterEnabled == nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "water_enabled is required")
		return
	}
	if *req.WaterEnabled && (req.WaterStart == "" || req.WaterEnd == "") {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "water_start and water_end are required when water is enabled")
		return
	}
	for name, value := range map[string]string{"water_start": req.WaterStart, "water_end": req.WaterEnd} {
		if err := optionalClock(name, value); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
			return
		}
	}
	h.apply(c, user, id, map[string]interface{}{
		"water_enabled": *req.WaterEnabled,
		"water_start":   req.WaterStart,
		"water_end":     req.WaterEnd,
	}, "water_supply_updated", "water supply updated")
}

func (h *FeedingHandler) apply(c *gin.Context, user *models.User, id uint, fields map[string]interface{}, action, desc string) {
	ctx := c.Request.Context()
	if err := h.Feedings.Update(ctx, id, user.ID, fields); err != nil {
		lookupFailed(c, h.Logger, "feeding", err)
		return
	}
	f, err := h.Feedings.Get(ctx, id, user.ID)
	if err != nil {
		lookupFailed(c, h.Logger, "feeding", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryFeeding, action, desc, map[string]interface{}{"feeding_id": id})
	util.Success(c, util.Response{"feeding": f})
}

type decrementReq struct {
	Amount *float64 `json:"amount"`
}

// Decrement records consumption, 1 unit when no amount is given. Crossing
// under the low-stock threshold mails the owner once, if they opted in to
// reminders.
func (h *FeedingHandler) Decrement(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "feeding")
	if !ok {
		return
	}
	var req decrementReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
			return
		}
	}
	amount := 1.0
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "amount must be positive")
		return
	}

	ctx := c.Request.Context()
	f, err := h.Feedings.Decrement(ctx, id, user.ID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficient) {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "insufficient quantity")
			return
		}
		lookupFailed(c, h.Logger, "feeding", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryFeeding, "stock_decremented",
		fmt.Sprintf("%.1f kg of %s consumed", amount, f.FeedType),
		map[string]interface{}{"feeding_id": f.ID, "amount": amount, "remaining": f.Quantity})

	low := f.Quantity < models.LowStockThreshold
	crossed := low && f.Quantity+amount >= models.LowStockThreshold
	if crossed && user.EnableEmailReminders {
		if err := h.Mailer.Send(ctx, notify.LowStock(user.Email, user.Username, f.FeedType, f.Quantity)); err != nil {
			h.Logger.Error("send low stock alert", "user_id", user.ID, "feeding_id", f.ID, "error", err)
		} else {
			h.History.LogUser(ctx, user.ID, models.HistoryFeeding, "low_stock_alert",
				"low stock alert sent for "+f.FeedType, map[string]interface{}{"feeding_id": f.ID, "remaining": f.Quantity})
		}
	}
	util.Success(c, util.Response{"feeding": f, "low_stock": low})
}
