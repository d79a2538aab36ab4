package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"smart-coop/internal/farm"
	"smart-coop/internal/history"
	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/repository"
	"smart-coop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
)

// FarmDeps are shared by the vaccine and feeding handlers.
type FarmDeps struct {
	Vaccines *repository.VaccineRepository
	Feedings *repository.FeedingRepository
	History  *history.Service
	Mailer   notify.Mailer
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

func (d FarmDeps) withDefaults() FarmDeps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return d
}

type VaccineHandler struct {
	FarmDeps
}

func NewVaccineHandler(d FarmDeps) *VaccineHandler {
	return &VaccineHandler{FarmDeps: d.withDefaults()}
}

// lookupFailed writes a 404 for repository.ErrNotFound and a 500 otherwise.
func lookupFailed(c *gin.Context, logger *slog.Logger, what string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		util.Error(c, http.StatusNotFound, util.CodeNotFound, what+" not found")
		return
	}
	serverError(c, logger, "failed to load "+what, err)
}

// List accepts status=upcoming|administered|all.
func (h *VaccineHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	f := repository.VaccineFilter{UserID: user.ID}
	switch c.DefaultQuery("status", "all") {
	case "upcoming":
		pending := false
		f.Administered = &pending
	case "administered":
		done := true
		f.Administered = &done
	case "all":
	default:
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "status must be upcoming, administered or all")
		return
	}

	vaccines, err := h.Vaccines.List(c.Request.Context(), f)
	if err != nil {
		serverError(c, h.Logger, "failed to list vaccines", err)
		return
	}
	util.Success(c, util.Response{"vaccines": vaccines, "total": len(vaccines)})
}

type vaccineReq struct {
	Name             *string `json:"name"`
	DueDate          *string `json:"due_date"`
	BatchNumber      *string `json:"batch_number"`
	NumberOfChickens *int    `json:"number_of_chickens"`
	WeekNumber       *int    `json:"week_number"`
	Notes            *string `json:"notes"`
}

// fields validates the set members of req and returns them as columns.
func (req vaccineReq) fields() (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, errors.New("name is required")
		}
		fields["name"] = name
	}
	if req.DueDate != nil {
		due, err := util.ParseDate(*req.DueDate)
		if err != nil {
			return nil, errors.New("due_date must be YYYY-MM-DD")
		}
		fields["due_date"] = due
		fields["reminded_on"] = ""
	}
	if req.BatchNumber != nil {
		fields["batch_number"] = strings.TrimSpace(*req.BatchNumber)
	}
	if req.NumberOfChickens != nil {
		if *req.NumberOfChickens < 0 {
			return nil, errors.New("number_of_chickens cannot be negative")
		}
		fields["number_of_chickens"] = *req.NumberOfChickens
	}
	if req.WeekNumber != nil {
		if *req.WeekNumber < 0 {
			return nil, errors.New("week_number cannot be negative")
		}
		fields["week_number"] = *req.WeekNumber
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	return fields, nil
}

func (h *VaccineHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req vaccineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.Name == nil || req.DueDate == nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "name and due_date are required")
		return
	}
	fields, err := req.fields()
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	v := &models.Vaccine{UserID: user.ID, Name: fields["name"].(string), DueDate: fields["due_date"].(time.Time)}
	if req.BatchNumber != nil {
		v.BatchNumber = fields["batch_number"].(string)
	}
	if req.NumberOfChickens != nil {
		v.NumberOfChickens = *req.NumberOfChickens
	}
	if req.WeekNumber != nil {
		v.WeekNumber = *req.WeekNumber
	}
	if req.Notes != nil {
		v.Notes = *req.Notes
	}

	ctx := c.Request.Context()
	if err := h.Vaccines.Create(ctx, v); err != nil {
		serverError(c, h.Logger, "failed to create vaccine", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryVaccine, "vaccine_created",
		"vaccine "+v.Name+" planned", map[string]interface{}{"vaccine_id": v.ID, "due_date": v.DueDate.Format(util.DateLayout)})
	util.Created(c, util.Response{"vaccine": v})
}

type generateScheduleReq struct {
	StartDate        string `json:"start_date"`
	FlockType        string `json:"flock_type"`
	NumberOfChickens int    `json:"number_of_chickens"`
	ScheduleType     string `json:"schedule_type"`
}

// GenerateSchedule plans a full vaccination program for a new flock.
func (h *VaccineHandler) GenerateSchedule(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req generateScheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "invalid request body")
		return
	}
	if req.NumberOfChickens <= 0 {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "number_of_chickens must be positive")
		return
	}
	start := h.Clock.Now()
	if req.StartDate != "" {
		var err error
		if start, err = util.ParseDate(req.StartDate); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "start_date must be YYYY-MM-DD")
			return
		}
	}
	plan, err := farm.LookupPlan(req.FlockType, req.ScheduleType)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "unknown flock_type or schedule_type")
		return
	}
	vaccines, err := farm.Schedule(user.ID, start, req.FlockType, req.ScheduleType, req.NumberOfChickens)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.Vaccines.CreateBatch(ctx, vaccines); err != nil {
		serverError(c, h.Logger, "failed to save vaccination schedule", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryVaccine, "schedule_generated",
		fmt.Sprintf("vaccination schedule generated for %d %s chickens", req.NumberOfChickens, req.FlockType),
		map[string]interface{}{
			"flock_type":         req.FlockType,
			"schedule_type":      req.ScheduleType,
			"number_of_chickens": req.NumberOfChickens,
			"count":              len(vaccines),
			"total_days":         plan.TotalDays,
		})
	util.Created(c, util.Response{"vaccines": vaccines, "total_days": plan.TotalDays})
}

func (h *VaccineHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "vaccine")
	if !ok {
		return
	}
	var req vaccineReq
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

	ctx := c.Request.Context()
	if err := h.Vaccines.Update(ctx, id, user.ID, fields); err != nil {
		lookupFailed(c, h.Logger, "vaccine", err)
		return
	}
	v, err := h.Vaccines.Get(ctx, id, user.ID)
	if err != nil {
		lookupFailed(c, h.Logger, "vaccine", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryVaccine, "vaccine_updated",
		"vaccine "+v.Name+" updated", map[string]interface{}{"vaccine_id": v.ID})
	util.Success(c, util.Response{"vaccine": v})
}

func (h *VaccineHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "vaccine")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.Vaccines.Delete(ctx, id, user.ID); err != nil {
		lookupFailed(c, h.Logger, "vaccine", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryVaccine, "vaccine_deleted",
		fmt.Sprintf("vaccine %d deleted", id), map[string]interface{}{"vaccine_id": id})
	util.Success(c, util.Response{"message": "vaccine deleted"})
}

// MarkAdministered records the vaccination as done now.
func (h *VaccineHandler) MarkAdministered(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "vaccine")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	now := h.Clock.Now().UTC()
	if err := h.Vaccines.Update(ctx, id, user.ID, map[string]interface{}{
		"administered":    true,
		"administered_at": now,
	}); err != nil {
		lookupFailed(c, h.Logger, "vaccine", err)
		return
	}
	v, err := h.Vaccines.Get(ctx, id, user.ID)
	if err != nil {
		lookupFailed(c, h.Logger, "vaccine", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryVaccine, "vaccine_administered",
		"vaccine "+v.Name+" administered", map[string]interface{}{"vaccine_id": v.ID})
	util.Success(c, util.Response{"vaccine": v})
}

// SendReminder mails the owner about one vaccine immediately, regardless
// of their reminder preferences.
func (h *VaccineHandler) SendReminder(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "vaccine")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	v, err := h.Vaccines.Get(ctx, id, user.ID)
	if err != nil {
		lookupFailed(c, h.Logger, "vaccine", err)
		return
	}
	if v.Administered {
		util.Error(c, http.StatusConflict, util.CodeConflict, "vaccine already administered")
		return
	}

	daysLeft := int(v.DueDate.Sub(farm.Day(h.Clock.Now())).Hours() / 24)
	due := notify.DueVaccine{Name: v.Name, DueDate: v.DueDate, Chickens: v.NumberOfChickens}
	if err := h.Mailer.Send(ctx, notify.VaccineReminder(user.Email, user.Username, due, daysLeft)); err != nil {
		serverError(c, h.Logger, "failed to send reminder", err)
		return
	}
	h.History.LogUser(ctx, user.ID, models.HistoryVaccine, "reminder_sent",
		"vaccination reminder sent for "+v.Name, map[string]interface{}{"vaccine_id": v.ID, "manual": true})
	util.Success(c, util.Response{"message": "reminder sent"})
}
