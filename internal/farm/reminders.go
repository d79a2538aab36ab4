package farm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smart-coop/internal/history"
	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/util"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultReminderDays applies to users with no reminder window set.
	DefaultReminderDays = 2
	// MaxReminderDays bounds how far ahead vaccine reminders look.
	MaxReminderDays = 7

	feedingLookahead = time.Hour
	clockLayout      = "15:04"
)

type VaccineStore interface {
	DueBetween(ctx context.Context, from, to time.Time, day string) ([]models.Vaccine, error)
	MarkReminded(ctx context.Context, ids []uint, day string) error
}

type FeedingStore interface {
	StartingBetween(ctx context.Context, from, to, day string) ([]models.Feeding, error)
	MarkReminded(ctx context.Context, id uint, day string) error
}

// ReminderDeps are shared by both reminder jobs. Location is the zone in
// which days and program times are read.
type ReminderDeps struct {
	Mailer   notify.Mailer
	History  *history.Service
	Clock    clockwork.Clock
	Location *time.Location
	Logger   *slog.Logger
}

func (d ReminderDeps) withDefaults() ReminderDeps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// wantsReminders reports whether u should receive reminder mail at all.
func wantsReminders(u *models.User) bool {
	return u.ID != 0 && u.IsActive() && u.EnableEmailReminders
}

func reminderWindow(u *models.User) int {
	switch {
	case u.ReminderDays <= 0:
		return DefaultReminderDays
	case u.ReminderDays > MaxReminderDays:
		return MaxReminderDays
	}
	return u.ReminderDays
}

// VaccineReminder mails users about pending vaccines due within their
// reminder window. Users with DailySummary get one message listing all of
// them. A vaccine is reminded at most once per day.
type VaccineReminder struct {
	store VaccineStore
	deps  ReminderDeps
}

func NewVaccineReminder(store VaccineStore, deps ReminderDeps) *VaccineReminder {
	return &VaccineReminder{store: store, deps: deps.withDefaults()}
}

func (j *VaccineReminder) Name() string { return "vaccine-reminder" }

func (j *VaccineReminder) Run(ctx context.Context) error {
	today := Day(j.deps.Clock.Now().In(j.deps.Location))
	dayKey := today.Format(util.DateLayout)

	due, err := j.store.DueBetween(ctx, today, today.AddDate(0, 0, MaxReminderDays), dayKey)
	if err != nil {
		return fmt.Errorf("vaccine reminders: %w", err)
	}

	var sent, failed int
	for _, group := range groupByUser(due) {
		user := &group[0].User
		if !wantsReminders(user) {
			continue
		}
		horizon := today.AddDate(0, 0, reminderWindow(user))
		var pending []models.Vaccine
		for _, v := range group {
			if !v.DueDate.After(horizon) {
				pending = append(pending, v)
			}
		}
		if len(pending) == 0 {
			continue
		}

		if user.DailySummary {
			if j.summarize(ctx, user, pending, dayKey) {
				sent++
			} else {
				failed++
			}
			continue
		}
		for _, v := range pending {
			if j.remind(ctx, user, v, today, dayKey) {
				sent++
			} else {
				failed++
			}
		}
	}

	j.deps.Logger.Info("vaccine reminders sent", "sent", sent, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("vaccine reminders: %d of %d mails failed", failed, sent+failed)
	}
	return nil
}

func (j *VaccineReminder) remind(ctx context.Context, user *models.User, v models.Vaccine, today time.Time, dayKey string) bool {
	daysLeft := int(v.DueDate.Sub(today).Hours() / 24)
	msg := notify.VaccineReminder(user.Email, user.Username, dueVaccine(v), daysLeft)
	if err := j.deps.Mailer.Send(ctx, msg); err != nil {
		j.deps.Logger.Error("send vaccine reminder", "user_id", user.ID, "vaccine_id", v.ID, "error", err)
		return false
	}
	if err := j.store.MarkReminded(ctx, []uint{v.ID}, dayKey); err != nil {
		j.deps.Logger.Error("mark vaccine reminded", "vaccine_id", v.ID, "error", err)
	}
	j.deps.History.LogUser(ctx, user.ID, models.HistoryVaccine, "reminder_sent",
		"vaccination reminder sent for "+v.Name,
		map[string]interface{}{"vaccine_id": v.ID, "due_date": v.DueDate.Format(util.DateLayout)})
	return true
}

func (j *VaccineReminder) summarize(ctx context.Context, user *models.User, pending []models.Vaccine, dayKey string) bool {
	lines := make([]notify.DueVaccine, 0, len(pending))
	ids := make([]uint, 0, len(pending))
	for _, v := range pending {
		lines = append(lines, dueVaccine(v))
		ids = append(ids, v.ID)
	}
	if err := j.deps.Mailer.Send(ctx, notify.VaccineSummary(user.Email, user.Username, lines)); err != nil {
		j.deps.Logger.Error("send vaccine summary", "user_id", user.ID, "error", err)
		return false
	}
	if err := j.store.MarkReminded(ctx, ids, dayKey); err != nil {
		j.deps.Logger.Error("mark vaccines reminded", "user_id", user.ID, "error", err)
	}
	j.deps.History.LogUser(ctx, user.ID, models.HistoryVaccine, "summary_sent",
		fmt.Sprintf("vaccination summary sent for %d vaccine(s)", len(pending)),
		map[string]interface{}{"count": len(pending)})
	return true
}

func dueVaccine(v models.Vaccine) notify.DueVaccine {
	return notify.DueVaccine{Name: v.Name, DueDate: v.DueDate, Chickens: v.NumberOfChickens}
}

// groupByUser splits vaccines ordered by user into one slice per user.
func groupByUser(vaccines []models.Vaccine) [][]models.Vaccine {
	var groups [][]models.Vaccine
	for i, v := range vaccines {
		if i == 0 || v.UserID != vaccines[i-1].UserID {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], v)
	}
	return groups
}

// FeedingReminder mails owners of feeding programs starting within the
// next hour. Each program is reminded once per occurrence.
type FeedingReminder struct {
	store FeedingStore
	deps  ReminderDeps
}

func NewFeedingReminder(store FeedingStore, deps ReminderDeps) *FeedingReminder {
	return &FeedingReminder{store: store, deps: deps.withDefaults()}
}

func (j *FeedingReminder) Name() string { return "feeding-reminder" }

func (j *FeedingReminder) Run(ctx context.Context) error {
	now := j.deps.Clock.Now().In(j.deps.Location)
	from := now.Format(clockLayout)
	to := now.Add(feedingLookahead).Format(clockLayout)
	today := now.Format(util.DateLayout)
	tomorrow := now.AddDate(0, 0, 1).Format(util.DateLayout)

	programs, err := j.store.StartingBetween(ctx, from, to, today)
	if err != nil {
		return fmt.Errorf("feeding reminders: %w", err)
	}

	var sent, failed int
	for _, f := range programs {
		// a start before the window opening belongs to tomorrow
		occurrence := today
		if f.ProgramStart < from {
			occurrence = tomorrow
		}
		if f.RemindedOn == occurrence || !wantsReminders(&f.User) {
			continue
		}

		msg := notify.FeedingReminder(f.User.Email, f.User.Username, f.FeedType, f.ProgramStart, f.ProgramEnd, f.Quantity)
		if err := j.deps.Mailer.Send(ctx, msg); err != nil {
			j.deps.Logger.Error("send feeding reminder", "user_id", f.UserID, "feeding_id", f.ID, "error", err)
			failed++
			continue
		}
		sent++
		if err := j.store.MarkReminded(ctx, f.ID, occurrence); err != nil {
			j.deps.Logger.Error("mark feeding reminded", "feeding_id", f.ID, "error", err)
		}
		j.deps.History.LogUser(ctx, f.UserID, models.HistoryFeeding, "reminder_sent",
			"feeding reminder sent for "+f.FeedType,
			map[string]interface{}{"feeding_id": f.ID, "program_start": f.ProgramStart})
	}

	j.deps.Logger.Info("feeding reminders sent", "sent", sent, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("feeding reminders: %d of %d mails failed", failed, sent+failed)
	}
	return nil
}
