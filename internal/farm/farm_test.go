package farm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"smart-coop/internal/config"
	"smart-coop/internal/database"
	"smart-coop/internal/history"
	"smart-coop/internal/logger"
	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	vaccines *repository.VaccineRepository
	feedings *repository.FeedingRepository
	history  *history.Service
	mailer   *notify.MemoryMailer
	clock    clockwork.FakeClock
}

func newFixture(t *testing.T, at time.Time) *fixture {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "farm.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	clock := clockwork.NewFakeClockAt(at)
	return &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		vaccines: repository.NewVaccineRepository(db),
		feedings: repository.NewFeedingRepository(db),
		history:  history.NewService(repository.NewHistoryRepository(db), clock, logger.Discard()),
		mailer:   &notify.MemoryMailer{},
		clock:    clock,
	}
}

func (f *fixture) deps(mailer notify.Mailer) ReminderDeps {
	return ReminderDeps{Mailer: mailer, History: f.history, Clock: f.clock, Location: time.UTC, Logger: logger.Discard()}
}

func (f *fixture) user(t *testing.T, name string, mutate func(*models.User)) *models.User {
	t.Helper()
	u := &models.User{
		Username:             name,
		Email:                name + "@example.com",
		PasswordHash:         "x",
		Role:                 models.RoleUser,
		Status:               models.StatusActive,
		EnableEmailReminders: true,
		ReminderDays:         2,
	}
	if mutate != nil {
		mutate(u)
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) vaccine(t *testing.T, userID uint, name string, due time.Time) *models.Vaccine {
	t.Helper()
	v := &models.Vaccine{UserID: userID, Name: name, DueDate: due}
	require.NoError(t, f.vaccines.Create(context.Background(), v))
	return v
}

func (f *fixture) feeding(t *testing.T, userID uint, feedType, start string) *models.Feeding {
	t.Helper()
	feed := &models.Feeding{UserID: userID, FeedType: feedType, Quantity: 50, InitialQuantity: 50, ProgramStart: start}
	require.NoError(t, f.feedings.Create(context.Background(), feed))
	return feed
}

type failingMailer struct{}

func (failingMailer) Send(context.Context, notify.Message) error { return errors.New("smtp down") }

// ============ vaccination plans ============

func TestSchedule(t *testing.T) {
	start := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)

	vaccines, err := Schedule(7, start, FlockLayer, "", 120)
	require.NoError(t, err)
	require.Len(t, vaccines, 5)
	assert.Equal(t, "Marek", vaccines[0].Name)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), vaccines[0].DueDate)
	assert.Equal(t, "Encéphalomyélite", vaccines[4].Name)
	assert.Equal(t, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), vaccines[4].DueDate)
	for _, v := range vaccines {
		assert.EqualValues(t, 7, v.UserID)
		assert.Equal(t, 120, v.NumberOfChickens)
		assert.False(t, v.Administered)
	}

	complete, err := Schedule(7, start, FlockBroiler, PlanComplete, 10)
	require.NoError(t, err)
	require.Len(t, complete, 7)
	assert.Equal(t, "Newcastle (final)", complete[6].Name)
	assert.Equal(t, 8, complete[6].WeekNumber)

	_, err = Schedule(7, start, "duck", PlanStandard, 10)
	assert.ErrorIs(t, err, ErrUnknownPlan)
	_, err = Schedule(7, start, FlockMixed, "weekly", 10)
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestLookupPlan_Durations(t *testing.T) {
	for flock, want := range map[string][2]int{
		FlockLayer:   {42, 56},
		FlockBroiler: {49, 56},
		FlockMixed:   {42, 56},
	} {
		standard, err := LookupPlan(flock, PlanStandard)
		require.NoError(t, err)
		complete, err := LookupPlan(flock, PlanComplete)
		require.NoError(t, err)
		assert.Equal(t, want[0], standard.TotalDays, flock)
		assert.Equal(t, want[1], complete.TotalDays, flock)
		assert.Greater(t, len(complete.Steps), len(standard.Steps), flock)
	}
}

// ============ vaccine reminders ============

func TestVaccineReminder_HonorsPreferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", func(u *models.User) { u.DailySummary = true; u.ReminderDays = 7 })
	carol := f.user(t, "carol", func(u *models.User) { u.EnableEmailReminders = false })
	dave := f.user(t, "dave", func(u *models.User) { u.Status = models.StatusDisabled })

	f.vaccine(t, alice.ID, "Marek", day.AddDate(0, 0, 1))
	f.vaccine(t, alice.ID, "Gumboro", day.AddDate(0, 0, 4))
	done := f.vaccine(t, alice.ID, "Newcastle", day)
	require.NoError(t, f.vaccines.Update(ctx, done.ID, alice.ID, map[string]interface{}{"administered": true}))
	f.vaccine(t, bob.ID, "Marek", day.AddDate(0, 0, 2))
	f.vaccine(t, bob.ID, "Gumboro", day.AddDate(0, 0, 5))
	f.vaccine(t, carol.ID, "Marek", day)
	f.vaccine(t, dave.ID, "Marek", day)

	job := NewVaccineReminder(f.vaccines, f.deps(f.mailer))
	assert.Equal(t, "vaccine-reminder", job.Name())
	require.NoError(t, job.Run(ctx))

	sent := f.mailer.Sent()
	require.Len(t, sent, 2)
	msg, ok := f.mailer.Last(alice.Email)
	require.True(t, ok)
	assert.Equal(t, "Vaccination reminder: Marek", msg.Subject)
	assert.Contains(t, msg.Body, "in 1 day(s)")
	msg, ok = f.mailer.Last(bob.Email)
	require.True(t, ok)
	assert.Equal(t, "Upcoming vaccinations (2)", msg.Subject)
	_, ok = f.mailer.Last(carol.Email)
	assert.False(t, ok, "reminders disabled")
	_, ok = f.mailer.Last(dave.Email)
	assert.False(t, ok, "account disabled")

	require.NoError(t, job.Run(ctx))
	assert.Len(t, f.mailer.Sent(), 2, "same day reruns send nothing new")

	f.clock.Advance(24 * time.Hour)
	require.NoError(t, job.Run(ctx))
	assert.Len(t, f.mailer.Sent(), 4)
	msg, _ = f.mailer.Last(alice.Email)
	assert.Contains(t, msg.Body, "due today")

	entries, total, err := f.history.List(ctx, repository.HistoryFilter{UserID: &alice.ID, Type: models.HistoryVaccine})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, "reminder_sent", entries[0].Action)
}

func TestVaccineReminder_FailedSendIsRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	alice := f.user(t, "alice", nil)
	f.vaccine(t, alice.ID, "Marek", time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))

	err := NewVaccineReminder(f.vaccines, f.deps(failingMailer{})).Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 mails failed")

	require.NoError(t, NewVaccineReminder(f.vaccines, f.deps(f.mailer)).Run(ctx))
	assert.Len(t, f.mailer.Sent(), 1, "nothing was marked by the failed run")
}

// ============ feeding reminders ============

func TestFeedingReminder_NextHour(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC))

	alice := f.user(t, "alice", nil)
	bob := f.user(t, "bob", func(u *models.User) { u.EnableEmailReminders = false })

	f.feeding(t, alice.ID, "starter", "07:30")
	f.feeding(t, alice.ID, "grower", "09:00")
	archived := f.feeding(t, alice.ID, "finisher", "07:15")
	require.NoError(t, f.feedings.Update(ctx, archived.ID, alice.ID, map[string]interface{}{"archived": true}))
	f.feeding(t, bob.ID, "starter", "07:45")

	job := NewFeedingReminder(f.feedings, f.deps(f.mailer))
	assert.Equal(t, "feeding-reminder", job.Name())
	require.NoError(t, job.Run(ctx))

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, alice.Email, sent[0].To)
	assert.Equal(t, "Feeding program starts at 07:30", sent[0].Subject)

	require.NoError(t, job.Run(ctx))
	assert.Len(t, f.mailer.Sent(), 1, "one reminder per occurrence")

	// 23:30, a program just after midnight is tomorrow's occurrence
	f.clock.Advance(16*time.Hour + 30*time.Minute)
	f.feeding(t, alice.ID, "night", "00:15")
	require.NoError(t, job.Run(ctx))
	require.Len(t, f.mailer.Sent(), 2)

	f.clock.Advance(45 * time.Minute)
	require.NoError(t, job.Run(ctx))
	assert.Len(t, f.mailer.Sent(), 2, "not reminded again after midnight")

	f.clock.Advance(6*time.Hour + 45*time.Minute)
	require.NoError(t, job.Run(ctx))
	assert.Len(t, f.mailer.Sent(), 3, "reminded again the next morning")

	_, total, err := f.history.List(ctx, repository.HistoryFilter{UserID: &alice.ID, Type: models.HistoryFeeding})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}
