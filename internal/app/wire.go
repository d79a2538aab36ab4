package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smart-coop/internal/auth"
	"smart-coop/internal/config"
	"smart-coop/internal/database"
	"smart-coop/internal/farm"
	"smart-coop/internal/handler"
	"smart-coop/internal/history"
	"smart-coop/internal/models"
	"smart-coop/internal/notify"
	"smart-coop/internal/repository"
	mongorepo "smart-coop/internal/repository/mongo"
	redisrepo "smart-coop/internal/repository/redis"
	"smart-coop/internal/router"
	"smart-coop/internal/scheduler"

	"github.com/jonboulle/clockwork"
)

// Options overrides collaborators that default from the config.
type Options struct {
	Clock  clockwork.Clock
	Mailer notify.Mailer
}

func (o Options) withDefaults(cfg *config.Config, logger *slog.Logger) Options {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Mailer == nil {
		o.Mailer = notify.NewMailer(cfg.Mail, logger)
	}
	return o
}

func (a *App) setup(ctx context.Context, opts Options) error {
	cfg, logger := a.cfg, a.logger

	db, err := database.Init(cfg.Database)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, func() error { return database.Close(db) })
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	blacklist, err := a.blacklist(ctx, opts.Clock)
	if err != nil {
		return err
	}
	historyStore, err := a.historyStore(ctx)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(db)
	changes := repository.NewPasswordChangeRepository(db)
	vaccines := repository.NewVaccineRepository(db)
	feedings := repository.NewFeedingRepository(db)
	historySvc := history.NewService(historyStore, opts.Clock, logger)

	sessions, err := auth.NewTokenManager(auth.TokenOptions{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    cfg.TokenTTL(),
		Clock:  opts.Clock,
	})
	if err != nil {
		return err
	}
	resets, err := auth.NewTokenManager(auth.TokenOptions{
		Secret:   cfg.JWT.ResetSecret,
		Issuer:   cfg.JWT.Issuer,
		Audience: auth.AudienceReset,
		TTL:      cfg.ResetTokenTTL(),
		Clock:    opts.Clock,
	})
	if err != nil {
		return err
	}

	gate := auth.NewGate(sessions, blacklist, users)
	revoker := auth.NewRevoker(sessions, blacklist)
	links := notify.Links{FrontendURL: cfg.Mail.FrontendURL}

	if err := a.setupScheduler(cfg, opts, blacklist, changes, historySvc, vaccines, feedings); err != nil {
		return err
	}
	farmDeps := handler.FarmDeps{
		Vaccines: vaccines,
		Feedings: feedings,
		History:  historySvc,
		Mailer:   opts.Mailer,
		Clock:    opts.Clock,
		Logger:   logger,
	}

	a.engine = router.SetupRouter(cfg.Server.Mode, gate, logger, router.Handlers{
		Auth:     handler.NewAuthHandler(handler.AuthDeps{
			Users:       users,
			Sessions:    sessions,
			Revoker:     revoker,
			History:     historySvc,
			Mailer:      opts.Mailer,
			Clock:       opts.Clock,
			Logger:      logger,
			BcryptCost:  cfg.Security.BcryptCost,
			CodeLimiter: codeLimiter(cfg, opts.Clock),
		}),
		Profile:  handler.NewProfileHandler(handler.ProfileDeps{
			Users:      users,
			Changes:    changes,
			Revoker:    revoker,
			History:    historySvc,
			Mailer:     opts.Mailer,
			Links:      links,
			Clock:      opts.Clock,
			Logger:     logger,
			BcryptCost: cfg.Security.BcryptCost,
			ChangeTTL:  cfg.PasswordChangeTTL(),
		}),
		Reset:    handler.NewResetHandler(handler.ResetDeps{
			Users:      users,
			Resets:     resets,
			Gate:       auth.NewGate(resets, blacklist, users),
			Revoker:    auth.NewRevoker(resets, blacklist),
			History:    historySvc,
			Mailer:     opts.Mailer,
			Links:      links,
			Clock:      opts.Clock,
			Logger:     logger,
			BcryptCost: cfg.Security.BcryptCost,
		}),
		History:  handler.NewHistoryHandler(historySvc, opts.Clock, logger),
		Users:    handler.NewUserHandler(users, historySvc, logger),
		Vaccines: handler.NewVaccineHandler(farmDeps),
		Feedings: handler.NewFeedingHandler(farmDeps),
	})
	return nil
}

func codeLimiter(cfg *config.Config, clock clockwork.Clock) *auth.AttemptLimiter {
	if cfg.Security.CodeLoginMaxAttempts == 0 {
		return nil
	}
	return auth.NewAttemptLimiter(cfg.Security.CodeLoginMaxAttempts, cfg.CodeLoginLockout(), clock)
}

func (a *App) blacklist(ctx context.Context, clock clockwork.Clock) (auth.Blacklist, error) {
	switch a.cfg.Blacklist.Backend {
	case "redis":
		client, err := redisrepo.Connect(ctx, a.cfg.Blacklist.RedisURL)
		if err != nil {
			return nil, err
		}
		repo := redisrepo.NewBlacklistRepository(client, clock)
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	case "", "sql":
		return repository.NewBlacklistRepository(a.db), nil
	default:
		return nil, fmt.Errorf("unknown blacklist backend %q", a.cfg.Blacklist.Backend)
	}
}

func (a *App) historyStore(ctx context.Context) (history.Store, error) {
	switch a.cfg.History.Backend {
	case "mongo":
		repo, err := mongorepo.NewHistoryRepository(ctx, a.cfg.History.MongoURL, a.cfg.History.MongoDatabase)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		return repo, nil
	case "", "sql":
		return repository.NewHistoryRepository(a.db), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", a.cfg.History.Backend)
	}
}

func (a *App) setupScheduler(cfg *config.Config, opts Options, blacklist auth.Blacklist,
	changes auth.PasswordChangeStore, historySvc *history.Service,
	vaccines farm.VaccineStore, feedings farm.FeedingStore) error {
	clock := opts.Clock
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	s := scheduler.New(scheduler.Options{
		Clock:    clock,
		Location: loc,
		Logger:   a.logger.With("component", "scheduler"),
		OnFinish: func(e scheduler.Event) {
			data := map[string]interface{}{"duration_ms": e.Duration.Milliseconds()}
			desc := "job finished"
			if e.Err != nil {
				data["error"] = e.Err.Error()
				desc = "job failed"
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			historySvc.Log(ctx, nil, models.HistoryMaintenance, e.Job, desc, data)
		},
	})
	if err := s.Add(cfg.Scheduler.TokenSweep, auth.NewBlacklistSweeper(blacklist, clock, a.logger)); err != nil {
		return err
	}
	if err := s.Add(cfg.Scheduler.PasswordChangeSweep, auth.NewPasswordChangeSweeper(changes, clock, a.logger)); err != nil {
		return err
	}

	reminders := farm.ReminderDeps{
		Mailer:   opts.Mailer,
		History:  historySvc,
		Clock:    clock,
		Location: loc,
		Logger:   a.logger.With("component", "reminders"),
	}
	if err := s.Add(cfg.Scheduler.VaccineReminder, farm.NewVaccineReminder(vaccines, reminders)); err != nil {
		return err
	}
	if err := s.Add(cfg.Scheduler.FeedingReminder, farm.NewFeedingReminder(feedings, reminders)); err != nil {
		return err
	}
	a.scheduler = s
	return nil
}
