package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
jwt:
  secret: file-secret
  expire_hours: 12
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, "file-secret", cfg.JWT.ResetSecret, "reset secret falls back to jwt.secret")
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL())
	assert.Equal(t, time.Hour, cfg.ResetTokenTTL())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.TokenSweep)
	assert.Equal(t, "0 8 * * *", cfg.Scheduler.VaccineReminder)
	assert.Equal(t, "*/5 * * * *", cfg.Scheduler.FeedingReminder)
	assert.Equal(t, 5, cfg.Security.CodeLoginMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.CodeLoginLockout())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: file-secret\n")
	t.Setenv("COOP_JWT_SECRET", "env-secret")
	t.Setenv("COOP_SERVER_PORT", "9000")
	t.Setenv("COOP_BLACKLIST_BACKEND", "redis")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Blacklist.Backend)
}

func TestLoad_MissingSecretIsStartupError(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database:  DatabaseConfig{Driver: "sqlite", Path: "coop.db"},
			JWT:       JWTConfig{Secret: "s", ExpireHours: 24, ResetExpireMinutes: 60},
			Security:  SecurityConfig{PasswordChangeTTLMinutes: 60},
			Blacklist: BlacklistConfig{Backend: "sql"},
			History:   HistoryConfig{Backend: "sql"},
			Scheduler: SchedulerConfig{Timezone: "UTC", TokenSweep: "0 0 * * *", PasswordChangeSweep: "0 * * * *",
				VaccineReminder: "0 8 * * *", FeedingReminder: "*/5 * * * *"},
		}
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"zero ttl":          func(c *Config) { c.JWT.ExpireHours = 0 },
		"unknown driver":    func(c *Config) { c.Database.Driver = "oracle" },
		"postgres no dsn":   func(c *Config) { c.Database.Driver = "postgres" },
		"unknown blacklist": func(c *Config) { c.Blacklist.Backend = "memcache" },
		"unknown history":   func(c *Config) { c.History.Backend = "file" },
		"bad cron":          func(c *Config) { c.Scheduler.TokenSweep = "every day" },
		"bad reminder cron": func(c *Config) { c.Scheduler.FeedingReminder = "often" },
		"bad timezone":      func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
