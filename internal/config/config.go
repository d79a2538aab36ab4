package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"` // sqlite / postgres
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	Issuer             string `mapstructure:"issuer"`
	ExpireHours        int    `mapstructure:"expire_hours"`
	ResetSecret        string `mapstructure:"reset_secret"`
	ResetExpireMinutes int    `mapstructure:"reset_expire_minutes"`
}

type SecurityConfig struct {
	BcryptCost               int `mapstructure:"bcrypt_cost"`
	PasswordChangeTTLMinutes int `mapstructure:"password_change_ttl_minutes"`
	CodeLoginMaxAttempts     int `mapstructure:"code_login_max_attempts"` // per client IP
	CodeLoginLockoutMinutes  int `mapstructure:"code_login_lockout_minutes"`
}

type BlacklistConfig struct {
	Backend  string `mapstructure:"backend"` // sql / redis
	RedisURL string `mapstructure:"redis_url"`
}

type HistoryConfig struct {
	Backend       string `mapstructure:"backend"` // sql / mongo
	MongoURL      string `mapstructure:"mongo_url"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type SchedulerConfig struct {
	Timezone            string `mapstructure:"timezone"`
	TokenSweep          string `mapstructure:"token_sweep"`
	PasswordChangeSweep string `mapstructure:"password_change_sweep"`
	VaccineReminder     string `mapstructure:"vaccine_reminder"`
	FeedingReminder     string `mapstructure:"feeding_reminder"`
}

type MailConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	From        string `mapstructure:"from"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json / text
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	Blacklist BlacklistConfig `mapstructure:"blacklist"`
	History   HistoryConfig   `mapstructure:"history"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Mail      MailConfig      `mapstructure:"mail"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/coop.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_mode", false)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "smart-coop")
	v.SetDefault("jwt.expire_hours", 24)
	v.SetDefault("jwt.reset_secret", "")
	v.SetDefault("jwt.reset_expire_minutes", 60)

	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.password_change_ttl_minutes", 60)
	v.SetDefault("security.code_login_max_attempts", 5)
	v.SetDefault("security.code_login_lockout_minutes", 10)

	v.SetDefault("blacklist.backend", "sql")
	v.SetDefault("blacklist.redis_url", "redis://localhost:6379/0")

	v.SetDefault("history.backend", "sql")
	v.SetDefault("history.mongo_url", "mongodb://localhost:27017")
	v.SetDefault("history.mongo_database", "smart_coop")

	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("scheduler.token_sweep", "0 0 * * *")
	v.SetDefault("scheduler.password_change_sweep", "0 * * * *")
	v.SetDefault("scheduler.vaccine_reminder", "0 8 * * *")
	v.SetDefault("scheduler.feeding_reminder", "*/5 * * * *")

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "Smart Coop <no-reply@smart-coop.local>")
	v.SetDefault("mail.frontend_url", "http://localhost:4200")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from the given file path (e.g. "config.yaml").
// If path is empty, "config.yaml" in the working directory is used when it
// exists; otherwise defaults and environment variables apply.
//
// Environment overrides use the COOP_ prefix with dots replaced by
// underscores, e.g. COOP_JWT_SECRET or COOP_SERVER_PORT=9000.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("COOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.JWT.ResetSecret == "" {
		c.JWT.ResetSecret = c.JWT.Secret
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate reports the first configuration error that would make the
// service unusable.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.JWT.ExpireHours <= 0 {
		return fmt.Errorf("config: jwt.expire_hours must be positive, got %d", c.JWT.ExpireHours)
	}
	if c.JWT.ResetExpireMinutes <= 0 {
		return fmt.Errorf("config: jwt.reset_expire_minutes must be positive, got %d", c.JWT.ResetExpireMinutes)
	}
	if c.Security.PasswordChangeTTLMinutes <= 0 {
		return fmt.Errorf("config: security.password_change_ttl_minutes must be positive, got %d", c.Security.PasswordChangeTTLMinutes)
	}

	if c.Security.CodeLoginMaxAttempts < 0 || c.Security.CodeLoginLockoutMinutes < 0 {
		return errors.New("config: security.code_login_* must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("config: database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("config: database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}

	switch c.Blacklist.Backend {
	case "sql", "redis":
	default:
		return fmt.Errorf("config: unknown blacklist.backend %q", c.Blacklist.Backend)
	}
	switch c.History.Backend {
	case "sql", "mongo":
	default:
		return fmt.Errorf("config: unknown history.backend %q", c.History.Backend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	for key, spec := range map[string]string{
		"scheduler.token_sweep":           c.Scheduler.TokenSweep,
		"scheduler.password_change_sweep": c.Scheduler.PasswordChangeSweep,
		"scheduler.vaccine_reminder":      c.Scheduler.VaccineReminder,
		"scheduler.feeding_reminder":      c.Scheduler.FeedingReminder,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return nil
}

// TokenTTL is the lifetime of session tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.ExpireHours) * time.Hour
}

// ResetTokenTTL is the lifetime of forgotten-password tokens.
func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.JWT.ResetExpireMinutes) * time.Minute
}

// PasswordChangeTTL is how long a pending password change stays valid.
func (c *Config) PasswordChangeTTL() time.Duration {
	return time.Duration(c.Security.PasswordChangeTTLMinutes) * time.Minute
}

// CodeLoginLockout is how long a client stays locked out of code login.
func (c *Config) CodeLoginLockout() time.Duration {
	return time.Duration(c.Security.CodeLoginLockoutMinutes) * time.Minute
}

// Location resolves scheduler.timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: scheduler.timezone: %w", err)
	}
	return loc, nil
}
