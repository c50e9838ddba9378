package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBDialect       string   `mapstructure:"DB_DIALECT"`
	DBUsername      string   `mapstructure:"DB_USERNAME"`
	DBPassword      string   `mapstructure:"DB_PASSWORD"`
	DBHost          string   `mapstructure:"DB_HOST"`
	DBPort          string   `mapstructure:"DB_PORT"`
	DBName          string   `mapstructure:"DB_NAME"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	RequestLogsPath string   `mapstructure:"REQUEST_LOGS_PATH"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	BodyLimit       string   `mapstructure:"BODY_LIMIT"`
	MigrationsDir   string   `mapstructure:"MIGRATIONS_DIR"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL",
	"DB_DIALECT", "DB_USERNAME", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
	"DB_MAX_CONNS", "DB_MIN_CONNS",
	"REQUEST_LOGS_PATH", "CORS_ORIGINS", "BODY_LIMIT", "MIGRATIONS_DIR", "REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_DIALECT", "postgresql")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REQUEST_LOGS_PATH", "./request_logs")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		dsn, err := cfg.composeDatabaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode (ENV=development); logs are human-readable and seeding may reset tables.")
	}

	return cfg, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// composeDatabaseURL builds the connection URL from the DB_* settings when
// DATABASE_URL is not given.
func (c *Config) composeDatabaseURL() (string, error) {
	if c.DBName == "" || c.DBUsername == "" {
		return "", fmt.Errorf("DATABASE_URL is required (or DB_USERNAME and DB_NAME to compose it)")
	}
	scheme, err := normalizeDialect(c.DBDialect)
	if err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.DBUsername, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBPassword == "" {
		u.User = url.User(c.DBUsername)
	}
	return u.String(), nil
}

// normalizeDialect accepts the SQLAlchemy-style dialect names, including a
// "+driver" suffix, and returns the URL scheme pgx understands.
func normalizeDialect(d string) (string, error) {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(d)), "+")
	switch base {
	case "postgres", "postgresql":
		return "postgres", nil
	default:
		return "", fmt.Errorf("DB_DIALECT %q is not supported; only postgresql is", d)
	}
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the settings that Load does not.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be \"development\" or \"production\", got %q", c.Env)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if _, err := bytes.Parse(c.BodyLimit); err != nil {
		return fmt.Errorf("BODY_LIMIT %q: %w", c.BodyLimit, err)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.RequestLogsPath == "" {
		return fmt.Errorf("REQUEST_LOGS_PATH must not be empty")
	}
	return nil
}
