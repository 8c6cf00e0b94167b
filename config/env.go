package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config 从环境变量读取
type Config struct {
	Port string `env:"PORT" envDefault:"3001"`

	// postgres | sqlite
	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"loaner"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"loaner.sqlite"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPwd  string `env:"REDIS_PASSWORD"`

	WebOrigin   string        `env:"WEB_ORIGIN" envDefault:"http://localhost:3000"`
	RPID        string        `env:"RP_ID" envDefault:"localhost"`
	RPOrigins   []string      `env:"RP_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	CeremonyTTL time.Duration `env:"WEBAUTHN_SESSION_TTL" envDefault:"10m"`

	JWTSecret      string        `env:"JWT_SECRET"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	SeenThrottle   time.Duration `env:"SEEN_THROTTLE" envDefault:"5m"`

	BootstrapAdminUsername string `env:"BOOTSTRAP_ADMIN_USERNAME"`
	BootstrapAdminPassword string `env:"BOOTSTRAP_ADMIN_PASSWORD"`
	BootstrapAdminEmail    string `env:"BOOTSTRAP_ADMIN_EMAIL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadEnv reads a .env file into the process environment if one exists.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}
}

// Parse loads configuration from environment variables.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// PostgresDSN 优先使用 DATABASE_URL，否则按分项拼接
func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// SecureCookies reports whether the web origin is served over TLS.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.WebOrigin, "https://")
}
