// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/ctfarena/internal/token"
)

// Config holds server runtime configuration.
type Config struct {
	Env         string `env:"ENV,default=development"`
	Addr        string `env:"ADDR,default=:8080"`
	OpsGRPCAddr string `env:"OPS_GRPC_ADDR"`
	DBDSN       string `env:"DB_DSN,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	CookieName     string   `env:"COOKIE_NAME,default=ctf_session"`
	CookieSecure   *bool    `env:"COOKIE_SECURE,noinit"`
	CookieDomain   string   `env:"COOKIE_DOMAIN"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	NATSURL      string `env:"NATS_URL"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`

	WSHandshakeTimeout time.Duration `env:"WS_HANDSHAKE_TIMEOUT,default=10s"`
	LoginWindow        time.Duration `env:"LOGIN_WINDOW,default=15m"`
	LoginMaxFails      int           `env:"LOGIN_MAX_FAILS,default=5"`
	LoginBlockFor      time.Duration `env:"LOGIN_BLOCK_FOR,default=15m"`
	HTTPRateLimit      int           `env:"HTTP_RATE_LIMIT,default=20"`
	LeaderboardSize    int           `env:"LEADERBOARD_SIZE,default=100"`

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"TRUST_PROXY,default=false"`
}

// Load reads .env (if present) and the process environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CLIConfig is the subset of settings used by ctfctl. It does not require
// the token secret or any server-only option.
type CLIConfig struct {
	DBDSN   string `env:"DB_DSN,required"`
	NATSURL string `env:"NATS_URL"`
}

// LoadCLI reads .env (if present) and the process environment into a CLIConfig.
func LoadCLI(ctx context.Context) (CLIConfig, error) {
	_ = godotenv.Load()
	return LoadCLIWith(ctx, envconfig.OsLookuper())
}

// LoadCLIWith reads a CLIConfig through l.
func LoadCLIWith(ctx context.Context, l envconfig.Lookuper) (CLIConfig, error) {
	var cfg CLIConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return CLIConfig{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// SecureCookies reports whether session cookies carry the Secure attribute.
// Unset, it follows IsProduction.
func (c Config) SecureCookies() bool {
	if c.CookieSecure != nil {
		return *c.CookieSecure
	}
	return c.IsProduction()
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// Validate checks invariants that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < token.MinSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", token.MinSecretLen))
	}
	if c.CookieName == "" {
		errs = append(errs, errors.New("COOKIE_NAME must not be empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.WSHandshakeTimeout <= 0 {
		errs = append(errs, errors.New("WS_HANDSHAKE_TIMEOUT must be positive"))
	}
	if c.LoginMaxFails <= 0 || c.LoginWindow <= 0 || c.LoginBlockFor <= 0 {
		errs = append(errs, errors.New("LOGIN_WINDOW, LOGIN_MAX_FAILS and LOGIN_BLOCK_FOR must be positive"))
	}
	if c.HTTPRateLimit <= 0 {
		errs = append(errs, errors.New("HTTP_RATE_LIMIT must be positive"))
	}
	if c.LeaderboardSize <= 0 {
		errs = append(errs, errors.New("LEADERBOARD_SIZE must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
