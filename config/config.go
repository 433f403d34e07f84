// Package config loads the authentication settings from the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-token-auth"
	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment. It implements
// auth.Config.
type Config struct {
	AccessTokenSecret  string        `env:"JWT_ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string        `env:"JWT_REFRESH_TOKEN_SECRET"`
	ResetTokenSecret   string        `env:"JWT_RESET_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"JWT_ACCESS_TOKEN_TTL" envDefault:"5m"`
	RefreshTokenTTL    time.Duration `env:"JWT_REFRESH_TOKEN_TTL" envDefault:"168h"`
	ResetTokenTTL      time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"30m"`
	PasswordHashCost   int           `env:"BCRYPT_SALT_OR_ROUNDS" envDefault:"10"`
	Issuer             string        `env:"JWT_ISSUER"`
	Audience           []string      `env:"JWT_AUDIENCE" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:authctl.db?cache=shared"`
	RedisURL    string `env:"REDIS_URL"`

	Google   Google
	Postmark Postmark

	OAuthStateKey string `env:"OAUTH_STATE_KEY"`
}

// Google holds the OAuth client registration.
type Google struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	CallbackURL  string `env:"GOOGLE_CALLBACK_URL"`
}

// Enabled reports whether a client id and secret are configured.
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Postmark holds the reset email settings.
type Postmark struct {
	ServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	AccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	Sender       string `env:"MAIL_SENDER"`
	ResetURL     string `env:"PASSWORD_RESET_URL"`
}

// Enabled reports whether reset emails can be sent.
func (p Postmark) Enabled() bool {
	return p.ServerToken != ""
}

var _ auth.Config = (*Config)(nil)

func (c *Config) GetAccessTokenSecret() string      { return c.AccessTokenSecret }
func (c *Config) GetRefreshTokenSecret() string     { return c.RefreshTokenSecret }
func (c *Config) GetResetTokenSecret() string       { return c.ResetTokenSecret }
func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }
func (c *Config) GetResetTokenTTL() time.Duration   { return c.ResetTokenTTL }
func (c *Config) GetPasswordHashCost() int          { return c.PasswordHashCost }
func (c *Config) GetIssuer() string                 { return c.Issuer }
func (c *Config) GetAudience() []string             { return c.Audience }

// Load reads the optional .env files and the process environment, then
// validates the result. Invalid settings fail with auth.ErrBadConfiguration.
func Load(dotenv ...string) (*Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}

	for _, file := range dotenv {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, badConfiguration(err, "failed to read "+file)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, badConfiguration(err, "failed to parse environment")
	}

	return finalize(&cfg)
}

// FromMap builds a Config from key/value pairs instead of the process
// environment.
func FromMap(values map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: values}); err != nil {
		return nil, badConfiguration(err, "failed to parse environment")
	}

	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	audience := cfg.Audience[:0]
	for _, aud := range cfg.Audience {
		if aud = strings.TrimSpace(aud); aud != "" {
			audience = append(audience, aud)
		}
	}
	cfg.Audience = audience

	if err := auth.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.Google.Enabled() && cfg.OAuthStateKey == "" {
		return nil, goerrors.New("OAUTH_STATE_KEY is required when google login is configured", goerrors.CategoryInternal).
			WithTextCode(auth.TextCodeBadConfiguration).
			WithCode(goerrors.CodeInternal)
	}

	return cfg, nil
}

func badConfiguration(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(auth.TextCodeBadConfiguration).
		WithCode(goerrors.CodeInternal)
}
