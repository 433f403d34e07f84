package auth

import (
	"time"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTokenTTL   = 5 * time.Minute
	DefaultRefreshTokenTTL  = 7 * 24 * time.Hour
	DefaultResetTokenTTL    = 30 * time.Minute
	DefaultPasswordHashCost = 10
)

// StaticConfig is an immutable Config built in code
type StaticConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	ResetTokenSecret   string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	ResetTokenTTL      time.Duration
	PasswordHashCost   int
	Issuer             string
	Audience           []string
}

var _ Config = StaticConfig{}

func (c StaticConfig) GetAccessTokenSecret() string  { return c.AccessTokenSecret }
func (c StaticConfig) GetRefreshTokenSecret() string { return c.RefreshTokenSecret }
func (c StaticConfig) GetResetTokenSecret() string   { return c.ResetTokenSecret }
func (c StaticConfig) GetIssuer() string             { return c.Issuer }
func (c StaticConfig) GetAudience() []string         { return c.Audience }

func (c StaticConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL == 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

func (c StaticConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL == 0 {
		return DefaultRefreshTokenTTL
	}
	return c.RefreshTokenTTL
}

func (c StaticConfig) GetResetTokenTTL() time.Duration {
	if c.ResetTokenTTL == 0 {
		return DefaultResetTokenTTL
	}
	return c.ResetTokenTTL
}

func (c StaticConfig) GetPasswordHashCost() int {
	if c.PasswordHashCost == 0 {
		return DefaultPasswordHashCost
	}
	return c.PasswordHashCost
}

// ValidateConfig checks the settings required before serving traffic
func ValidateConfig(cfg Config) error {
	if cfg == nil {
		return badConfiguration("configuration is required", nil)
	}

	access := cfg.GetAccessTokenSecret()
	refresh := cfg.GetRefreshTokenSecret()

	if access == "" {
		return badConfiguration("access token secret is required", nil)
	}

	if refresh == "" {
		return badConfiguration("refresh token secret is required", nil)
	}

	if access == refresh {
		return badConfiguration("access and refresh token secrets must differ", nil)
	}

	accessTTL := cfg.GetAccessTokenTTL()
	refreshTTL := cfg.GetRefreshTokenTTL()

	if accessTTL <= 0 || refreshTTL <= 0 {
		return badConfiguration("token TTLs must be positive", map[string]any{
			"access_ttl":  accessTTL.String(),
			"refresh_ttl": refreshTTL.String(),
		})
	}

	if accessTTL >= refreshTTL {
		return badConfiguration("access token TTL must be shorter than refresh token TTL", map[string]any{
			"access_ttl":  accessTTL.String(),
			"refresh_ttl": refreshTTL.String(),
		})
	}

	if cfg.GetResetTokenTTL() < 0 {
		return badConfiguration("password reset TTL must not be negative", nil)
	}

	cost := cfg.GetPasswordHashCost()
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return badConfiguration("password hash cost out of range", map[string]any{
			"cost": cost,
			"min":  bcrypt.MinCost,
			"max":  bcrypt.MaxCost,
		})
	}

	return nil
}

func badConfiguration(message string, metadata map[string]any) error {
	err := errors.New(message, ErrBadConfiguration.Category).
		WithTextCode(ErrBadConfiguration.TextCode).
		WithCode(ErrBadConfiguration.Code)
	if metadata != nil {
		err = err.WithMetadata(metadata)
	}
	return err
}
