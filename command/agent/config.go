// Copyright (c) Mural Authors
// SPDX-License-Identifier: MPL-2.0

package agent

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"
)

const (
	// DefaultMinPoolSize and DefaultMaxPoolSize bound the database pool.
	DefaultMinPoolSize = 2
	DefaultMaxPoolSize = 5

	// DefaultTaskPendingDelay is the lease duration in seconds.
	DefaultTaskPendingDelay = 5.0

	// DefaultTaskRefreshTime is the refresh interval in seconds.
	DefaultTaskRefreshTime = 2.0

	// DefaultLogLevel is used when LOG_LEVEL is unset.
	DefaultLogLevel = "INFO"

	// DefaultHTTPAddr is where the HTTP server binds.
	DefaultHTTPAddr = "127.0.0.1:8000"

	// Discord is the OAuth provider the original deployment runs against.
	defaultAuthorizeURL = "https://discord.com/api/oauth2/authorize"
	defaultTokenURL     = "https://discord.com/api/oauth2/token"
	defaultUserURL      = "https://discord.com/api/users/@me"
)

// Config is the agent configuration, read from the environment.
type Config struct {
	// DatabaseURL is the Postgres connection string (DATABASE_URL).
	DatabaseURL string

	// MinPoolSize and MaxPoolSize bound the database pool (MIN_POOL_SIZE,
	// MAX_POOL_SIZE).
	MinPoolSize int
	MaxPoolSize int

	// JWTSecret signs user tokens (JWT_SECRET).
	JWTSecret string

	// BaseURL is this service's public URL (BASE_URL).
	BaseURL string

	// OAuthRedirectURL is where the provider sends users back
	// (OAUTH_REDIRECT_URL).
	OAuthRedirectURL string

	// ClientID and ClientSecret identify us to the OAuth provider
	// (CLIENT_ID, CLIENT_SECRET).
	ClientID     string
	ClientSecret string

	// AuthorizeURL, TokenURL and UserURL are the provider endpoints.
	// Defaults point at Discord; overridable for tests
	// (OAUTH_AUTHORIZE_URL, OAUTH_TOKEN_URL, OAUTH_USER_URL).
	AuthorizeURL string
	TokenURL     string
	UserURL      string

	// CanvasURL is the remote pixel API root (CANVAS_API_URL).
	CanvasURL string

	// CanvasToken is the bearer token for the remote pixel API
	// (PIXELS_API_TOKEN).
	CanvasToken string

	// TaskPendingDelay is how long an assigned task is reserved
	// (TASK_PENDING_DELAY, float seconds).
	TaskPendingDelay time.Duration

	// TaskRefreshTime is the pause between refresh loop ticks
	// (TASK_REFRESH_TIME, float seconds).
	TaskRefreshTime time.Duration

	// LogLevel is one of TRACE, DEBUG, INFO, WARN, ERROR (LOG_LEVEL).
	LogLevel string

	// HTTPAddr is the bind address for the HTTP server (HTTP_ADDR).
	HTTPAddr string

	// Moderators is the startup seed of moderator user IDs
	// (MODERATOR_IDS, whitespace or newline separated).
	Moderators []int64
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		MinPoolSize:      DefaultMinPoolSize,
		MaxPoolSize:      DefaultMaxPoolSize,
		AuthorizeURL:     defaultAuthorizeURL,
		TokenURL:         defaultTokenURL,
		UserURL:          defaultUserURL,
		TaskPendingDelay: secondsToDuration(DefaultTaskPendingDelay),
		TaskRefreshTime:  secondsToDuration(DefaultTaskRefreshTime),
		LogLevel:         DefaultLogLevel,
		HTTPAddr:         DefaultHTTPAddr,
	}
}

// LoadConfig reads the environment on top of the defaults. Parse failures
// are collected rather than returned one at a time.
func LoadConfig(getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	config := DefaultConfig()
	var mErr multierror.Error

	config.DatabaseURL = getenv("DATABASE_URL")
	config.JWTSecret = getenv("JWT_SECRET")
	config.BaseURL = getenv("BASE_URL")
	config.OAuthRedirectURL = getenv("OAUTH_REDIRECT_URL")
	config.ClientID = getenv("CLIENT_ID")
	config.ClientSecret = getenv("CLIENT_SECRET")
	config.CanvasURL = getenv("CANVAS_API_URL")
	config.CanvasToken = getenv("PIXELS_API_TOKEN")

	if v := getenv("MIN_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("MIN_POOL_SIZE: %w", err))
		} else {
			config.MinPoolSize = n
		}
	}
	if v := getenv("MAX_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("MAX_POOL_SIZE: %w", err))
		} else {
			config.MaxPoolSize = n
		}
	}
	if v := getenv("TASK_PENDING_DELAY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("TASK_PENDING_DELAY: %w", err))
		} else {
			config.TaskPendingDelay = secondsToDuration(f)
		}
	}
	if v := getenv("TASK_REFRESH_TIME"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("TASK_REFRESH_TIME: %w", err))
		} else {
			config.TaskRefreshTime = secondsToDuration(f)
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := getenv("HTTP_ADDR"); v != "" {
		config.HTTPAddr = v
	}
	if v := getenv("OAUTH_AUTHORIZE_URL"); v != "" {
		config.AuthorizeURL = v
	}
	if v := getenv("OAUTH_TOKEN_URL"); v != "" {
		config.TokenURL = v
	}
	if v := getenv("OAUTH_USER_URL"); v != "" {
		config.UserURL = v
	}

	mods, err := ParseModerators(getenv("MODERATOR_IDS"))
	if err != nil {
		mErr.Errors = append(mErr.Errors, err)
	}
	config.Moderators = mods

	return config, mErr.ErrorOrNil()
}

// ParseModerators splits a whitespace or newline separated list of user IDs.
func ParseModerators(raw string) ([]int64, error) {
	var ids []int64
	var mErr multierror.Error
	for _, field := range strings.Fields(raw) {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("MODERATOR_IDS: %q is not a user id", field))
			continue
		}
		ids = append(ids, id)
	}
	return ids, mErr.ErrorOrNil()
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var mErr multierror.Error

	required := []struct {
		name  string
		value string
	}{
		{"DATABASE_URL", c.DatabaseURL},
		{"JWT_SECRET", c.JWTSecret},
		{"BASE_URL", c.BaseURL},
		{"OAUTH_REDIRECT_URL", c.OAuthRedirectURL},
		{"CLIENT_ID", c.ClientID},
		{"CLIENT_SECRET", c.ClientSecret},
		{"CANVAS_API_URL", c.CanvasURL},
		{"PIXELS_API_TOKEN", c.CanvasToken},
	}
	for _, r := range required {
		if r.value == "" {
			mErr.Errors = append(mErr.Errors, fmt.Errorf("%s is required", r.name))
		}
	}

	if c.MinPoolSize < 1 {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("MIN_POOL_SIZE must be at least 1, got %d", c.MinPoolSize))
	}
	if c.MaxPoolSize < c.MinPoolSize {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("MAX_POOL_SIZE (%d) must not be below MIN_POOL_SIZE (%d)", c.MaxPoolSize, c.MinPoolSize))
	}
	if c.TaskPendingDelay <= 0 {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("TASK_PENDING_DELAY must be positive"))
	}
	if c.TaskRefreshTime <= 0 {
		mErr.Errors = append(mErr.Errors, fmt.Errorf("TASK_REFRESH_TIME must be positive"))
	}

	return mErr.ErrorOrNil()
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
