// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/pantry/internal/backup"
	"github.com/dukerupert/pantry/internal/expiry"
	"github.com/dukerupert/pantry/internal/push"
	"github.com/dukerupert/pantry/internal/recipeai"
)

const (
	DefaultPort            = "8080"
	DefaultDBPath          = "pantry.db"
	DefaultAIRatePerMinute = 10
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string

	// ExpiryHorizonDays is the lookahead window for "expiring soon".
	ExpiryHorizonDays int

	// AIRatePerMinute caps AI requests per user. Zero disables the limit.
	AIRatePerMinute int

	Gemini recipeai.Config

	// Push enables daily expiry reminders when both VAPID keys are set.
	Push push.Config

	// Backup enables encrypted daily snapshots to S3-compatible storage.
	Backup backup.Config
}

// Load reads an optional .env file from the working directory and then the
// process environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Malformed numeric values are errors;
// unset values take defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:      stringOr(getenv("PANTRY_PORT"), DefaultPort),
		DBPath:    stringOr(getenv("PANTRY_DB_PATH"), DefaultDBPath),
		LogLevel:  stringOr(getenv("PANTRY_LOG_LEVEL"), "info"),
		LogFormat: stringOr(getenv("PANTRY_LOG_FORMAT"), "text"),
		Gemini: recipeai.Config{
			APIKey:  strings.TrimSpace(getenv("GEMINI_API_KEY")),
			Model:   stringOr(getenv("GEMINI_MODEL"), recipeai.DefaultModel),
			BaseURL: stringOr(getenv("GEMINI_BASE_URL"), recipeai.DefaultBaseURL),
		},
		Push: push.Config{
			VAPIDPublicKey:  strings.TrimSpace(getenv("PANTRY_VAPID_PUBLIC_KEY")),
			VAPIDPrivateKey: strings.TrimSpace(getenv("PANTRY_VAPID_PRIVATE_KEY")),
			Subscriber:      stringOr(getenv("PANTRY_VAPID_SUBJECT"), push.DefaultSubscriber),
		},
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  strings.TrimSpace(getenv("PANTRY_BACKUP_S3_ENDPOINT")),
				Bucket:    strings.TrimSpace(getenv("PANTRY_BACKUP_S3_BUCKET")),
				Region:    stringOr(getenv("PANTRY_BACKUP_S3_REGION"), backup.DefaultRegion),
				AccessKey: strings.TrimSpace(getenv("PANTRY_BACKUP_S3_ACCESS_KEY")),
				SecretKey: strings.TrimSpace(getenv("PANTRY_BACKUP_S3_SECRET_KEY")),
				Prefix:    stringOr(getenv("PANTRY_BACKUP_S3_PREFIX"), backup.DefaultPrefix),
			},
			Passphrase: getenv("PANTRY_BACKUP_PASSPHRASE"),
		},
	}

	p := parser{getenv: getenv}
	cfg.ExpiryHorizonDays = p.positiveInt("PANTRY_EXPIRY_HORIZON_DAYS", expiry.DefaultHorizonDays)
	cfg.AIRatePerMinute = p.nonNegativeInt("PANTRY_AI_RATE_PER_MINUTE", DefaultAIRatePerMinute)
	cfg.Gemini.Timeout = p.duration("GEMINI_TIMEOUT", recipeai.DefaultTimeout)
	cfg.Gemini.Temperature = p.float("GEMINI_TEMPERATURE", recipeai.DefaultTemperature, 0, 2)
	cfg.Gemini.MaxOutputTokens = p.positiveInt("GEMINI_MAX_OUTPUT_TOKENS", recipeai.DefaultMaxOutputTokens)
	cfg.Gemini.TopP = p.float("GEMINI_TOP_P", recipeai.DefaultTopP, 0, 1)
	cfg.Backup.Hour = p.intRange("PANTRY_BACKUP_HOUR", backup.DefaultHour, 0, 23)
	cfg.Backup.RetentionDays = p.positiveInt("PANTRY_BACKUP_RETENTION_DAYS", backup.DefaultRetentionDays)

	if (cfg.Push.VAPIDPublicKey == "") != (cfg.Push.VAPIDPrivateKey == "") {
		p.errs = append(p.errs, errors.New("PANTRY_VAPID_PUBLIC_KEY and PANTRY_VAPID_PRIVATE_KEY must be set together"))
	}

	if len(p.errs) > 0 {
		return Config{}, errors.Join(p.errs...)
	}
	return cfg, nil
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

// parser collects every malformed variable so they can be reported at once.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) lookup(key string) (string, bool) {
	v := strings.TrimSpace(p.getenv(key))
	return v, v != ""
}

func (p *parser) fail(key, v, want string) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %s", key, v, want))
}

func (p *parser) positiveInt(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.fail(key, v, "must be a positive integer")
		return def
	}
	return n
}

func (p *parser) nonNegativeInt(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(key, v, "must be a non-negative integer")
		return def
	}
	return n
}

func (p *parser) intRange(key string, def, lo, hi int) int {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		p.fail(key, v, fmt.Sprintf("must be an integer between %d and %d", lo, hi))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.fail(key, v, "must be a positive duration such as 30s")
		return def
	}
	return d
}

func (p *parser) float(key string, def, lo, hi float64) float64 {
	v, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < lo || f > hi {
		p.fail(key, v, fmt.Sprintf("must be a number between %g and %g", lo, hi))
		return def
	}
	return f
}
