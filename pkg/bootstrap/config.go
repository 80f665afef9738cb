package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/barrald/strava-uploader/pkg/ratelimit"
)

const (
	DefaultDataRoot     = "runkeeper-data"
	DefaultCardioFile   = "cardioActivities.csv"
	DefaultPollInterval = time.Second
	DefaultHTTPTimeout  = 60 * time.Second
)

var (
	ErrMissingCredential = errors.New("access token not found, set STRAVA_UPLOADER_TOKEN")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Config holds everything a run needs. Values come from the environment,
// then an optional YAML file, then command line flags.
type Config struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	DataRoot   string `yaml:"data_root"`
	CardioFile string `yaml:"cardio_file"`

	RateLimitBackoff time.Duration `yaml:"rate_limit_backoff"`
	PollInterval     time.Duration `yaml:"upload_poll_interval"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`

	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	SentryDSN   string `yaml:"sentry_dsn"`
	Environment string `yaml:"environment"`

	ProjectID     string `yaml:"project_id"`
	ReportBucket  string `yaml:"report_bucket"`
	EnablePublish bool   `yaml:"enable_publish"`
}

// LoadConfig reads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessToken:  os.Getenv("STRAVA_UPLOADER_TOKEN"),
		RefreshToken: os.Getenv("STRAVA_REFRESH_TOKEN"),
		ClientID:     os.Getenv("STRAVA_CLIENT_ID"),
		ClientSecret: os.Getenv("STRAVA_CLIENT_SECRET"),

		DataRoot:   getenv("DATA_ROOT_DIR", DefaultDataRoot),
		CardioFile: getenv("CARDIO_FILE", DefaultCardioFile),

		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogFile:     os.Getenv("LOG_FILE"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Environment: getenv("ENVIRONMENT", "local"),

		ProjectID:     os.Getenv("GOOGLE_CLOUD_PROJECT"),
		ReportBucket:  os.Getenv("REPORT_BUCKET"),
		EnablePublish: os.Getenv("ENABLE_PUBLISH") == "true",
	}

	var err error
	if cfg.RateLimitBackoff, err = durationEnv("RATE_LIMIT_BACKOFF", ratelimit.DefaultPolicy.Backoff); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = durationEnv("UPLOAD_POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = durationEnv("HTTP_TIMEOUT", DefaultHTTPTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFile overlays the values set in a YAML file onto c.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	file := *c
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	*c = file
	return nil
}

// CardioPath is the export file location.
func (c *Config) CardioPath() string {
	if filepath.IsAbs(c.CardioFile) {
		return c.CardioFile
	}
	return filepath.Join(c.DataRoot, c.CardioFile)
}

// CanRefresh reports whether enough is configured to refresh the token.
func (c *Config) CanRefresh() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

// Validate reports configuration errors that make a run pointless.
func (c *Config) Validate() error {
	if c.AccessToken == "" && !c.CanRefresh() {
		return ErrMissingCredential
	}
	if c.RefreshToken != "" && !c.CanRefresh() {
		return fmt.Errorf("%w: STRAVA_REFRESH_TOKEN needs STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET", ErrInvalidConfig)
	}
	if c.DataRoot == "" {
		return fmt.Errorf("%w: data root is empty", ErrInvalidConfig)
	}
	info, err := os.Stat(c.DataRoot)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: data root %s is not a directory", ErrInvalidConfig, c.DataRoot)
	}
	if c.RateLimitBackoff <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrInvalidConfig)
	}
	if c.EnablePublish && c.ProjectID == "" {
		return fmt.Errorf("%w: ENABLE_PUBLISH needs GOOGLE_CLOUD_PROJECT", ErrInvalidConfig)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	// Bare numbers are seconds.
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v)
	}
	return time.Duration(secs) * time.Second, nil
}
