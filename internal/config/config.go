package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/facematch"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrConfiguration is returned by Validate when required settings are missing or invalid.
var ErrConfiguration = errors.New("invalid configuration")

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Storage    StorageConfig    `yaml:"storage"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Match      MatchConfig      `yaml:"match"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Web        WebConfig        `yaml:"web"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections
}

type EmbeddingConfig struct {
	URL        string        `yaml:"url"`         // face embedding server base URL
	HealthPath string        `yaml:"health_path"` // probed once when the provider is first used
	Timeout    time.Duration `yaml:"-"`
}

// StorageConfig describes the S3-compatible bucket holding registration images.
type StorageConfig struct {
	Endpoint       string        `yaml:"endpoint"` // e.g. https://<project>.supabase.co/storage/v1/s3
	Region         string        `yaml:"region"`
	Bucket         string        `yaml:"bucket"`
	AccessKey      string        `yaml:"-"`
	SecretKey      string        `yaml:"-"`
	ForcePathStyle bool          `yaml:"force_path_style"`
	PublicBaseURL  string        `yaml:"public_base_url"` // if set, registration images are public and never signed
	SignedURLTTL   time.Duration `yaml:"-"`
}

type FetchConfig struct {
	Timeout  time.Duration `yaml:"-"`
	Retries  int           `yaml:"-"`
	MaxBytes int64         `yaml:"-"`
}

type MatchConfig struct {
	Threshold float64 `yaml:"-"`
	Policy    string  `yaml:"policy"`
}

type AttendanceConfig struct {
	Timezone string `yaml:"timezone"` // IANA name used to compute attendance_date
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	APIToken       string   `yaml:"-"` // optional bearer token for /api/v1
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// envString returns the environment variable or the fallback when unset or empty.
func envString(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envNonNegativeInt is envInt that also accepts zero.
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back on parse errors.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envDuration accepts Go duration strings ("15s") or plain seconds ("15").
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func Load() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns),
	}
	cfg.Embedding = EmbeddingConfig{
		URL:        envString("EMBEDDING_URL", cfg.Embedding.URL),
		HealthPath: envString("EMBEDDING_HEALTH_PATH", cfg.Embedding.HealthPath),
		Timeout:    envDuration("EMBEDDING_TIMEOUT", constants.DefaultEmbeddingTimeout),
	}
	cfg.Storage = StorageConfig{
		Endpoint:       envString("STORAGE_ENDPOINT", cfg.Storage.Endpoint),
		Region:         envString("STORAGE_REGION", cfg.Storage.Region),
		Bucket:         envString("STORAGE_BUCKET", cfg.Storage.Bucket),
		AccessKey:      os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:      os.Getenv("STORAGE_SECRET_KEY"),
		ForcePathStyle: envBool("STORAGE_FORCE_PATH_STYLE", cfg.Storage.ForcePathStyle),
		PublicBaseURL:  envString("STORAGE_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL),
		SignedURLTTL:   envDuration("STORAGE_SIGNED_URL_TTL", constants.DefaultSignedURLTTL),
	}
	cfg.Fetch = FetchConfig{
		Timeout:  envDuration("IMAGE_FETCH_TIMEOUT", constants.DefaultFetchTimeout),
		Retries:  envNonNegativeInt("IMAGE_FETCH_RETRIES", constants.DefaultFetchRetries),
		MaxBytes: int64(envInt("IMAGE_MAX_BYTES", constants.MaxImageBytes)),
	}
	cfg.Match = MatchConfig{
		Threshold: envFloat("MATCH_THRESHOLD", constants.DefaultSimilarityThreshold),
		Policy:    strings.ToLower(envString("MATCH_POLICY", cfg.Match.Policy)),
	}
	cfg.Attendance = AttendanceConfig{
		Timezone: envString("ATTENDANCE_TIMEZONE", constants.DefaultAttendanceTimezone),
	}
	cfg.Web = WebConfig{
		Host:           envString("WEB_HOST", cfg.Web.Host),
		Port:           envInt("WEB_PORT", cfg.Web.Port),
		APIToken:       os.Getenv("API_TOKEN"),
		AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins),
	}
	return &cfg
}

// Location returns the timezone used for attendance dates.
func (c *AttendanceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// UsesPublicImages reports whether registration images are served from a public base URL.
func (c *StorageConfig) UsesPublicImages() bool {
	return c.PublicBaseURL != ""
}

// Validate checks the settings a server needs before accepting traffic.
// All problems are reported at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Database.URL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.Embedding.URL == "" {
		problems = append(problems, "EMBEDDING_URL is required")
	}
	if !c.Storage.UsesPublicImages() && c.Storage.Bucket == "" {
		problems = append(problems, "STORAGE_BUCKET or STORAGE_PUBLIC_BASE_URL is required")
	}
	if c.Match.Threshold <= -1 || c.Match.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("MATCH_THRESHOLD must be in (-1, 1], got %v", c.Match.Threshold))
	}
	if _, err := facematch.ParsePolicy(c.Match.Policy); err != nil {
		problems = append(problems, fmt.Sprintf("MATCH_POLICY: %v", err))
	}
	if _, err := c.Attendance.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("ATTENDANCE_TIMEZONE: %v", err))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
