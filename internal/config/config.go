// Package config loads timbre configuration from TIMBRE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/crimson-sun/timbre/internal/engine/pool"
)

// Version is the timbre release version, reported by -version.
const Version = "0.3.0"

// Config holds all timbre configuration.
type Config struct {
	Mode            string // "stream" or "fetch"
	ShutdownTimeout time.Duration
	ShowVersion     bool // set by the -version flag, not the environment
	Source          SourceConfig
	Engine          EngineConfig
	Output          OutputConfig
}

// SourceConfig holds utterance source settings.
type SourceConfig struct {
	Provider string
	Token    string
	Endpoint string
	Extra    map[string]string
}

// EngineConfig holds embedding engine settings.
type EngineConfig struct {
	Pooler        string // pooler kind, e.g. "ASTP" or "MQMHASTP"
	PoolerConfig  string // JSON overrides for the pooler (bottleneck_dim, head_num, ...)
	FeatureDim    int    // acoustic feature channels per frame
	ModelPath     string // ONNX encoder; empty means frames are used as-is
	WeightsPath   string // safetensors pooler weights; empty means fresh init
	Threshold     float64
	Verbosity     string // "minimal", "standard", "full"
	DedupWindow   time.Duration
	FlushWindow   time.Duration // 0 disables output buffering
	MaxBufferSize int
}

// OutputConfig holds output destination settings.
type OutputConfig struct {
	Format     string // "stdout", "file", or "webhook"
	Path       string // file output target
	WebhookURL string
	Pretty     bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		Mode:            getenv("TIMBRE_MODE", "stream"),
		ShutdownTimeout: getenvDuration("TIMBRE_SHUTDOWN_TIMEOUT", 10*time.Second),
		Source: SourceConfig{
			Provider: getenv("TIMBRE_SOURCE", "stdin"),
			Token:    os.Getenv("TIMBRE_TOKEN"),
			Endpoint: os.Getenv("TIMBRE_ENDPOINT"),
			Extra:    loadSourceExtra(),
		},
		Engine: EngineConfig{
			Pooler:        getenv("TIMBRE_POOLER", "ASTP"),
			PoolerConfig:  os.Getenv("TIMBRE_POOLER_CONFIG"),
			FeatureDim:    getenvInt("TIMBRE_FEATURE_DIM", 80),
			ModelPath:     os.Getenv("TIMBRE_MODEL_PATH"),
			WeightsPath:   os.Getenv("TIMBRE_WEIGHTS_PATH"),
			Threshold:     getenvFloat("TIMBRE_SCORE_THRESHOLD", 0.5),
			Verbosity:     getenv("TIMBRE_VERBOSITY", "standard"),
			DedupWindow:   getenvDuration("TIMBRE_DEDUP_WINDOW", 5*time.Second),
			FlushWindow:   getenvDuration("TIMBRE_FLUSH_WINDOW", 0),
			MaxBufferSize: getenvInt("TIMBRE_MAX_BUFFER_SIZE", 1000),
		},
		Output: OutputConfig{
			Format:     getenv("TIMBRE_OUTPUT", "stdout"),
			Path:       getenv("TIMBRE_OUTPUT_PATH", "timbre.jsonl"),
			WebhookURL: os.Getenv("TIMBRE_WEBHOOK_URL"),
			Pretty:     getenvBool("TIMBRE_OUTPUT_PRETTY", false),
		},
	}
}

// Validate reports every configuration problem at once rather than failing
// on the first.
func (c Config) Validate() error {
	var errs []error

	if c.Mode != "stream" && c.Mode != "fetch" {
		errs = append(errs, fmt.Errorf("invalid mode %q (want \"stream\" or \"fetch\")", c.Mode))
	}
	if !slices.Contains(pool.Kinds(), c.Engine.Pooler) {
		errs = append(errs, fmt.Errorf("unknown pooler %q (available: %v)", c.Engine.Pooler, pool.Kinds()))
	}
	if c.Engine.FeatureDim <= 0 {
		errs = append(errs, fmt.Errorf("feature dim must be positive, got %d", c.Engine.FeatureDim))
	}
	if c.Engine.Threshold < 0 || c.Engine.Threshold > 1 {
		errs = append(errs, fmt.Errorf("score threshold must be in [0, 1], got %g", c.Engine.Threshold))
	}
	switch c.Engine.Verbosity {
	case "minimal", "standard", "full":
	default:
		errs = append(errs, fmt.Errorf("invalid verbosity %q (want \"minimal\", \"standard\", or \"full\")", c.Engine.Verbosity))
	}
	if c.Engine.DedupWindow < 0 {
		errs = append(errs, fmt.Errorf("dedup window must not be negative, got %v", c.Engine.DedupWindow))
	}
	if c.Engine.ModelPath != "" {
		if _, err := os.Stat(c.Engine.ModelPath); err != nil {
			errs = append(errs, fmt.Errorf("model file not found at %s", c.Engine.ModelPath))
		}
	}
	if c.Engine.WeightsPath != "" {
		if _, err := os.Stat(c.Engine.WeightsPath); err != nil {
			errs = append(errs, fmt.Errorf("weights file not found at %s", c.Engine.WeightsPath))
		}
	}
	if c.Source.Provider == "http" && c.Source.Endpoint == "" {
		errs = append(errs, errors.New("http source requires TIMBRE_ENDPOINT"))
	}
	if c.Source.Provider == "file" && c.Source.Extra["path"] == "" {
		errs = append(errs, errors.New("file source requires TIMBRE_SOURCE_PATH"))
	}
	if c.Output.Format == "webhook" && c.Output.WebhookURL == "" {
		errs = append(errs, errors.New("webhook output requires TIMBRE_WEBHOOK_URL"))
	}

	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadSourceExtra reads provider-specific env vars into an Extra map.
func loadSourceExtra() map[string]string {
	vars := []struct {
		envVar   string
		extraKey string
	}{
		{"TIMBRE_SOURCE_PATH", "path"},
		{"TIMBRE_POLL_INTERVAL", "poll_interval"},
	}

	var m map[string]string
	for _, v := range vars {
		if val := os.Getenv(v.envVar); val != "" {
			if m == nil {
				m = make(map[string]string)
			}
			m[v.extraKey] = val
		}
	}
	return m
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	// Accept a bare "0" to mean disabled.
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
