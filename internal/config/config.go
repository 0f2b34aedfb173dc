// Package config provides configuration management for textcluster.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/textcluster/internal/pipeline"
	"github.com/thebtf/textcluster/pkg/cluster"
	"github.com/thebtf/textcluster/pkg/linkage"
	"github.com/thebtf/textcluster/pkg/projection"
	"github.com/thebtf/textcluster/pkg/segment"
	"github.com/thebtf/textcluster/pkg/textvec"
)

const (
	// DefaultAddr is the listen address of clusterd.
	DefaultAddr = ":8080"
	// DefaultMaxCorpus caps the documents accepted per request.
	DefaultMaxCorpus = 2000
	// DefaultMaxUploadBytes caps a multipart upload.
	DefaultMaxUploadBytes = 8 << 20

	dataDirName    = ".textcluster"
	configFileName = "config.yml"
	envPrefix      = "TEXTCLUSTER_"
)

// Config is the full application configuration.
type Config struct {
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
	Cluster    cluster.Params            `yaml:"cluster"`
	Projection projection.Options        `yaml:"projection"`
	Dendrogram linkage.DendrogramOptions `yaml:"dendrogram"`
	Server     ServerConfig              `yaml:"server"`
	Log        LogConfig                 `yaml:"log"`
}

// VectorizerConfig selects pruning bounds and the tokenizer.
type VectorizerConfig struct {
	MaxDF     float64 `yaml:"max_df" json:"max_df"`
	MinDF     int     `yaml:"min_df" json:"min_df"`
	Segmenter string  `yaml:"segmenter" json:"segmenter"`
	// StopWords is empty or "english".
	StopWords string `yaml:"stop_words" json:"stop_words"`
}

// ServerConfig configures clusterd.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// RateLimit is requests per second across all clients; 0 disables limiting.
	RateLimit       float64       `yaml:"rate_limit"`
	Burst           int           `yaml:"burst"`
	MaxCorpus       int           `yaml:"max_corpus"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vectorizer: VectorizerConfig{
			MaxDF:     textvec.DefaultMaxDF,
			MinDF:     textvec.DefaultMinDF,
			Segmenter: segment.NameWords,
		},
		Cluster:    cluster.DefaultParams(),
		Projection: projection.DefaultOptions(),
		Dendrogram: linkage.DefaultDendrogramOptions(),
		Server: ServerConfig{
			Addr:            DefaultAddr,
			RateLimit:       10,
			Burst:           20,
			MaxCorpus:       DefaultMaxCorpus,
			MaxUploadBytes:  DefaultMaxUploadBytes,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// DataDir returns the per-user data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// ConfigPath returns the default config file location.
func ConfigPath() string {
	return filepath.Join(DataDir(), configFileName)
}

// EnsureDataDir creates the data directory if needed.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Load reads the YAML file at path over the defaults, then applies TEXTCLUSTER_*
// environment overrides. An empty path means ConfigPath(); a missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("path", path).Msg("No config file, using defaults")
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use. A broken config
// file is logged and the defaults are used.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load("")
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults")
			cfg = Default()
			applyEnv(cfg)
		}
		global = cfg
	})
	return global
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.VectorizerOptions(); err != nil {
		return fmt.Errorf("vectorizer: %w", err)
	}
	if _, err := cluster.New(c.Cluster); err != nil {
		return fmt.Errorf("cluster: %w", err)
	}
	if c.Projection.Method != "" {
		if _, err := projection.ParseMethod(string(c.Projection.Method)); err != nil {
			return fmt.Errorf("projection: %w", err)
		}
	}
	if c.Dendrogram.ColorThresholdFraction < 0 {
		return fmt.Errorf("dendrogram: color_threshold_fraction must be >= 0, got %v", c.Dendrogram.ColorThresholdFraction)
	}
	if c.Server.Addr == "" {
		return errors.New("server: addr is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server: rate_limit must be >= 0, got %v", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("server: burst must be >= 1 when rate limiting, got %d", c.Server.Burst)
	}
	if c.Server.MaxCorpus < 2 {
		return fmt.Errorf("server: max_corpus must be >= 2, got %d", c.Server.MaxCorpus)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// VectorizerOptions resolves the vectorizer section, including its segmenter.
func (c *Config) VectorizerOptions() (textvec.Options, error) {
	var stop map[string]bool
	switch strings.ToLower(c.Vectorizer.StopWords) {
	case "":
	case "english":
		stop = segment.EnglishStopWords
	default:
		return textvec.Options{}, fmt.Errorf("unknown stop word list %q", c.Vectorizer.StopWords)
	}
	seg, err := segment.ByName(c.Vectorizer.Segmenter, stop)
	if err != nil {
		return textvec.Options{}, err
	}
	opts := textvec.Options{MaxDF: c.Vectorizer.MaxDF, MinDF: c.Vectorizer.MinDF, Segmenter: seg}
	if err := opts.Validate(); err != nil {
		return textvec.Options{}, err
	}
	return opts, nil
}

// Request returns a pipeline request for corpus carrying the configured defaults.
func (c *Config) Request(corpus []string) (pipeline.Request, error) {
	vec, err := c.VectorizerOptions()
	if err != nil {
		return pipeline.Request{}, err
	}
	req := pipeline.NewRequest(corpus)
	req.Vectorizer = vec
	req.Cluster = c.Cluster
	req.Projection = c.Projection
	req.Dendrogram = c.Dendrogram
	return req, nil
}

// LogLevel returns the configured zerolog level, info if unparseable.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// applyEnv overrides fields from TEXTCLUSTER_* variables. Unparseable values are logged
// and ignored.
func applyEnv(cfg *Config) {
	if v := env("ALGORITHM"); v != "" {
		cfg.Cluster.Algorithm = cluster.Algorithm(strings.ToLower(v))
	}
	if v := env("K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.K = k
		} else {
			warnEnv("K", v, err)
		}
	}
	if v := env("SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cluster.Seed = seed
		} else {
			warnEnv("SEED", v, err)
		}
	}
	if v := env("PROJECTION"); v != "" {
		cfg.Projection.Method = projection.Method(strings.ToLower(v))
	}
	if v := env("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := env("MAX_DF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vectorizer.MaxDF = f
		} else {
			warnEnv("MAX_DF", v, err)
		}
	}
	if v := env("MIN_DF"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vectorizer.MinDF = n
		} else {
			warnEnv("MIN_DF", v, err)
		}
	}
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func warnEnv(name, value string, err error) {
	log.Warn().Err(err).Str("var", envPrefix+name).Str("value", value).Msg("Ignoring invalid environment override")
}
