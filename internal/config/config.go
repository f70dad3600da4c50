// Package config loads TruthLens settings from flags, environment, an
// optional YAML file and built-in defaults, in that order of priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zombar/truthlens/internal/classifier"
	"github.com/zombar/truthlens/internal/decision"
	"github.com/zombar/truthlens/internal/ocr"
	"github.com/zombar/truthlens/internal/ollama"
	"github.com/zombar/truthlens/internal/scraper"
)

// EnvPrefix prefixes every environment variable viper reads
const EnvPrefix = "TRUTHLENS"

// Stats backends
const (
	StatsMemory = "memory"
	StatsRedis  = "redis"
)

// Config is the complete service configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Stats      StatsConfig      `mapstructure:"stats" yaml:"stats"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr"`
	Scraper    ScraperConfig    `mapstructure:"scraper" yaml:"scraper"`
	Worker     WorkerConfig     `mapstructure:"worker" yaml:"worker"`
	Tracing    TracingConfig    `mapstructure:"tracing" yaml:"tracing"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	DebugResponses bool     `mapstructure:"debug_responses" yaml:"debug_responses"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	// Fallback answers ERROR decisions instead of 500 when inference fails
	Fallback        bool          `mapstructure:"fallback" yaml:"fallback"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type ClassifierConfig struct {
	Backend          string        `mapstructure:"backend" yaml:"backend"`
	Model            string        `mapstructure:"model" yaml:"model"`
	URL              string        `mapstructure:"url" yaml:"url"`
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	ModelPath        string        `mapstructure:"model_path" yaml:"model_path"`
	FakeLabels       []string      `mapstructure:"fake_labels" yaml:"fake_labels"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	MaxConcurrent    int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	DefaultThreshold float64       `mapstructure:"default_threshold" yaml:"default_threshold"`
}

type DatabaseConfig struct {
	// Path is a SQLite file or a PostgreSQL connection string
	Path string `mapstructure:"path" yaml:"path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type StatsConfig struct {
	Backend            string        `mapstructure:"backend" yaml:"backend"`
	KeyPrefix          string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
}

type OCRConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	Language      string        `mapstructure:"language" yaml:"language"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
}

type ScraperConfig struct {
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBytes      int64         `mapstructure:"max_bytes" yaml:"max_bytes"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	IgnoreRobots  bool          `mapstructure:"ignore_robots" yaml:"ignore_robots"`
}

type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			MaxUploadBytes:  10 << 20,
			AllowedOrigins:  []string{"*"},
			Fallback:        true,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    180 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Classifier: ClassifierConfig{
			Backend:          classifier.BackendOllama,
			Model:            ollama.DefaultModel,
			URL:              ollama.DefaultURL,
			FakeLabels:       classifier.DefaultFakeLabels,
			Timeout:          ollama.DefaultTimeout,
			CacheTTL:         10 * time.Minute,
			MaxConcurrent:    1,
			DefaultThreshold: decision.DefaultThreshold,
		},
		Database: DatabaseConfig{Path: "truthlens.db"},
		Stats: StatsConfig{
			Backend:            StatsMemory,
			KeyPrefix:          "truthlens:stats",
			CheckpointInterval: time.Minute,
		},
		OCR: OCRConfig{
			URL:      ocr.DefaultURL,
			Language: ocr.DefaultLanguage,
			Timeout:  ocr.DefaultTimeout,
		},
		Scraper: ScraperConfig{
			UserAgent: scraper.DefaultUserAgent,
			Timeout:   scraper.DefaultTimeout,
			MaxBytes:  scraper.DefaultMaxBytes,
			CacheTTL:  scraper.DefaultCacheTTL,
		},
		Worker:  WorkerConfig{Concurrency: 4},
		Tracing: TracingConfig{ServiceName: "truthlens"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// legacyEnv are unprefixed variables accepted alongside TRUTHLENS_*
var legacyEnv = map[string][]string{
	"server.port":        {"PORT"},
	"database.path":      {"DB_PATH"},
	"redis.addr":         {"REDIS_ADDR"},
	"classifier.url":     {"OLLAMA_URL"},
	"classifier.api_key": {"OPENAI_API_KEY"},
	"ocr.api_key":        {"OCR_SPACE_API_KEY"},
	"tracing.endpoint":   {"OTEL_EXPORTER_OTLP_ENDPOINT"},
}

// NewViper returns a viper instance with defaults and environment bindings
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
	return v
}

// setDefaults registers every field of d so AutomaticEnv can see it
func setDefaults(v *viper.Viper, d Config) {
	data, err := yaml.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("config: marshal defaults: %v", err))
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	for section, values := range tree {
		fields, ok := values.(map[string]any)
		if !ok {
			v.SetDefault(section, values)
			continue
		}
		for name, value := range fields {
			v.SetDefault(section+"."+name, value)
		}
	}
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the config file (explicit path, or truthlens.yaml in the
// working directory or ~/.truthlens) and decodes the merged settings.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("truthlens")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".truthlens"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would fail later at startup
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	switch strings.ToLower(c.Classifier.Backend) {
	case classifier.BackendLexical:
		if c.Classifier.ModelPath == "" {
			errs = append(errs, errors.New("classifier.model_path is required for the lexical backend"))
		}
	case classifier.BackendRemote:
		if c.Classifier.URL == "" {
			errs = append(errs, errors.New("classifier.url is required for the remote backend"))
		}
	case classifier.BackendOpenAI:
		if c.Classifier.APIKey == "" {
			errs = append(errs, errors.New("classifier.api_key is required for the openai backend"))
		}
	case classifier.BackendOllama:
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.backend %q", c.Classifier.Backend))
	}
	if t := c.Classifier.DefaultThreshold; t <= 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("classifier.default_threshold must be in (0, 1), got %v", t))
	}
	switch c.Stats.Backend {
	case StatsMemory:
	case StatsRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis stats backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown stats.backend %q", c.Stats.Backend))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, for display
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.Classifier.APIKey = mask(c.Classifier.APIKey)
	c.OCR.APIKey = mask(c.OCR.APIKey)
	c.Redis.Password = mask(c.Redis.Password)
	return c
}

// YAML renders the configuration
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
