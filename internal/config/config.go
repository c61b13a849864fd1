package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	Port            string        `yaml:"port"`
	Provider        string        `yaml:"provider"`
	GeminiKey       string        `yaml:"gemini_api_key"`
	GeminiModel     string        `yaml:"gemini_model"`
	OpenAIKey       string        `yaml:"openai_api_key"`
	OpenAIEndpoint  string        `yaml:"openai_api_endpoint"`
	OpenAIModel     string        `yaml:"openai_model"`
	Database        string        `yaml:"database_path"`
	WebDir          string        `yaml:"web_dir"`
	DefaultImage    string        `yaml:"default_image_path"`
	MaxSessions     int           `yaml:"max_sessions"`
	AnalysisTimeout time.Duration `yaml:"-"`
	SessionIdleTTL  time.Duration `yaml:"-"`
}

// Load reads configuration from the environment, providing sensible defaults.
// A YAML file named by CONFIG_FILE overrides any field it sets.
func Load() Config {
	// Load .env file if it exists (useful for development)
	_ = godotenv.Load()

	cfg := FromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			log.Fatalf("load config file %s: %v", path, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		log.Fatalf("failed to ensure database dir %s: %v", cfg.Database, err)
	}

	return cfg
}

// FromEnv builds a Config from environment variables only.
func FromEnv() Config {
	webDir := getEnv("WEB_DIR", "./internal/web")
	return Config{
		Port:            getEnv("PORT", "8080"),
		Provider:        getEnv("INFERENCE_PROVIDER", ProviderGemini),
		GeminiKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIEndpoint:  getEnv("OPENAI_API_ENDPOINT", "https://api.openai.com/v1"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		Database:        getEnv("DATABASE_PATH", "./data/rash.db"),
		WebDir:          webDir,
		DefaultImage:    getEnv("DEFAULT_IMAGE_PATH", filepath.Join(webDir, "images", "rash-default.png")),
		AnalysisTimeout: getDuration("ANALYSIS_TIMEOUT", 90*time.Second),
		SessionIdleTTL:  getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		MaxSessions:     getInt("MAX_SESSIONS", 1000),
	}
}

// MergeFile overlays the non-zero fields of a YAML file onto cfg.
// Durations are written as Go duration strings, e.g. "45s".
func (cfg *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return file.apply(cfg)
}

type fileConfig struct {
	Config          `yaml:",inline"`
	AnalysisTimeout string `yaml:"analysis_timeout"`
	SessionIdleTTL  string `yaml:"session_idle_ttl"`
}

func (f fileConfig) apply(cfg *Config) error {
	setString(&cfg.Port, f.Port)
	setString(&cfg.Provider, f.Provider)
	setString(&cfg.GeminiKey, f.GeminiKey)
	setString(&cfg.GeminiModel, f.GeminiModel)
	setString(&cfg.OpenAIKey, f.OpenAIKey)
	setString(&cfg.OpenAIEndpoint, f.OpenAIEndpoint)
	setString(&cfg.OpenAIModel, f.OpenAIModel)
	setString(&cfg.Database, f.Database)
	setString(&cfg.WebDir, f.WebDir)
	setString(&cfg.DefaultImage, f.DefaultImage)
	if f.MaxSessions > 0 {
		cfg.MaxSessions = f.MaxSessions
	}
	if f.AnalysisTimeout != "" {
		d, err := time.ParseDuration(f.AnalysisTimeout)
		if err != nil {
			return fmt.Errorf("analysis_timeout: %w", err)
		}
		cfg.AnalysisTimeout = d
	}
	if f.SessionIdleTTL != "" {
		d, err := time.ParseDuration(f.SessionIdleTTL)
		if err != nil {
			return fmt.Errorf("session_idle_ttl: %w", err)
		}
		cfg.SessionIdleTTL = d
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("ignoring invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("ignoring invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}
