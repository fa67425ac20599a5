package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the CLI and the API service.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	RedisURL string `yaml:"redis_url"`
	AgentURL string `yaml:"agent_url"`

	Database  Database  `yaml:"database"`
	Gemini    Gemini    `yaml:"gemini"`
	Jira      Jira      `yaml:"jira"`
	CORS      CORS      `yaml:"cors"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// Database holds Postgres connection settings.
type Database struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Configured reports whether enough settings are present to reach Postgres.
func (d Database) Configured() bool {
	return d.Host != "" && d.User != "" && d.Name != ""
}

// Gemini holds settings for the direct LLM mode.
type Gemini struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Configured reports whether a primary or numbered rotation key is available.
func (g Gemini) Configured() bool {
	if g.APIKey != "" {
		return true
	}
	for i := 1; i <= 4; i++ {
		if os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i)) != "" {
			return true
		}
	}
	return false
}

// Jira holds issue tracker credentials.
type Jira struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
}

// Configured reports whether the Jira client can authenticate.
func (j Jira) Configured() bool {
	return j.BaseURL != "" && j.Email != "" && j.APIToken != ""
}

// CORS holds cross-origin settings for the API service.
type CORS struct {
	Origins     []string `yaml:"origins"`
	Methods     []string `yaml:"methods"`
	Headers     []string `yaml:"headers"`
	Credentials bool     `yaml:"credentials"`
	MaxAge      int      `yaml:"max_age"`
}

// RateLimit holds fixed-window limiter settings.
type RateLimit struct {
	Enabled  bool `yaml:"enabled"`
	Requests int  `yaml:"requests"`
	Window   int  `yaml:"window_seconds"`
}

// Load builds configuration from defaults, an optional YAML file, and the
// environment (highest precedence). A .env file is honored when present.
func Load(path string) (Config, error) {
	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg := defaults()

	if path == "" {
		path = os.Getenv("SQLAGENT_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() Config {
	return Config{
		HTTPAddr: ":8000",
		LogLevel: "info",
		Database: Database{
			Port:    "5432",
			SSLMode: "disable",
		},
		Gemini: Gemini{
			Model: "gemini-1.5-flash",
		},
		CORS: CORS{
			Origins: []string{"*"},
		},
		RateLimit: RateLimit{
			Enabled:  true,
			Requests: 100,
			Window:   60,
		},
	}
}

func (c *Config) applyEnv() {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.AgentURL, "AI_AGENT_URL")

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")

	setString(&c.Jira.BaseURL, "JIRA_URL")
	setString(&c.Jira.Email, "JIRA_USER_EMAIL")
	setString(&c.Jira.APIToken, "JIRA_API_TOKEN")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORS.Origins = splitList(v)
	}
	setBool(&c.RateLimit.Enabled, "RATE_LIMIT_ENABLED")
	setInt(&c.RateLimit.Requests, "RATE_LIMIT_REQUESTS")
	setInt(&c.RateLimit.Window, "RATE_LIMIT_PERIOD")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
