// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sr-chatbot/internal/statement"
)

// Supported STATE_BACKEND values.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	// Secrets and data sources
	ParamPrefix             string
	ContractReportSheetID   string
	AccountStatementSheetID string
	TemplateSheetID         string
	WorkingFolderID         string

	// Session state
	StateBackend string
	StateTable   string
	DatabaseURL  string
	SessionTTL   time.Duration

	// NLU
	OpenAIModel string

	// Logging
	LogLevel string
	LogFile  string

	// HTTP client and resilience
	HTTPTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration

	// Observability
	OTLPEndpoint string

	// Dev server
	Port int

	Layout statement.Layout
}

// Load reads the given env files (.env when none) if present, then the
// environment. Variables already set in the environment win over files.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg := &Config{
		ParamPrefix:             getEnv("PARAM_PREFIX", ""),
		ContractReportSheetID:   getEnv("CONTRACT_REPORT_SHEET_ID", ""),
		AccountStatementSheetID: getEnv("ACCOUNT_STATEMENT_SHEET_ID", ""),
		TemplateSheetID:         getEnv("TEMPLATE_SHEET_ID", ""),
		WorkingFolderID:         getEnv("WORKING_FOLDER_ID", ""),

		StateBackend: strings.ToLower(getEnv("STATE_BACKEND", BackendMemory)),
		StateTable:   getEnv("STATE_TABLE", ""),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SessionTTL:   getEnvDuration("SESSION_TTL", 24*time.Hour),

		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 2*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		Port: getEnvInt("PORT", 8080),
	}

	layout, err := LoadLayout(getEnv("LAYOUT_FILE", ""))
	if err != nil {
		return nil, err
	}
	cfg.Layout = layout

	if err := cfg.validateBackend(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Require checks the settings every binary that talks to Google and SSM
// needs.
func (c *Config) Require() error {
	var missing []string
	for _, kv := range []struct{ key, val string }{
		{"PARAM_PREFIX", c.ParamPrefix},
		{"CONTRACT_REPORT_SHEET_ID", c.ContractReportSheetID},
		{"ACCOUNT_STATEMENT_SHEET_ID", c.AccountStatementSheetID},
		{"TEMPLATE_SHEET_ID", c.TemplateSheetID},
		{"WORKING_FOLDER_ID", c.WorkingFolderID},
	} {
		if strings.TrimSpace(kv.val) == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: required environment variables not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateBackend() error {
	switch c.StateBackend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.StateTable == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown STATE_BACKEND %q", c.StateBackend)
	}
	return nil
}

// LoadLayout overlays the YAML document at path onto the default layout.
// An empty path returns the defaults.
func LoadLayout(path string) (statement.Layout, error) {
	layout := statement.DefaultLayout()
	if path == "" {
		return layout, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return statement.Layout{}, fmt.Errorf("config: read layout file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return statement.Layout{}, fmt.Errorf("config: parse layout file: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return statement.Layout{}, err
	}
	return layout, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
