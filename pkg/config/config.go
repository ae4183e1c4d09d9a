// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when LoadConfig is called without explicit files
const DefaultEnvFile = ".env"

// Config represents the application configuration
type Config struct {
	// Data store under validation
	DataStore *DataStoreConfig

	// Results archive
	ResultsDBPath string

	// External text generation
	TextGen *TextGenConfig

	// HTTP upload boundary
	ServerAddr     string
	UploadMaxBytes int64

	// Engine settings
	QueryTimeout        time.Duration
	CoupleOutlierChecks bool

	// Logging
	LogLevel  string
	LogFormat string
}

// TextGenConfig holds the chat-completions endpoint settings
type TextGenConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// LoadConfig loads configuration from .env files and environment variables.
// Files that do not exist are skipped; variables already set in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		ResultsDBPath:       getEnv("RESULTS_DB_PATH", "Results.db"),
		ServerAddr:          getEnv("SERVER_ADDR", ":"+getEnv("PORT", "5000")),
		UploadMaxBytes:      int64(getEnvAsInt("UPLOAD_MAX_BYTES", 16*1024*1024)),
		QueryTimeout:        time.Duration(getEnvAsInt("QUERY_TIMEOUT_SECONDS", 300)) * time.Second,
		CoupleOutlierChecks: getEnvAsBool("DQ_COUPLE_OUTLIER_CHECKS", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		TextGen:             LoadTextGenConfig(),
	}

	dsConfig, err := LoadDataStoreConfig()
	if err != nil {
		return nil, errors.New("failed to load data store configuration: " + err.Error())
	}
	cfg.DataStore = dsConfig

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadTextGenConfig loads text generation settings; the API key may be empty
func LoadTextGenConfig() *TextGenConfig {
	return &TextGenConfig{
		APIKey:      getEnv("TEXTGEN_API_KEY", os.Getenv("GROQ_API_KEY")),
		BaseURL:     getEnv("TEXTGEN_BASE_URL", "https://api.groq.com/openai/v1/chat/completions"),
		Model:       getEnv("TEXTGEN_MODEL", "meta-llama/llama-4-maverick-17b-128e-instruct"),
		MaxTokens:   getEnvAsInt("TEXTGEN_MAX_TOKENS", 1000),
		Temperature: getEnvAsFloat("TEXTGEN_TEMPERATURE", 0.1),
		Timeout:     time.Duration(getEnvAsInt("TEXTGEN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.DataStore == nil {
		return errors.New("data store configuration is required")
	}

	if err := c.DataStore.Validate(); err != nil {
		return err
	}

	if c.ResultsDBPath == "" {
		return errors.New("results database path is required")
	}

	if c.UploadMaxBytes <= 0 {
		return errors.New("upload size limit must be positive")
	}

	if c.QueryTimeout <= 0 {
		return errors.New("query timeout must be positive")
	}

	if c.TextGen != nil && c.TextGen.Timeout <= 0 {
		return errors.New("text generation timeout must be positive")
	}

	return nil
}

// SaveEnvValue writes key=value into an env file, keeping its other entries
func SaveEnvValue(path, key, value string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read env file %s: %w", path, err)
		}
		values = make(map[string]string)
	}
	values[key] = value
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", path, err)
	}
	return nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}
