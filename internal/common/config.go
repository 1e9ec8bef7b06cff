package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string
	Pdftoppm      string
	Magick        string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	MaxParallel   int           // concurrent OCR subprocesses
	MaxImageBytes int64         // estimated decoded size ceiling before downscale
	MaxDimension  int           // max width/height after downscale
	Timeout       time.Duration // per OCR invocation
}

// LLMConfig holds generative-model configuration
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// PipelineConfig holds orchestration thresholds and bounds. It is immutable
// after load and threaded into each component at construction.
type PipelineConfig struct {
	MaxRetries      int           // validator-driven refinement attempts beyond the first
	Concurrency     int           // batch admission gate size
	Tolerance       float64       // absolute tolerance for arithmetic checks, currency units
	MaxTotal        float64       // sanity ceiling for total_amount
	DateGrace       time.Duration // how far in the future an invoice date may be
	DefaultCurrency string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is applied first when present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Magick:        getEnv("MAGICK_BIN", "magick"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 0),
			MaxParallel:   getEnvAsInt("OCR_MAX_PARALLEL", 4),
			MaxImageBytes: int64(getEnvAsInt("OCR_MAX_IMAGE_BYTES", 64<<20)),
			MaxDimension:  getEnvAsInt("OCR_MAX_DIMENSION", 3000),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Pipeline: PipelineConfig{
			MaxRetries:      getEnvAsInt("PIPELINE_MAX_RETRIES", 1),
			Concurrency:     getEnvAsInt("PIPELINE_CONCURRENCY", 20),
			Tolerance:       getEnvAsFloat64("PIPELINE_TOLERANCE", 0.01),
			MaxTotal:        getEnvAsFloat64("PIPELINE_MAX_TOTAL", 1_000_000),
			DateGrace:       getEnvAsDuration("PIPELINE_DATE_GRACE", 72*time.Hour),
			DefaultCurrency: getEnv("PIPELINE_DEFAULT_CURRENCY", "USD"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Pipeline.Concurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Pipeline.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_RETRIES must be >= 0", ErrInvalidInput)
	}
	return nil
}
