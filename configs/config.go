// config.go - Configuration loaded from environment variables

package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Supported OCR providers
const (
	ProviderMistral = "mistral"
	ProviderGemini  = "gemini"
)

// Config holds every setting the server needs. It is built once at startup
// and passed explicitly to the components that use it.
type Config struct {
	// Server Configuration
	Port           string
	AllowedOrigins string
	GinMode        string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Provider Configuration
	OCRProvider        string
	MistralBaseURL     string
	MistralOCRModel    string
	MistralChatModel   string
	IncludeImageBase64 bool
	GeminiModel        string
	TranslateTarget    string

	// FetchAllowPrivate lets the Gemini gateway download from loopback and
	// private network addresses
	FetchAllowPrivate bool

	// Mistral OCR pricing (USD per processed page)
	OCRPricePerPageUSD float64

	// Upload and image preprocessing settings
	MaxUploadBytes           int64
	EnableImagePreprocessing bool
	MaxImageDimension        int

	// Session settings
	SessionTTL time.Duration

	// Outbound call pacing
	RateLimitBurst  int
	RateLimitRefill time.Duration
}

// LoadConfig loads configuration from the .env file (if any) and the environment.
func LoadConfig() (*Config, error) {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		GinMode:        getEnv("GIN_MODE", "debug"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		OCRProvider:        strings.ToLower(getEnv("OCR_PROVIDER", ProviderMistral)),
		MistralBaseURL:     strings.TrimRight(getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"), "/"),
		MistralOCRModel:    getEnv("MISTRAL_OCR_MODEL", "mistral-ocr-latest"),
		MistralChatModel:   getEnv("MISTRAL_CHAT_MODEL", "mistral-large-latest"),
		IncludeImageBase64: getEnvBool("INCLUDE_IMAGE_BASE64", true),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		TranslateTarget:    getEnv("TRANSLATE_TARGET_LANGUAGE", "English"),
		FetchAllowPrivate:  getEnvBool("FETCH_ALLOW_PRIVATE", false),

		// Mistral OCR: $1 per 1,000 pages
		OCRPricePerPageUSD: getEnvFloat("OCR_PRICE_PER_PAGE_USD", 0.001),

		MaxUploadBytes:           int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
		EnableImagePreprocessing: getEnvBool("ENABLE_IMAGE_PREPROCESSING", false),
		MaxImageDimension:        getEnvInt("MAX_IMAGE_DIMENSION", 2500),

		SessionTTL: time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)) * time.Minute,

		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 12),
		RateLimitRefill: time.Duration(getEnvInt("RATE_LIMIT_REFILL_SECONDS", 5)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"provider": cfg.OCRProvider,
		"port":     cfg.Port,
	}).Info("✓ Configuration loaded successfully")
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at request time.
func (c *Config) Validate() error {
	switch c.OCRProvider {
	case ProviderMistral, ProviderGemini:
	default:
		return fmt.Errorf("unsupported OCR_PROVIDER: %s (supported: %s, %s)", c.OCRProvider, ProviderMistral, ProviderGemini)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.MaxImageDimension <= 0 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive")
	}
	if c.RateLimitBurst <= 0 || c.RateLimitRefill <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST and RATE_LIMIT_REFILL_SECONDS must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
