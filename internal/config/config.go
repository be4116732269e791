package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "call-intelligence-go/internal/errors"
)

// Storage backends.
const (
	BackendLocal  = "local"
	BackendS3     = "s3"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port        int
	Environment string
	LogLevel    string

	GroqAPIKey         string
	GroqBaseURL        string
	TranscribeModel    string
	TranscribeLanguage string
	LLMModel           string
	LLMTemperature     float64
	HTTPTimeout        time.Duration
	MaxRetryElapsed    time.Duration
	MockTranscribe     bool
	MockLLM            bool

	StorageBackend string
	RecordsPath    string
	S3Bucket       string
	S3Region       string
	S3Key          string
	SQLitePath     string

	MaxUploadBytes int64
}

// Load reads configuration from the environment. Call godotenv.Load first to pick up .env.
func Load() Config {
	backend := strings.ToLower(envStr("STORAGE_BACKEND", ""))
	if backend == "" {
		backend = BackendLocal
		if envBool("USE_S3", false) {
			backend = BackendS3
		}
	}
	return Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "local"),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		GroqAPIKey:         envStr("GROQ_API_KEY", ""),
		GroqBaseURL:        strings.TrimRight(envStr("GROQ_BASE_URL", "https://api.groq.com/openai/v1"), "/"),
		TranscribeModel:    envStr("TRANSCRIBE_MODEL", "whisper-large-v3"),
		TranscribeLanguage: envStr("TRANSCRIBE_LANGUAGE", "en"),
		LLMModel:           envStr("LLM_MODEL", "llama-3.3-70b-versatile"),
		LLMTemperature:     envFloat("LLM_TEMPERATURE", 0.3),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", 120*time.Second),
		MaxRetryElapsed:    envDuration("MAX_RETRY_ELAPSED", 45*time.Second),
		MockTranscribe:     envBool("USE_MOCK_TRANSCRIBE", false),
		MockLLM:            envBool("USE_MOCK_LLM", false),

		StorageBackend: backend,
		RecordsPath:    envStr("RECORDS_PATH", "call_records.xlsx"),
		S3Bucket:       envStr("S3_BUCKET_NAME", ""),
		S3Region:       envStr("AWS_REGION", "us-east-1"),
		S3Key:          envStr("S3_FILE_KEY", "call_records.xlsx"),
		SQLitePath:     envStr("SQLITE_PATH", "call_records.db"),

		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 25<<20)),
	}
}

// Validate reports the first configuration problem as a CONFIG error.
func (c Config) Validate() error {
	if c.GroqAPIKey == "" && !(c.MockTranscribe && c.MockLLM) {
		return apperrors.NewConfig("GROQ_API_KEY not found in environment variables")
	}
	switch c.StorageBackend {
	case BackendLocal:
		if c.RecordsPath == "" {
			return apperrors.NewConfig("RECORDS_PATH must not be empty")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return apperrors.NewConfig("S3_BUCKET_NAME is required when using S3 storage")
		}
		if c.S3Key == "" {
			return apperrors.NewConfig("S3_FILE_KEY must not be empty")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return apperrors.NewConfig("SQLITE_PATH must not be empty")
		}
	default:
		return apperrors.NewConfig("unknown STORAGE_BACKEND " + strconv.Quote(c.StorageBackend))
	}
	if c.MaxUploadBytes <= 0 {
		return apperrors.NewConfig("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
