package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string
	JWTSecret  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO is optional. When MinioEndpoint is empty, generated audio
	// is stored inline as a data URI instead of an object URL.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	MinioPublicURL string

	// Synthesis provider settings.
	SynthAPIURL         string
	SynthAPIToken       string
	SynthModel          string
	SynthDuration       int           // seconds of audio to request
	SynthMaxRetries     int           // retries after the first attempt
	SynthAttemptTimeout time.Duration // per-attempt request timeout
	SynthBackoffBase    time.Duration
	SynthBackoffCap     time.Duration

	// MaxTracks is the per-user ceiling on successful generations.
	MaxTracks int

	LogLevel string
	LogPath  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration reads a duration in seconds.
func getEnvDuration(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackSeconds)) * time.Second
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		JWTSecret:  getEnv("JWT_SECRET", "beatbot-dev-secret"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "beatbot"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "beatbot"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", true),
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),

		SynthAPIURL:         getEnv("SYNTH_API_URL", "https://api-inference.huggingface.co/models/facebook/musicgen-small"),
		SynthAPIToken:       os.Getenv("SYNTH_API_TOKEN"),
		SynthModel:          getEnv("SYNTH_MODEL", "facebook/musicgen-small"),
		SynthDuration:       getEnvInt("SYNTH_DURATION", 8),
		SynthMaxRetries:     getEnvInt("SYNTH_MAX_RETRIES", 5),
		SynthAttemptTimeout: getEnvDuration("SYNTH_ATTEMPT_TIMEOUT", 90),
		SynthBackoffBase:    getEnvDuration("SYNTH_BACKOFF_BASE", 3),
		SynthBackoffCap:     getEnvDuration("SYNTH_BACKOFF_CAP", 30),

		MaxTracks: getEnvInt("MAX_TRACKS", 5),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogPath:  getEnv("LOG_PATH", ""),
	}
}
