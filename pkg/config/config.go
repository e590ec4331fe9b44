package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Chat settings
	Chat struct {
		DefaultPageSize int
		MaxPageSize     int
		MaxContentSize  int
		LookupCacheTTL  time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "5000")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "campus_taskhub")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 10))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Chat settings
		instance.Chat.DefaultPageSize = getEnvInt("CHAT_DEFAULT_PAGE_SIZE", 50)
		instance.Chat.MaxPageSize = getEnvInt("CHAT_MAX_PAGE_SIZE", 100)
		instance.Chat.MaxContentSize = getEnvInt("CHAT_MAX_CONTENT_SIZE", 2000)
		instance.Chat.LookupCacheTTL = getEnvDuration("CHAT_LOOKUP_CACHE_TTL", 5*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
