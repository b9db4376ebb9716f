package app

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "vocabquiz-dev-secret-change-me"

// Config stores runtime configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	HTTPAddr          string
	DBDriver          string
	DBDSN             string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifeMins int

	CSRFEnforced           bool
	AuthRateLimitPerMin    int
	GradingRateLimitPerMin int
	JWTSecret              string
	CORSOrigins            []string

	SessionDir string
	SessionKey string

	AIAPIKey  string
	AIBaseURL string
	AIModel   string

	GradingBaseURL           string
	GradingToken             string
	GradingTokenHash         string
	GradingConcurrency       int
	GradingRetryBackoff      time.Duration
	GradingTaskTimeout       time.Duration
	GradingRetryClientErrors bool
}

// LoadConfig reads the environment after loading an optional .env file.
// Variables already set in the environment win over the file.
func LoadConfig() Config {
	_ = godotenv.Load()

	addr := envOrDefault("HTTP_ADDR", ":8080")
	jwtSecret := envOrDefault("JWT_SECRET", devJWTSecret)

	return Config{
		AppEnv:            envOrDefault("APP_ENV", "development"),
		HTTPAddr:          addr,
		DBDriver:          envOrDefault("DB_DRIVER", "sqlite"),
		DBDSN:             os.Getenv("DB_DSN"),
		DBMaxOpenConns:    intOrDefault("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    intOrDefault("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifeMins: intOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		CSRFEnforced:           boolOrDefault("CSRF_ENFORCED", false),
		AuthRateLimitPerMin:    intOrDefault("AUTH_RATE_LIMIT_PER_MINUTE", 60),
		GradingRateLimitPerMin: intOrDefault("GRADING_RATE_LIMIT_PER_MINUTE", 120),
		JWTSecret:              jwtSecret,
		CORSOrigins:            csvOrDefault("CORS_ORIGINS", []string{"http://localhost:5173"}),

		SessionDir: envOrDefault("SESSION_DIR", "data/sessions"),
		SessionKey: envOrDefault("SESSION_KEY", jwtSecret),

		AIAPIKey:  os.Getenv("AI_API_KEY"),
		AIBaseURL: os.Getenv("AI_BASE_URL"),
		AIModel:   os.Getenv("AI_MODEL"),

		GradingBaseURL:           envOrDefault("GRADING_BASE_URL", "http://localhost"+portOf(addr)+"/api/v1/ai"),
		GradingToken:             os.Getenv("GRADING_TOKEN"),
		GradingTokenHash:         os.Getenv("GRADING_TOKEN_HASH"),
		GradingConcurrency:       intOrDefault("GRADING_CONCURRENCY", 5),
		GradingRetryBackoff:      durationOrDefault("GRADING_RETRY_BACKOFF_MS", time.Millisecond, 300*time.Millisecond),
		GradingTaskTimeout:       durationOrDefault("GRADING_TASK_TIMEOUT_SECONDS", time.Second, 30*time.Second),
		GradingRetryClientErrors: boolOrDefault("GRADING_RETRY_CLIENT_ERRORS", false),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Validate rejects settings that are only acceptable in development.
func (c Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}
	if c.JWTSecret == devJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.SessionKey == devJWTSecret {
		return errors.New("SESSION_KEY must be set in production")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsToInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func intOrDefault(key string, fallback int) int {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return v
}

func boolOrDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

// durationOrDefault reads a positive integer count of unit.
func durationOrDefault(key string, unit, fallback time.Duration) time.Duration {
	v := stringsToInt(os.Getenv(key))
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * unit
}

func csvOrDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func portOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ":8080"
}
