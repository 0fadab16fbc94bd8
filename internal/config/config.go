package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Logging
	LogLevel string
	LogFile  string

	// Game Rules
	DiscsPerPlayer    int
	WinThreshold      int
	OutOfBoundsPoints int
	TiePolicy         string // "sudden_death" or "declare"
	ShotPower         float64
	MaxAimDegrees     float64
	ShotPerturbation  float64
	SpinPerturbation  float64
	ChargePeriodMs    int
	RestEpsilon       float64
	RestTicks         int
	RoundDelayMs      int
	AIDelayMs         int

	// Table simulation
	PhysicsMode   string // "server" or "client"
	TickHz        int
	BoardFriction float64

	// Match lifecycle
	MatchExpiryMinutes     int
	QueueExpiryMinutes     int
	DisconnectGraceSeconds int
	MatchmakerPollSeconds  int

	// Idle detection
	IdleWarningSeconds     int
	IdleForfeitSeconds     int
	IdleWorkerPollInterval int

	// Persistence
	MigrationsDir string
	ReplayDir     string

	// Security
	JWTSecret         string
	SessionTTLHours   int
	AdminSessionHours int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/playshuffle?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Game Rules
		DiscsPerPlayer:    getEnvInt("DISCS_PER_PLAYER", 4),
		WinThreshold:      getEnvInt("WIN_THRESHOLD", 75),
		OutOfBoundsPoints: getEnvInt("OUT_OF_BOUNDS_POINTS", 0),
		TiePolicy:         getEnv("TIE_POLICY", "sudden_death"),
		ShotPower:         getEnvFloat("SHOT_POWER", 12),
		MaxAimDegrees:     getEnvFloat("MAX_AIM_DEGREES", 15),
		ShotPerturbation:  getEnvFloat("SHOT_PERTURBATION", 0.02),
		SpinPerturbation:  getEnvFloat("SPIN_PERTURBATION", 0.05),
		ChargePeriodMs:    getEnvInt("CHARGE_PERIOD_MS", 2000),
		RestEpsilon:       getEnvFloat("REST_EPSILON", 0.1),
		RestTicks:         getEnvInt("REST_TICKS", 3),
		RoundDelayMs:      getEnvInt("ROUND_DELAY_MS", 3000),
		AIDelayMs:         getEnvInt("AI_DELAY_MS", 1200),

		// Table simulation
		PhysicsMode:   getEnv("PHYSICS_MODE", "server"),
		TickHz:        getEnvInt("TICK_HZ", 60),
		BoardFriction: getEnvFloat("BOARD_FRICTION", 2.5),

		// Match lifecycle
		MatchExpiryMinutes:     getEnvInt("MATCH_EXPIRY_MINUTES", 10),
		QueueExpiryMinutes:     getEnvInt("QUEUE_EXPIRY_MINUTES", 10),
		DisconnectGraceSeconds: getEnvInt("DISCONNECT_GRACE_PERIOD_SECONDS", 120),
		MatchmakerPollSeconds:  getEnvInt("MATCHMAKER_POLL_SECONDS", 2),

		// Idle detection
		IdleWarningSeconds:     getEnvInt("IDLE_WARNING_SECONDS", 45),
		IdleForfeitSeconds:     getEnvInt("IDLE_FORFEIT_SECONDS", 90),
		IdleWorkerPollInterval: getEnvInt("IDLE_WORKER_POLL_SECONDS", 5),

		// Persistence
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
		ReplayDir:     getEnv("REPLAY_DIR", ""),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTTLHours:   getEnvInt("SESSION_TTL_HOURS", 24),
		AdminSessionHours: getEnvInt("ADMIN_SESSION_HOURS", 4),
	}
}

// ChargePeriod is the time the power meter takes to go 0 -> 1 -> 0.
func (c *Config) ChargePeriod() time.Duration {
	return time.Duration(c.ChargePeriodMs) * time.Millisecond
}

func (c *Config) RoundDelay() time.Duration {
	return time.Duration(c.RoundDelayMs) * time.Millisecond
}

func (c *Config) AIDelay() time.Duration {
	return time.Duration(c.AIDelayMs) * time.Millisecond
}

// SessionTTL is the lifetime of a player JWT.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionHours) * time.Hour
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
