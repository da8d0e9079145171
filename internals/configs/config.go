package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =======================
// ENV LOADER
// =======================

// LoadEnv loads .env unless running on Railway and reports where the values came from.
func LoadEnv() string {
	if os.Getenv("RAILWAY_ENVIRONMENT") != "" {
		return "railway"
	}
	if err := godotenv.Load(); err != nil {
		return "system"
	}
	return ".env"
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// =======================
// TYPED CONFIG
// =======================

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	SSLMode  string
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=olimpiada&options=-c statement_timeout=3000",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type SweepConfig struct {
	Schedule string
	LockTTL  time.Duration
	Timeout  time.Duration
}

type Config struct {
	Env      string
	Port     string
	LogLevel string

	DB        DBConfig
	JWTSecret string

	OrderTTL      time.Duration
	OrderCurrency string

	Sweep       SweepConfig
	LockBackend string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	JaegerEndpoint string
	CorsOrigins    []string

	RunSeeds     bool
	SeedPassword string
	AutoMigrate  bool
}

func (c Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads the process environment into a Config.
func Load() (Config, error) {
	cfg := Config{
		Env:      GetEnv("APP_ENV", "production"),
		Port:     GetEnv("PORT", "3000"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			User:     GetEnv("DB_USER"),
			Password: GetEnv("DB_PASSWORD"),
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "5432"),
			Name:     GetEnv("DB_NAME"),
			SSLMode:  GetEnv("DB_SSLMODE", "require"),
		},
		JWTSecret:      GetEnv("JWT_SECRET"),
		OrderCurrency:  strings.ToUpper(GetEnv("ORDER_CURRENCY", "BOB")),
		LockBackend:    strings.ToLower(GetEnv("LOCK_BACKEND", "db")),
		RedisURL:       GetEnv("REDIS_URL"),
		KafkaTopic:     GetEnv("KAFKA_TOPIC", "payment-orders"),
		JaegerEndpoint: GetEnv("JAEGER_ENDPOINT"),
		SeedPassword:   GetEnv("SEED_ACCOUNT_PASSWORD"),
		Sweep: SweepConfig{
			Schedule: GetEnv("SWEEP_SCHEDULE", "@hourly"),
		},
	}

	cfg.KafkaBrokers = splitList(GetEnv("KAFKA_BROKERS"))
	cfg.CorsOrigins = splitList(GetEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"))

	ttlHours, err := getEnvInt("ORDER_TTL_HOURS", 48)
	if err != nil {
		return Config{}, err
	}
	if ttlHours <= 0 {
		return Config{}, fmt.Errorf("ORDER_TTL_HOURS must be positive, got %d", ttlHours)
	}
	cfg.OrderTTL = time.Duration(ttlHours) * time.Hour

	lockMin, err := getEnvInt("SWEEP_LOCK_TTL_MINUTES", 55)
	if err != nil {
		return Config{}, err
	}
	timeoutMin, err := getEnvInt("SWEEP_TIMEOUT_MINUTES", 5)
	if err != nil {
		return Config{}, err
	}
	if lockMin <= 0 || timeoutMin <= 0 {
		return Config{}, fmt.Errorf("sweep lock ttl and timeout must be positive")
	}
	if timeoutMin > lockMin {
		return Config{}, fmt.Errorf("SWEEP_TIMEOUT_MINUTES (%d) exceeds SWEEP_LOCK_TTL_MINUTES (%d)", timeoutMin, lockMin)
	}
	cfg.Sweep.LockTTL = time.Duration(lockMin) * time.Minute
	cfg.Sweep.Timeout = time.Duration(timeoutMin) * time.Minute

	if cfg.RunSeeds, err = getEnvBool("RUN_SEEDS", false); err != nil {
		return Config{}, err
	}
	if cfg.AutoMigrate, err = getEnvBool("AUTO_MIGRATE", true); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.LockBackend {
	case "db":
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("LOCK_BACKEND=redis requires REDIS_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown LOCK_BACKEND %q", cfg.LockBackend)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
