package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scoring    ScoringConfig
	Assignment AssignmentConfig
	Workload   WorkloadConfig
	Exports    ExportsConfig
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedHeaders []string
	MaxAge         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// ScoringConfig carries the tunable constants of expertise and candidate scoring.
type ScoringConfig struct {
	ExpertBase               float64
	AdvancedBase             float64
	IntermediateBase         float64
	BeginnerBase             float64
	ExperienceBonus          float64
	ExperienceYearsThreshold int
	SuccessBonus             float64
	SuccessRateThreshold     float64
	ExpertiseWeight          float64
	CapacityWeight           float64
}

// DefaultScoring returns the stock scoring constants.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		ExpertBase:               90,
		AdvancedBase:             75,
		IntermediateBase:         60,
		BeginnerBase:             40,
		ExperienceBonus:          5,
		ExperienceYearsThreshold: 5,
		SuccessBonus:             5,
		SuccessRateThreshold:     80,
		ExpertiseWeight:          0.6,
		CapacityWeight:           0.4,
	}
}

// AssignmentConfig governs lifecycle transactions.
type AssignmentConfig struct {
	PrimaryRole   string
	DefaultWeight float64
	TxMaxRetries  int
	TxRetryBase   time.Duration
	TxRetryMax    time.Duration
}

// WorkloadConfig governs snapshot calculation and the recurring job.
type WorkloadConfig struct {
	MaxCapacityPoints float64
	CacheTTL          time.Duration
	RecalcEnabled     bool
	RecalcCron        string
	RecalcTimezone    string
	RecalcLockTTL     time.Duration
	QueueEnabled      bool
	QueueWorkers      int
	QueueRetries      int
}

// ExportsConfig controls history export storage.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	S3              S3Config
}

// S3Config enables an S3-compatible export backend when bucket and keys are present.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether enough settings are present to build an S3 client.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:           v.GetString("DB_HOST"),
		Port:           v.GetInt("DB_PORT"),
		User:           v.GetString("DB_USER"),
		Password:       v.GetString("DB_PASSWORD"),
		Name:           v.GetString("DB_NAME"),
		SSLMode:        v.GetString("DB_SSL_MODE"),
		MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrateOnStart: v.GetBool("DB_MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		AllowedHeaders: splitAndTrim(v.GetString("ALLOWED_HEADERS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scoring = ScoringConfig{
		ExpertBase:               v.GetFloat64("SCORING_EXPERT_BASE"),
		AdvancedBase:             v.GetFloat64("SCORING_ADVANCED_BASE"),
		IntermediateBase:         v.GetFloat64("SCORING_INTERMEDIATE_BASE"),
		BeginnerBase:             v.GetFloat64("SCORING_BEGINNER_BASE"),
		ExperienceBonus:          v.GetFloat64("SCORING_EXPERIENCE_BONUS"),
		ExperienceYearsThreshold: v.GetInt("SCORING_EXPERIENCE_YEARS_THRESHOLD"),
		SuccessBonus:             v.GetFloat64("SCORING_SUCCESS_BONUS"),
		SuccessRateThreshold:     v.GetFloat64("SCORING_SUCCESS_RATE_THRESHOLD"),
		ExpertiseWeight:          v.GetFloat64("SCORING_EXPERTISE_WEIGHT"),
		CapacityWeight:           v.GetFloat64("SCORING_CAPACITY_WEIGHT"),
	}

	cfg.Assignment = AssignmentConfig{
		PrimaryRole:   strings.ToUpper(v.GetString("ASSIGNMENT_PRIMARY_ROLE")),
		DefaultWeight: v.GetFloat64("ASSIGNMENT_DEFAULT_WEIGHT"),
		TxMaxRetries:  v.GetInt("ASSIGNMENT_TX_MAX_RETRIES"),
		TxRetryBase:   parseDuration(v.GetString("ASSIGNMENT_TX_RETRY_BASE"), 50*time.Millisecond),
		TxRetryMax:    parseDuration(v.GetString("ASSIGNMENT_TX_RETRY_MAX"), 2*time.Second),
	}

	cfg.Workload = WorkloadConfig{
		MaxCapacityPoints: v.GetFloat64("WORKLOAD_MAX_CAPACITY_POINTS"),
		CacheTTL:          parseDuration(v.GetString("WORKLOAD_CACHE_TTL"), 15*time.Minute),
		RecalcEnabled:     v.GetBool("WORKLOAD_RECALC_ENABLED"),
		RecalcCron:        v.GetString("WORKLOAD_RECALC_CRON"),
		RecalcTimezone:    v.GetString("WORKLOAD_RECALC_TIMEZONE"),
		RecalcLockTTL:     parseDuration(v.GetString("WORKLOAD_RECALC_LOCK_TTL"), 30*time.Minute),
		QueueEnabled:      v.GetBool("WORKLOAD_QUEUE_ENABLED"),
		QueueWorkers:      v.GetInt("WORKLOAD_QUEUE_WORKERS"),
		QueueRetries:      v.GetInt("WORKLOAD_QUEUE_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		S3: S3Config{
			Bucket:          v.GetString("S3_BUCKET"),
			Region:          v.GetString("S3_REGION"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
		},
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "case_assignment")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATE_ON_START", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("ALLOWED_HEADERS", "Authorization,Content-Type,X-Requested-With,X-Request-ID")
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCORING_EXPERT_BASE", 90)
	v.SetDefault("SCORING_ADVANCED_BASE", 75)
	v.SetDefault("SCORING_INTERMEDIATE_BASE", 60)
	v.SetDefault("SCORING_BEGINNER_BASE", 40)
	v.SetDefault("SCORING_EXPERIENCE_BONUS", 5)
	v.SetDefault("SCORING_EXPERIENCE_YEARS_THRESHOLD", 5)
	v.SetDefault("SCORING_SUCCESS_BONUS", 5)
	v.SetDefault("SCORING_SUCCESS_RATE_THRESHOLD", 80)
	v.SetDefault("SCORING_EXPERTISE_WEIGHT", 0.6)
	v.SetDefault("SCORING_CAPACITY_WEIGHT", 0.4)

	v.SetDefault("ASSIGNMENT_PRIMARY_ROLE", "LEAD_ATTORNEY")
	v.SetDefault("ASSIGNMENT_DEFAULT_WEIGHT", 1.0)
	v.SetDefault("ASSIGNMENT_TX_MAX_RETRIES", 3)
	v.SetDefault("ASSIGNMENT_TX_RETRY_BASE", "50ms")
	v.SetDefault("ASSIGNMENT_TX_RETRY_MAX", "2s")

	v.SetDefault("WORKLOAD_MAX_CAPACITY_POINTS", 40)
	v.SetDefault("WORKLOAD_CACHE_TTL", "15m")
	v.SetDefault("WORKLOAD_RECALC_ENABLED", true)
	v.SetDefault("WORKLOAD_RECALC_CRON", "0 2 * * *")
	v.SetDefault("WORKLOAD_RECALC_TIMEZONE", "UTC")
	v.SetDefault("WORKLOAD_RECALC_LOCK_TTL", "30m")
	v.SetDefault("WORKLOAD_QUEUE_ENABLED", true)
	v.SetDefault("WORKLOAD_QUEUE_WORKERS", 2)
	v.SetDefault("WORKLOAD_QUEUE_RETRIES", 3)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
