package config

import (
	"errors"
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

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Horizon  HorizonConfig
	Query    QueryConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig tunes the recurrence engine itself. The DST policies default
// to resolve-forward for spring-forward gaps and earlier-of-pair for
// fall-back overlaps; they are configurable because cross-region deployments
// may prefer the opposite choices.
type EngineConfig struct {
	GapPolicy          string
	OverlapPolicy      string
	DefaultWindowDays  int
	LockTTL            time.Duration
	MaterializeWorkers int
}

// HorizonConfig drives the background horizon roll that keeps slot coverage
// ahead of the present as time passes.
type HorizonConfig struct {
	Enabled  bool
	CronSpec string
	Window   time.Duration
}

// QueryConfig governs the range-query read path.
type QueryConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	MaxRangeDays int
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		GapPolicy:          v.GetString("ENGINE_DST_GAP_POLICY"),
		OverlapPolicy:      v.GetString("ENGINE_DST_OVERLAP_POLICY"),
		DefaultWindowDays:  v.GetInt("ENGINE_DEFAULT_WINDOW_DAYS"),
		LockTTL:            parseDuration(v.GetString("ENGINE_LOCK_TTL"), 30*time.Second),
		MaterializeWorkers: v.GetInt("ENGINE_MATERIALIZE_WORKERS"),
	}

	cfg.Horizon = HorizonConfig{
		Enabled:  v.GetBool("HORIZON_ROLL_ENABLED"),
		CronSpec: v.GetString("HORIZON_ROLL_CRON"),
		Window:   parseDuration(v.GetString("HORIZON_ROLL_WINDOW"), 90*24*time.Hour),
	}

	cfg.Query = QueryConfig{
		CacheEnabled: v.GetBool("QUERY_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("QUERY_CACHE_TTL"), 5*time.Minute),
		MaxRangeDays: v.GetInt("QUERY_MAX_RANGE_DAYS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "orbitcal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_DST_GAP_POLICY", "forward")
	v.SetDefault("ENGINE_DST_OVERLAP_POLICY", "earlier")
	v.SetDefault("ENGINE_DEFAULT_WINDOW_DAYS", 90)
	v.SetDefault("ENGINE_LOCK_TTL", "30s")
	v.SetDefault("ENGINE_MATERIALIZE_WORKERS", 2)

	v.SetDefault("HORIZON_ROLL_ENABLED", false)
	v.SetDefault("HORIZON_ROLL_CRON", "0 3 * * *")
	v.SetDefault("HORIZON_ROLL_WINDOW", "2160h")

	v.SetDefault("QUERY_CACHE_ENABLED", false)
	v.SetDefault("QUERY_CACHE_TTL", "5m")
	v.SetDefault("QUERY_MAX_RANGE_DAYS", 366)
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
