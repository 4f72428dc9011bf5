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
	Env  string
	Host string
	Port int

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Auth       AuthConfig
	Realtime   RealtimeConfig
	Stats      StatsConfig
	QueryCache QueryCacheConfig
	Sentry     SentryConfig
	Classes    ClassesConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuthConfig governs the TOTP login and the optional submission gate.
type AuthConfig struct {
	Enabled        bool
	CredentialFile string
	TOTPWindow     uint
}

// RealtimeConfig tunes the websocket hub.
type RealtimeConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	SendBufferSize int
}

// StatsConfig holds the classification thresholds and view sizes. The
// thresholds are applied uniformly by every call site.
type StatsConfig struct {
	HighThreshold int
	MidThreshold  int
	RankingSize   int
	RecentSize    int
	Timezone      string
}

// QueryCacheConfig gates the redis cache for historical queries.
type QueryCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type SentryConfig struct {
	DSN string
}

// ClassesConfig locates the static class/headteacher data.
type ClassesConfig struct {
	DataFile          string
	FallbackHeadLabel string
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
	cfg.Host = v.GetString("HOST")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Auth = AuthConfig{
		Enabled:        v.GetBool("AUTH_ENABLED"),
		CredentialFile: v.GetString("AUTH_CREDENTIAL_FILE"),
		TOTPWindow:     v.GetUint("TOTP_WINDOW"),
	}

	cfg.Realtime = RealtimeConfig{
		PingInterval:   parseDuration(v.GetString("WS_PING_INTERVAL"), 30*time.Second),
		WriteTimeout:   parseDuration(v.GetString("WS_WRITE_TIMEOUT"), 10*time.Second),
		SendBufferSize: v.GetInt("WS_SEND_BUFFER"),
	}

	cfg.Stats = StatsConfig{
		HighThreshold: v.GetInt("STATS_HIGH_THRESHOLD"),
		MidThreshold:  v.GetInt("STATS_MID_THRESHOLD"),
		RankingSize:   v.GetInt("STATS_RANKING_SIZE"),
		RecentSize:    v.GetInt("STATS_RECENT_SIZE"),
		Timezone:      v.GetString("STATS_TIMEZONE"),
	}

	cfg.QueryCache = QueryCacheConfig{
		Enabled: v.GetBool("ENABLE_QUERY_CACHE"),
		TTL:     parseDuration(v.GetString("QUERY_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Sentry = SentryConfig{DSN: v.GetString("SENTRY_DSN")}

	cfg.Classes = ClassesConfig{
		DataFile:          v.GetString("CLASS_DATA_FILE"),
		FallbackHeadLabel: v.GetString("DEFAULT_HEADTEACHER_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "reports")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("AUTH_CREDENTIAL_FILE", "data/2fabase.json")
	v.SetDefault("TOTP_WINDOW", 1)

	v.SetDefault("WS_PING_INTERVAL", "30s")
	v.SetDefault("WS_WRITE_TIMEOUT", "10s")
	v.SetDefault("WS_SEND_BUFFER", 256)

	v.SetDefault("STATS_HIGH_THRESHOLD", 5)
	v.SetDefault("STATS_MID_THRESHOLD", 3)
	v.SetDefault("STATS_RANKING_SIZE", 10)
	v.SetDefault("STATS_RECENT_SIZE", 5)
	v.SetDefault("STATS_TIMEZONE", "Asia/Shanghai")

	v.SetDefault("ENABLE_QUERY_CACHE", false)
	v.SetDefault("QUERY_CACHE_TTL", "10m")

	v.SetDefault("CLASS_DATA_FILE", "data/class.json")
	v.SetDefault("DEFAULT_HEADTEACHER_FORMAT", "{classNum}班班主任")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
