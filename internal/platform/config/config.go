package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config mirrors config.yaml. Every field has a default so the service
// also starts without a file.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Identity IdentityConfig `mapstructure:"identity"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener and cookie settings.
type ServerConfig struct {
	Mode         string     `mapstructure:"mode"`
	Address      string     `mapstructure:"address"`
	Cors         CorsConfig `mapstructure:"cors"`
	CookieSecret string     `mapstructure:"cookieSecret"`
	CookieSecure bool       `mapstructure:"cookieSecure"`
}

// CorsConfig lists the origins allowed to call the API with credentials.
type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// DatabaseConfig covers the SQL store and the Redis cache.
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Redis  RedisConfig `mapstructure:"redis"`
	// Slot selects where session snapshots live: redis, sql, tiered or memory.
	Slot string `mapstructure:"slot"`
}

// RedisConfig is the go-redis client configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QuizConfig tunes the rating engine and the sampler.
type QuizConfig struct {
	AnalyzeThreshold  int           `mapstructure:"analyzeThreshold"`
	DefaultPageLimit  int           `mapstructure:"defaultPageLimit"`
	MaxPageLimit      int           `mapstructure:"maxPageLimit"`
	SessionIdleTTL    time.Duration `mapstructure:"sessionIdleTTL"`
	SessionSlotTTL    time.Duration `mapstructure:"sessionSlotTTL"`
	PersistTimeout    time.Duration `mapstructure:"persistTimeout"`
	PoolRefresh       time.Duration `mapstructure:"poolRefresh"`
	RateLimitWindow   time.Duration `mapstructure:"rateLimitWindow"`
	RateLimitMaxWrite int64         `mapstructure:"rateLimitMaxWrite"`
}

// AnalysisConfig points at the category tables and the result cache TTL.
type AnalysisConfig struct {
	TablesPath string        `mapstructure:"tablesPath"`
	CacheTTL   time.Duration `mapstructure:"cacheTTL"`
}

// IdentityConfig describes how bearer tokens of the identity provider are verified.
type IdentityConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
	Issuer    string `mapstructure:"issuer"`
}

// LogConfig selects the zap preset.
type LogConfig struct {
	Mode string `mapstructure:"mode"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.cookieSecret", "")
	v.SetDefault("server.cookieSecure", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "been.db")
	v.SetDefault("database.slot", "tiered")
	v.SetDefault("database.redis.address", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("quiz.analyzeThreshold", 20)
	v.SetDefault("quiz.defaultPageLimit", 100)
	v.SetDefault("quiz.maxPageLimit", 500)
	v.SetDefault("quiz.sessionIdleTTL", 30*time.Minute)
	v.SetDefault("quiz.sessionSlotTTL", 365*24*time.Hour)
	v.SetDefault("quiz.persistTimeout", 2*time.Second)
	v.SetDefault("quiz.poolRefresh", 10*time.Minute)
	v.SetDefault("quiz.rateLimitWindow", time.Minute)
	v.SetDefault("quiz.rateLimitMaxWrite", 120)

	v.SetDefault("analysis.tablesPath", "")
	v.SetDefault("analysis.cacheTTL", time.Minute)

	v.SetDefault("identity.jwtSecret", "")
	v.SetDefault("identity.issuer", "")

	v.SetDefault("log.mode", "development")
}

// LoadConfig reads config.yaml from ./config or the working directory,
// after loading an optional .env file. Environment variables prefixed with
// BEEN_ override file values, e.g. BEEN_DATABASE_REDIS_ADDRESS.
func LoadConfig(paths ...string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	// 1. File name and type
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// 2. Search paths, first match wins
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 3. Environment overrides
	v.SetEnvPrefix("BEEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the file; running on defaults is fine
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	// 5. Decode into the struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
