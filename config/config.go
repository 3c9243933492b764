package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Storage.
	StoreDriver  string `mapstructure:"STORE_DRIVER"` // mongo | memory
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Coordination and side effects.
	LockDriver          string        `mapstructure:"LOCK_DRIVER"`     // redis | memory
	DispatchDriver      string        `mapstructure:"DISPATCH_DRIVER"` // asynq | log
	LockPrefix          string        `mapstructure:"LOCK_PREFIX"`
	LockTTL             time.Duration `mapstructure:"LOCK_TTL"`
	TransitionQueue     string        `mapstructure:"TRANSITION_QUEUE"`
	WorkerConcurrency   int           `mapstructure:"WORKER_CONCURRENCY"`
	WebhookURLs         string        `mapstructure:"WEBHOOK_URLS"` // comma separated
	WebhookTimeout      time.Duration `mapstructure:"WEBHOOK_TIMEOUT"`
	InvalidationChannel string        `mapstructure:"INVALIDATION_CHANNEL"`

	// Calendar busy-time cache.
	CacheTTL            time.Duration `mapstructure:"CACHE_TTL"`
	CacheIdleTTL        time.Duration `mapstructure:"CACHE_IDLE_TTL"`
	CacheSweepSpec      string        `mapstructure:"CACHE_SWEEP_SPEC"`
	CacheFetchTimeout   time.Duration `mapstructure:"CACHE_FETCH_TIMEOUT"`
	CacheRefreshRetries int           `mapstructure:"CACHE_REFRESH_RETRIES"`

	// Availability and reservation.
	AllowPartialAvailability bool          `mapstructure:"ALLOW_PARTIAL_AVAILABILITY"`
	MaxRangeDays             int           `mapstructure:"MAX_RANGE_DAYS"`
	FetchConcurrency         int           `mapstructure:"FETCH_CONCURRENCY"`
	RevalidateAfter          time.Duration `mapstructure:"REVALIDATE_AFTER"`
	LockTimeout              time.Duration `mapstructure:"LOCK_TIMEOUT"`
	CommitTimeout            time.Duration `mapstructure:"COMMIT_TIMEOUT"`
	IdempotencyTTL           time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	// Google Calendar credentials file; empty disables the google provider.
	GoogleCredentialsFile string `mapstructure:"GOOGLE_CREDENTIALS_FILE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("STORE_DRIVER", "mongo")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "slotwise")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("LOCK_DRIVER", "redis")
	viper.SetDefault("DISPATCH_DRIVER", "asynq")
	viper.SetDefault("LOCK_PREFIX", "slotwise:lock:")
	viper.SetDefault("LOCK_TTL", "30s")
	viper.SetDefault("TRANSITION_QUEUE", "transitions")
	viper.SetDefault("WORKER_CONCURRENCY", 10)
	viper.SetDefault("WEBHOOK_URLS", "")
	viper.SetDefault("WEBHOOK_TIMEOUT", "10s")
	viper.SetDefault("INVALIDATION_CHANNEL", "slotwise:calendar-invalidations")
	viper.SetDefault("CACHE_TTL", "5m")
	viper.SetDefault("CACHE_IDLE_TTL", "30m")
	viper.SetDefault("CACHE_SWEEP_SPEC", "@every 5m")
	viper.SetDefault("CACHE_FETCH_TIMEOUT", "10s")
	viper.SetDefault("CACHE_REFRESH_RETRIES", 2)
	viper.SetDefault("ALLOW_PARTIAL_AVAILABILITY", true)
	viper.SetDefault("MAX_RANGE_DAYS", 62)
	viper.SetDefault("FETCH_CONCURRENCY", 8)
	viper.SetDefault("REVALIDATE_AFTER", "5s")
	viper.SetDefault("LOCK_TIMEOUT", "5s")
	viper.SetDefault("COMMIT_TIMEOUT", "5s")
	viper.SetDefault("IDEMPOTENCY_TTL", "24h")
	viper.SetDefault("GOOGLE_CREDENTIALS_FILE", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// WebhookSubscribers splits WEBHOOK_URLS into its non-empty entries.
func (c Config) WebhookSubscribers() []string {
	var urls []string
	for _, u := range strings.Split(c.WebhookURLs, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
