// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Aggregation AggregationConfig
	Ingestion   IngestionConfig
	Sentiment   SentimentConfig
	Pipeline    PipelineConfig
	Logging     LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
	QueryTimeout time.Duration
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled        bool
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// AggregationConfig holds batch aggregation configuration
type AggregationConfig struct {
	Timezone       string
	MaxConcurrency int
	UnitTimeout    time.Duration
	EventsTopic    string
	SummaryDays    int
}

// IngestionConfig holds collector configuration
type IngestionConfig struct {
	Titles             []string
	TwitterBearerToken string
	TwitterHost        string
	TweetsPerTitle     int
	RedditBaseURL      string
	RedditUserAgent    string
	RedditSubreddits   []string
	RedditPostsLimit   int
	RedditCommentLimit int
	RedditRequestEvery time.Duration
	SurveyResponses    int
	SurveyDaysBack     int
	RetryAttempts      int
	RetryDelay         time.Duration
	RetryBackoff       float64
	RequestTimeout     time.Duration
}

// SentimentConfig holds scoring configuration
type SentimentConfig struct {
	BatchSize int
}

// PipelineConfig holds the scheduled pipeline configuration
type PipelineConfig struct {
	Interval   time.Duration
	RunOnStart bool
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// DefaultTitles is the catalog tracked when INGEST_TITLES is unset
var DefaultTitles = []string{
	"Stranger Things",
	"The Witcher",
	"Wednesday",
	"Ozark",
	"The Crown",
	"Bridgerton",
	"Squid Game",
	"Money Heist",
	"Dark",
	"The Umbrella Academy",
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "streampulse"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			QueryTimeout: getEnvAsDuration("DB_QUERY_TIMEOUT", 15*time.Second),
		},
		NATS: NATSConfig{
			Enabled:        getEnvAsBool("NATS_ENABLED", true),
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Aggregation: AggregationConfig{
			Timezone:       getEnv("AGGREGATION_TIMEZONE", "UTC"),
			MaxConcurrency: getEnvAsInt("AGGREGATION_MAX_CONCURRENCY", 1),
			UnitTimeout:    getEnvAsDuration("AGGREGATION_UNIT_TIMEOUT", 30*time.Second),
			EventsTopic:    getEnv("AGGREGATION_EVENTS_TOPIC", "aggregate"),
			SummaryDays:    getEnvAsInt("AGGREGATION_SUMMARY_DAYS", 7),
		},
		Ingestion: IngestionConfig{
			Titles:             getEnvAsSlice("INGEST_TITLES", DefaultTitles),
			TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
			TwitterHost:        getEnv("TWITTER_HOST", "https://api.twitter.com"),
			TweetsPerTitle:     getEnvAsInt("INGEST_TWEETS_PER_TITLE", 100),
			RedditBaseURL:      getEnv("REDDIT_BASE_URL", "https://www.reddit.com"),
			RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "streampulse/1.0"),
			RedditSubreddits:   getEnvAsSlice("REDDIT_SUBREDDITS", []string{"netflix", "television", "NetflixBestOf", "streaming"}),
			RedditPostsLimit:   getEnvAsInt("REDDIT_POSTS_LIMIT", 10),
			RedditCommentLimit: getEnvAsInt("REDDIT_COMMENTS_LIMIT", 50),
			RedditRequestEvery: getEnvAsDuration("REDDIT_REQUEST_INTERVAL", 1*time.Second),
			SurveyResponses:    getEnvAsInt("SURVEY_RESPONSES_PER_TITLE", 100),
			SurveyDaysBack:     getEnvAsInt("SURVEY_DAYS_BACK", 30),
			RetryAttempts:      getEnvAsInt("INGEST_RETRY_ATTEMPTS", 3),
			RetryDelay:         getEnvAsDuration("INGEST_RETRY_DELAY", 5*time.Second),
			RetryBackoff:       getEnvAsFloat("INGEST_RETRY_BACKOFF", 2.0),
			RequestTimeout:     getEnvAsDuration("INGEST_REQUEST_TIMEOUT", 10*time.Second),
		},
		Sentiment: SentimentConfig{
			BatchSize: getEnvAsInt("SENTIMENT_BATCH_SIZE", 500),
		},
		Pipeline: PipelineConfig{
			Interval:   getEnvAsDuration("PIPELINE_INTERVAL", 6*time.Hour),
			RunOnStart: getEnvAsBool("PIPELINE_RUN_ON_START", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, validate(config)
}

// Location returns the timezone used for day boundaries
func (c AggregationConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ConnString returns the postgres connection string
func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// validate checks if config is valid
func validate(config Config) error {
	if _, err := config.Aggregation.Location(); err != nil {
		return fmt.Errorf("invalid aggregation timezone %q: %w", config.Aggregation.Timezone, err)
	}

	if config.Aggregation.MaxConcurrency < 1 {
		return fmt.Errorf("aggregation concurrency must be at least 1")
	}

	if config.Aggregation.SummaryDays < 1 {
		return fmt.Errorf("summary days must be at least 1")
	}

	if len(config.Ingestion.Titles) == 0 {
		return fmt.Errorf("at least one title must be tracked")
	}

	if config.Pipeline.Interval <= 0 {
		return fmt.Errorf("pipeline interval must be positive")
	}

	if config.Sentiment.BatchSize < 1 {
		return fmt.Errorf("sentiment batch size must be at least 1")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
