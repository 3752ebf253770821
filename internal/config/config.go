package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingSetting = errors.New("missing required setting")

type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Kafka
	KafkaBrokers       []string
	KafkaProgressTopic string
	KafkaRequestTopic  string

	// API Configuration
	APIPort            string
	APIHost            string
	CORSAllowedOrigins []string

	// Application
	AppName    string
	AppVersion string

	// Environment
	Env       string
	LogLevel  string
	LogFormat string

	WooCommerce WooCommerceConfig
	Media       MediaConfig
}

// WooCommerceConfig holds everything the remote catalog client and the
// importer need to talk to one store.
type WooCommerceConfig struct {
	URL            string
	ConsumerKey    string
	ConsumerSecret string
	// AuthMode is "basic" or "query".
	AuthMode        string
	PerPage         int
	Statuses        []string
	Timeout         time.Duration
	VerifyTLS       bool
	MaxRetries      int
	RetryDelay      time.Duration
	RateLimit       float64
	DefaultCurrency string
	DownloadImages  bool
}

type MediaConfig struct {
	// Disk is "public" for the local filesystem or "s3" for MinIO/S3.
	Disk      string
	Root      string
	PublicURL string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	return &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "sqlite://catalog.db"),
		RedisURL:           getEnv("REDIS_URL", ""),
		KafkaBrokers:       getEnvAsList("KAFKA_BROKERS", nil),
		KafkaProgressTopic: getEnv("KAFKA_PROGRESS_TOPIC", "catalog-import-progress"),
		KafkaRequestTopic:  getEnv("KAFKA_REQUEST_TOPIC", "catalog-import-requests"),
		APIPort:            getEnv("API_PORT", "8080"),
		APIHost:            getEnv("API_HOST", "0.0.0.0"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AppName:            getEnv("APP_NAME", "Catalog"),
		AppVersion:         getEnv("APP_VERSION", ""),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		WooCommerce: WooCommerceConfig{
			URL:             getEnv("WOOCOMMERCE_URL", ""),
			ConsumerKey:     getEnv("WOOCOMMERCE_CONSUMER_KEY", ""),
			ConsumerSecret:  getEnv("WOOCOMMERCE_CONSUMER_SECRET", ""),
			AuthMode:        strings.ToLower(getEnv("WOOCOMMERCE_AUTH", "basic")),
			PerPage:         getEnvAsInt("WOOCOMMERCE_PER_PAGE", 50),
			Statuses:        getEnvAsList("WOOCOMMERCE_STATUSES", []string{"publish", "draft"}),
			Timeout:         time.Duration(getEnvAsInt("WOOCOMMERCE_TIMEOUT", 15)) * time.Second,
			VerifyTLS:       getEnvAsBool("WOOCOMMERCE_VERIFY_TLS", true),
			MaxRetries:      getEnvAsInt("WOOCOMMERCE_MAX_RETRIES", 3),
			RetryDelay:      time.Duration(getEnvAsInt("WOOCOMMERCE_RETRY_DELAY_MS", 500)) * time.Millisecond,
			RateLimit:       getEnvAsFloat("WOOCOMMERCE_RATE_LIMIT", 0),
			DefaultCurrency: strings.ToUpper(getEnv("WOOCOMMERCE_DEFAULT_CURRENCY", "USD")),
			DownloadImages:  getEnvAsBool("WOOCOMMERCE_DOWNLOAD_IMAGES", true),
		},
		Media: MediaConfig{
			Disk:           getEnv("MEDIA_DISK", "public"),
			Root:           getEnv("MEDIA_ROOT", "storage/public"),
			PublicURL:      getEnv("MEDIA_PUBLIC_URL", ""),
			MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
			MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
			MinioBucket:    getEnv("MINIO_BUCKET", "catalog-media"),
			MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
	}, nil
}

// Validate reports settings the importer cannot run without. Credentials are
// optional because public stores answer unauthenticated reads.
func (c WooCommerceConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: WOOCOMMERCE_URL", ErrMissingSetting)
	}
	if c.AuthMode != "basic" && c.AuthMode != "query" {
		return fmt.Errorf("invalid WOOCOMMERCE_AUTH %q: expected basic or query", c.AuthMode)
	}
	return nil
}

func (c WooCommerceConfig) HasCredentials() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != ""
}

func (c MediaConfig) Validate() error {
	switch c.Disk {
	case "public":
		if c.Root == "" {
			return fmt.Errorf("%w: MEDIA_ROOT", ErrMissingSetting)
		}
	case "s3":
		if c.MinioEndpoint == "" {
			return fmt.Errorf("%w: MINIO_ENDPOINT", ErrMissingSetting)
		}
		if c.MinioBucket == "" {
			return fmt.Errorf("%w: MINIO_BUCKET", ErrMissingSetting)
		}
	default:
		return fmt.Errorf("invalid MEDIA_DISK %q: expected public or s3", c.Disk)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return SplitList(value)
}

// SplitList splits comma separated values, trimming and dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
