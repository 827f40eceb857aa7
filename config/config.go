package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Admin    AdminConfig
	CORS     CORSConfig
	S3       S3Config
	Checkout CheckoutConfig
	Cart     CartConfig
	Realtime RealtimeConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// SessionConfig controls the anonymous cart session tokens.
// A zero TokenExpiry issues tokens that never expire.
type SessionConfig struct {
	Secret      string
	TokenExpiry time.Duration
}

type AdminConfig struct {
	APIKeyHash string // bcrypt hash; empty disables the admin key check
}

type CORSConfig struct {
	AllowedOrigins []string
}

type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseURL         string // CloudFront or S3 direct URL
}

type CheckoutConfig struct {
	TaxRate           float64
	ShippingPolicy    string // flat, threshold
	FlatShippingRate  float64
	FreeShippingOver  float64
	ThresholdShipping float64
	DefaultEmail      string
	DeliveryDays      int
}

type CartConfig struct {
	PendingRemovalTTL time.Duration
	ReservationTTL    time.Duration // 0 keeps reservations until checkout or removal
}

type RealtimeConfig struct {
	Backend string // memory, redis
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  parseBool(getEnv("REDIS_ENABLED", "false")),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Session: SessionConfig{
			Secret:      getEnv("SESSION_SECRET", "your-session-secret"),
			TokenExpiry: parseOptionalDuration(getEnv("SESSION_TOKEN_EXPIRY", "")),
		},
		Admin: AdminConfig{
			APIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "storefront-product-images"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			BaseURL:         getEnv("AWS_S3_BASE_URL", ""),
		},
		Checkout: CheckoutConfig{
			TaxRate:           parseFloat(getEnv("CHECKOUT_TAX_RATE", "0.10"), 0.10),
			ShippingPolicy:    getEnv("CHECKOUT_SHIPPING_POLICY", "flat"),
			FlatShippingRate:  parseFloat(getEnv("CHECKOUT_FLAT_SHIPPING", "10"), 10),
			FreeShippingOver:  parseFloat(getEnv("CHECKOUT_FREE_SHIPPING_OVER", "100"), 100),
			ThresholdShipping: parseFloat(getEnv("CHECKOUT_THRESHOLD_SHIPPING", "9.99"), 9.99),
			DefaultEmail:      getEnv("CHECKOUT_DEFAULT_EMAIL", "customer@example.com"),
			DeliveryDays:      parseInt(getEnv("CHECKOUT_DELIVERY_DAYS", "7"), 7),
		},
		Cart: CartConfig{
			PendingRemovalTTL: parseDuration(getEnv("CART_PENDING_REMOVAL_TTL", "5m")),
			ReservationTTL:    parseOptionalDuration(getEnv("CART_RESERVATION_TTL", "")),
		},
		Realtime: RealtimeConfig{
			Backend: getEnv("REALTIME_BACKEND", "memory"),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default 5m", s)
		return 5 * time.Minute
	}
	return duration
}

func parseOptionalDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, disabling", s)
		return 0
	}
	return duration
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("Invalid number %s, using default %v", s, fallback)
		return fallback
	}
	return f
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
