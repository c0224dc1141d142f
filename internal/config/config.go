package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PaddleSandbox    = "sandbox"
	PaddleProduction = "production"
)

// Config aggregates runtime configuration for the API server and the providers it talks to.
type Config struct {
	ListenAddr        string
	LogLevel          string
	MySQLDSN          string
	RedisURL          string
	RequestTimeout    time.Duration
	HTTPWriteTimeout  time.Duration
	FreeCredits       int
	ReplicateAPIToken string
	ReplicateBaseURL  string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIChatModel   string
	OpenAIImageModel  string

	PaddleAPIKey           string
	PaddleEnvironment      string
	PaddleBaseURL          string
	PaddleWebhookSecret    string
	PaddleWebhookTolerance time.Duration
	BasicProductID         string
	StandardProductID      string
	PremiumProductID       string

	AuthJWTSecret  string
	AuthCookieName string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:             getEnv("HTTP_LISTEN_ADDR", ":8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		RedisURL:               os.Getenv("REDIS_URL"),
		RequestTimeout:         time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 60)),
		HTTPWriteTimeout:       time.Second * time.Duration(getInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		FreeCredits:            getInt("FREE_CREDITS", 3),
		ReplicateBaseURL:       normalizeBaseURL(getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"), "https://api.replicate.com"),
		OpenAIBaseURL:          normalizeBaseURL(getEnv("OPENAI_BASE_URL", "https://api.openai.com"), "https://api.openai.com"),
		OpenAIChatModel:        getEnv("OPENAI_CHAT_MODEL", "gpt-4o"),
		OpenAIImageModel:       getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		PaddleEnvironment:      strings.ToLower(getEnv("PADDLE_ENVIRONMENT", PaddleSandbox)),
		PaddleWebhookTolerance: time.Second * time.Duration(getInt("PADDLE_WEBHOOK_TOLERANCE_SECONDS", 5)),
		BasicProductID:         os.Getenv("PADDLE_BASIC_PRODUCT_ID"),
		StandardProductID:      os.Getenv("PADDLE_STANDARD_PRODUCT_ID"),
		PremiumProductID:       os.Getenv("PADDLE_PREMIUM_PRODUCT_ID"),
		AuthCookieName:         getEnv("AUTH_COOKIE_NAME", "sb-access-token"),
		S3Endpoint:             getEnv("S3_ENDPOINT", ""),
		S3Region:               os.Getenv("S3_REGION"),
		S3AccessKey:            os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:            os.Getenv("S3_SECRET_KEY"),
		S3Bucket:               os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:        os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:         getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:               getEnv("S3_PREFIX", "logos"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.ReplicateAPIToken = os.Getenv("REPLICATE_API_TOKEN")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.PaddleAPIKey = os.Getenv("PADDLE_API_KEY")
	cfg.PaddleWebhookSecret = os.Getenv("PADDLE_WEBHOOK_SECRET")
	cfg.AuthJWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.PaddleBaseURL = paddleBaseURL(cfg.PaddleEnvironment)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"MYSQL_DSN", c.MySQLDSN},
		{"REPLICATE_API_TOKEN", c.ReplicateAPIToken},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"PADDLE_API_KEY", c.PaddleAPIKey},
		{"PADDLE_WEBHOOK_SECRET", c.PaddleWebhookSecret},
		{"PADDLE_BASIC_PRODUCT_ID", c.BasicProductID},
		{"PADDLE_STANDARD_PRODUCT_ID", c.StandardProductID},
		{"PADDLE_PREMIUM_PRODUCT_ID", c.PremiumProductID},
		{"AUTH_JWT_SECRET", c.AuthJWTSecret},
		{"S3_REGION", c.S3Region},
		{"S3_ACCESS_KEY", c.S3AccessKey},
		{"S3_SECRET_KEY", c.S3SecretKey},
		{"S3_BUCKET", c.S3Bucket},
		{"S3_PUBLIC_BASE_URL", c.S3PublicBaseURL},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.PaddleEnvironment != PaddleSandbox && c.PaddleEnvironment != PaddleProduction {
		return fmt.Errorf("PADDLE_ENVIRONMENT must be %q or %q, got %q", PaddleSandbox, PaddleProduction, c.PaddleEnvironment)
	}
	if c.FreeCredits < 0 {
		return fmt.Errorf("FREE_CREDITS cannot be negative")
	}
	return nil
}

func paddleBaseURL(environment string) string {
	if environment == PaddleProduction {
		return "https://api.paddle.com"
	}
	return "https://sandbox-api.paddle.com"
}

// normalizeBaseURL adds a missing scheme and drops trailing slashes so that clients can append
// API paths directly.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}
	if parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + raw)
		if err != nil {
			return fallback
		}
	}
	if parsed.Host == "" {
		return fallback
	}
	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// loadEnvFile loads the first env file found; having none is not an error.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
