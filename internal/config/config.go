package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type AppConfig struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	LogLevel    string     `mapstructure:"log_level"`
	MetricsPath string     `mapstructure:"metrics_path"`
	BaseURL     string     `mapstructure:"base_url"`
	HTTP        HTTPConfig `mapstructure:"http"`
}

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

type RateLimitRedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type RateLimitConfig struct {
	LoginLimit int
	Window     time.Duration
	Redis      RateLimitRedisConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type UploadConfig struct {
	LocalDir     string
	S3Region     string
	S3Bucket     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	MaxFiles     int
	MaxSizeBytes int64
}

type CheckoutConfig struct {
	IndividualURL string
	BusinessURL   string
	FamilyURL     string
}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Argon2        Argon2Params
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	RateLimit     RateLimitConfig
	SMTP          SMTPConfig
	Admin         AdminConfig
	Upload        UploadConfig
	Checkout      CheckoutConfig
}

func Load() (*Config, error) {
	appCfg, err := loadAppConfig(os.Getenv("TAXPORTAL_CONFIG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: *appCfg,
		DB: DBConfig{
			Host:     envString("POSTGRES_HOST", "localhost"),
			Port:     envInt("POSTGRES_PORT", 5432),
			Name:     envString("POSTGRES_DB", "taxportal"),
			User:     envString("POSTGRES_USER", "taxportal"),
			Password: envString("POSTGRES_PASSWORD", "taxportal"),
			SSLMode:  envString("POSTGRES_SSLMODE", "disable"),
		},
		Argon2: Argon2Params{
			Memory:      uint32(envInt("TAXPORTAL_ARGON2_MEMORY", 64*1024)),
			Iterations:  uint32(envInt("TAXPORTAL_ARGON2_ITERATIONS", 3)),
			Parallelism: uint8(envInt("TAXPORTAL_ARGON2_PARALLELISM", 2)),
			SaltLength:  uint32(envInt("TAXPORTAL_ARGON2_SALT_LENGTH", 16)),
			KeyLength:   uint32(envInt("TAXPORTAL_ARGON2_KEY_LENGTH", 32)),
		},
		SessionTTL:    envDuration("TAXPORTAL_SESSION_TTL", 24*time.Hour),
		ResetTokenTTL: envDuration("TAXPORTAL_RESET_TOKEN_TTL", time.Hour),
		RateLimit: RateLimitConfig{
			LoginLimit: envInt("TAXPORTAL_LOGIN_RATE_LIMIT", 10),
			Window:     envDuration("TAXPORTAL_LOGIN_RATE_WINDOW", 1*time.Minute),
			Redis: RateLimitRedisConfig{
				Addr:     envString("TAXPORTAL_RATE_LIMIT_REDIS_ADDR", ""),
				Password: envString("TAXPORTAL_RATE_LIMIT_REDIS_PASSWORD", ""),
				DB:       envInt("TAXPORTAL_RATE_LIMIT_REDIS_DB", 0),
				Prefix:   envString("TAXPORTAL_RATE_LIMIT_REDIS_PREFIX", "taxportal:rl:"),
			},
		},
		SMTP: SMTPConfig{
			Host:     envString("SMTP_HOST", ""),
			Port:     envInt("SMTP_PORT", 587),
			User:     envString("SMTP_USER", ""),
			Password: envString("SMTP_PASS", ""),
			From:     envString("FROM_EMAIL", "no-reply@tax-expert.pro"),
		},
		Admin: AdminConfig{
			Name:     envString("TAXPORTAL_ADMIN_NAME", "Administrator"),
			Email:    envString("TAXPORTAL_ADMIN_EMAIL", ""),
			Password: envString("TAXPORTAL_ADMIN_PASSWORD", ""),
		},
		Upload: UploadConfig{
			LocalDir:     envString("TAXPORTAL_UPLOAD_DIR", "uploads"),
			S3Region:     envString("AWS_REGION", ""),
			S3Bucket:     envString("AWS_BUCKET_NAME", ""),
			S3Endpoint:   envString("AWS_S3_ENDPOINT", ""),
			S3AccessKey:  envString("AWS_KEY", ""),
			S3SecretKey:  envString("AWS_SECRET", ""),
			MaxFiles:     envInt("TAXPORTAL_UPLOAD_MAX_FILES", 10),
			MaxSizeBytes: int64(envInt("TAXPORTAL_UPLOAD_MAX_SIZE", 32<<20)),
		},
		Checkout: CheckoutConfig{
			IndividualURL: envString("TAXPORTAL_CHECKOUT_INDIVIDUAL_URL", "https://buy.stripe.com/dRmdR8awJ1El8v84Z6e3e01"),
			BusinessURL:   envString("TAXPORTAL_CHECKOUT_BUSINESS_URL", "https://buy.stripe.com/6oU28q5cp1Elh1Ecrye3e02"),
			FamilyURL:     envString("TAXPORTAL_CHECKOUT_FAMILY_URL", "https://buy.stripe.com/6oUeVc6gt5UB6n03V2e3e00"),
		},
	}

	return cfg, nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("TAXPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = "config.yaml"
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "tax-portal")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("base_url", "http://localhost:3000")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
