package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	Webhook WebhookConfig

	// Public submission throttling, per client IP
	SubmissionRateLimit  int
	SubmissionRateWindow time.Duration

	// Screenshot paths are joined onto this base when building webhook payloads
	ScreenshotBaseURL string

	// Amounts are stored in the smallest currency unit; the exponent converts
	// them for display (2 => 2397 is 23.97)
	CurrencyExponent int32

	// Monitoring
	EnableMetrics bool
	OTLPEndpoint  string
	ServiceName   string
}

type WebhookConfig struct {
	URL         string
	Secret      string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration

	// memory or redis
	Queue   string
	Workers int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("redis.url", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("pubnub.publish_key", "")
	v.SetDefault("pubnub.subscribe_key", "")
	v.SetDefault("pubnub.secret_key", "")
	v.SetDefault("pubnub.user_id", "ticket-portal")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.max_attempts", 3)
	v.SetDefault("webhook.backoff", "1s")
	v.SetDefault("webhook.queue", "memory")
	v.SetDefault("webhook.workers", 4)

	v.SetDefault("submission.rate_limit", 10)
	v.SetDefault("submission.rate_window", "1m")

	v.SetDefault("screenshot.base_url", "")
	v.SetDefault("currency.exponent", 0)

	v.SetDefault("enable_metrics", true)
	v.SetDefault("otel.exporter.otlp.endpoint", "")
	v.SetDefault("service.name", "ticket-portal")
}

// LoadConfig reads defaults, then config.yaml from the working directory if
// present, then environment variables. WEBHOOK_URL overrides webhook.url.
func LoadConfig() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("Error reading config file: %v", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Environment: v.GetString("environment"),

		RedisURL:      v.GetString("redis.url"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),

		PubNubPublishKey:   v.GetString("pubnub.publish_key"),
		PubNubSubscribeKey: v.GetString("pubnub.subscribe_key"),
		PubNubSecretKey:    v.GetString("pubnub.secret_key"),
		PubNubUserID:       v.GetString("pubnub.user_id"),

		Webhook: WebhookConfig{
			URL:         v.GetString("webhook.url"),
			Secret:      v.GetString("webhook.secret"),
			Timeout:     v.GetDuration("webhook.timeout"),
			MaxAttempts: v.GetInt("webhook.max_attempts"),
			Backoff:     v.GetDuration("webhook.backoff"),
			Queue:       strings.ToLower(v.GetString("webhook.queue")),
			Workers:     v.GetInt("webhook.workers"),
		},

		SubmissionRateLimit:  v.GetInt("submission.rate_limit"),
		SubmissionRateWindow: v.GetDuration("submission.rate_window"),

		ScreenshotBaseURL: strings.TrimRight(v.GetString("screenshot.base_url"), "/"),
		CurrencyExponent:  v.GetInt32("currency.exponent"),

		EnableMetrics: v.GetBool("enable_metrics"),
		OTLPEndpoint:  v.GetString("otel.exporter.otlp.endpoint"),
		ServiceName:   v.GetString("service.name"),
	}

	if cfg.Webhook.MaxAttempts < 1 {
		cfg.Webhook.MaxAttempts = 1
	}
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Webhook.Workers < 1 {
		cfg.Webhook.Workers = 1
	}
	return cfg
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
