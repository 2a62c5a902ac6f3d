package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string
	StoreDriver string
	Timezone    string

	LogLevel  string
	LogFormat string

	FanoutWorkers int
	FanoutBuffer  int
	FanoutTimeout time.Duration

	SMTP SMTPConfig

	TextProvider     string
	TextWebhookURL   string
	TextWebhookToken string

	TTSURL     string
	TTSTimeout time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisChannel     string
	AnnounceCacheTTL time.Duration

	RateLimitPerMinute int
	RateLimitBurst     int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func Load() Config {
	return Config{
		Port:        readString("PORT", "8080"),
		DatabaseURL: os.Getenv("DB_DSN"),
		StoreDriver: strings.ToLower(readString("STORE_DRIVER", "postgres")),
		Timezone:    readString("QUEUE_TIMEZONE", "Asia/Jakarta"),

		LogLevel:  readString("LOG_LEVEL", "info"),
		LogFormat: readString("LOG_FORMAT", "text"),

		FanoutWorkers: readInt("FANOUT_WORKERS", 4),
		FanoutBuffer:  readInt("FANOUT_BUFFER", 256),
		FanoutTimeout: readDurationSeconds("FANOUT_TIMEOUT_SECONDS", 10),

		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     readInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     readString("SMTP_FROM", "antrian@localhost"),
		},

		TextProvider:     strings.ToLower(readString("NOTIF_TEXT_PROVIDER", "log")),
		TextWebhookURL:   os.Getenv("NOTIF_TEXT_WEBHOOK_URL"),
		TextWebhookToken: os.Getenv("NOTIF_TEXT_WEBHOOK_TOKEN"),

		TTSURL:     os.Getenv("TTS_URL"),
		TTSTimeout: readDurationSeconds("TTS_TIMEOUT_SECONDS", 5),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          readInt("REDIS_DB", 0),
		RedisChannel:     readString("REDIS_CHANNEL", "qms:events"),
		AnnounceCacheTTL: readDurationSeconds("ANNOUNCE_CACHE_TTL_SECONDS", 86400),

		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
	}
}

func readString(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
