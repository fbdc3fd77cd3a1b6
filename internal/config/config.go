package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "fluxia/common/config"
)

// Config fluxia HTTP service settings, read from the environment.
type Config struct {
	HTTP struct {
		Addr         string
		PprofEnabled bool
	}
	Database commoncfg.DatabaseConfig
	Redis    commoncfg.RedisConfig
	Log      struct {
		Level  string
		Format string
	}
	App     AppConfig
	Auth    AuthConfig
	Storage StorageConfig
	Mail    MailConfig
	MQTT    MQTTConfig
	Notify  NotifyConfig
}

type AppConfig struct {
	Timezone      string // IANA name; weekday and date of "today"
	PublicBaseURL string // origin used in emailed links
}

type AuthConfig struct {
	SessionTTL   time.Duration
	LinkTTL      time.Duration
	AdminToken   string // empty disables the admin routes
	SecureCookie bool
}

// StorageConfig object storage for profile images.
type StorageConfig struct {
	Endpoint  string // empty disables uploads
	Bucket    string
	APIKey    string
	PublicURL string
}

// MailConfig transactional email API; empty endpoint logs links instead.
type MailConfig struct {
	Endpoint string
	APIKey   string
	From     string
}

type MQTTConfig struct {
	Enabled bool
	commoncfg.MQTTConfig
	TopicPrefix string
}

// NotifyConfig background "questions pending" dispatcher.
type NotifyConfig struct {
	Enabled  bool
	Interval time.Duration
	Stream   string // Redis stream; empty disables stream publishing
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.PprofEnabled = parseBool(getEnv("PPROF_ENABLED", "false"), false)

	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "fluxia",
		SSLMode:  "disable",
		MaxConns: 25,
		MaxIdle:  5,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.App.Timezone = getEnv("APP_TIMEZONE", "UTC")
	cfg.App.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/")

	cfg.Auth.SessionTTL = parseDuration(getEnv("SESSION_TTL", "168h"), 7*24*time.Hour)
	cfg.Auth.LinkTTL = parseDuration(getEnv("MAGIC_LINK_TTL", "1h"), time.Hour)
	cfg.Auth.AdminToken = getEnv("ADMIN_TOKEN", "")
	cfg.Auth.SecureCookie = strings.HasPrefix(cfg.App.PublicBaseURL, "https://")

	cfg.Storage.Endpoint = strings.TrimRight(getEnv("STORAGE_ENDPOINT", ""), "/")
	cfg.Storage.Bucket = getEnv("STORAGE_BUCKET", "profile-images")
	cfg.Storage.APIKey = getEnv("STORAGE_API_KEY", "")
	cfg.Storage.PublicURL = strings.TrimRight(getEnv("STORAGE_PUBLIC_URL", cfg.Storage.Endpoint+"/object/public"), "/")

	cfg.Mail.Endpoint = getEnv("MAIL_ENDPOINT", "")
	cfg.Mail.APIKey = getEnv("MAIL_API_KEY", "")
	cfg.Mail.From = getEnv("MAIL_FROM", "Fluxia <no-reply@fluxia.local>")

	cfg.MQTT.Enabled = parseBool(getEnv("MQTT_ENABLED", "false"), false)
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "fluxia"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = strings.TrimRight(getEnv("MQTT_TOPIC_PREFIX", "fluxia"), "/")

	cfg.Notify.Enabled = parseBool(getEnv("NOTIFY_ENABLED", "true"), true)
	cfg.Notify.Interval = parseDuration(getEnv("NOTIFY_INTERVAL", "15m"), 15*time.Minute)
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "fluxia:notifications")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
