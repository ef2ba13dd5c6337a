package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App          AppConfig
	Paths        PathsConfig
	Database     DatabaseConfig
	Valkey       ValkeyConfig
	Whatsapp     WhatsappConfig
	Realtime     RealtimeConfig
	Conversation ConversationConfig
	WorkerPool   WorkerPoolConfig
	Security     SecurityConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	RequireAuth        bool
}

type PathsConfig struct {
	Storages string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string // File path for SQLite, DB Name for Postgres
}

type ValkeyConfig struct {
	Enabled   bool
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

type WhatsappConfig struct {
	APIBaseURL  string
	APIVersion  string
	HTTPTimeout time.Duration
	// VerifyToken is used for the webhook handshake when no active connection exists.
	VerifyToken        string
	ConnectionCacheTTL time.Duration
	WebhookDedupTTL    time.Duration
}

type RealtimeConfig struct {
	PingInterval  time.Duration
	SweepInterval time.Duration
	IdleTimeout   time.Duration
}

type ConversationConfig struct {
	InactivityTimeout time.Duration
	AutoCloseSchedule string
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type SecurityConfig struct {
	SecretKey string
	TokenTTL  time.Duration
}

// Global provides access to the loaded configuration globally
var Global *Config

// LoadConfig loads configuration from Environment Variables or defaults.
func LoadConfig() (*Config, error) {
	baseDir := getEnv("APP_BASE_DIR", "storages")

	corsOrigins := []string{"http://localhost:3000", "http://localhost:3001"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	appCfg := AppConfig{
		Version:            "v1.0.0",
		Port:               getEnv("APP_PORT", "3333"),
		Debug:              getEnvBool("APP_DEBUG", false),
		Environment:        getEnv("APP_ENV", "development"),
		BasePath:           getEnv("APP_BASE_PATH", ""),
		CorsAllowedOrigins: corsOrigins,
		RequireAuth:        getEnvBool("APP_REQUIRE_AUTH", false),
	}
	if v := getEnv("APP_TRUSTED_PROXIES", ""); v != "" {
		appCfg.TrustedProxies = strings.Split(v, ",")
	}

	dbCfg := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "sqlite"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", filepath.Join(baseDir, "crm.db")),
	}

	valkeyCfg := ValkeyConfig{
		Enabled:   getEnvBool("VALKEY_ENABLED", false),
		Address:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
		Password:  getEnv("VALKEY_PASSWORD", ""),
		DB:        getEnvInt("VALKEY_DB", 0),
		KeyPrefix: getEnv("VALKEY_KEY_PREFIX", "azcrm:"),
	}

	waCfg := WhatsappConfig{
		APIBaseURL:         getEnv("WHATSAPP_API_BASE_URL", "https://graph.facebook.com"),
		APIVersion:         getEnv("WHATSAPP_API_VERSION", "v18.0"),
		HTTPTimeout:        getEnvDuration("WHATSAPP_HTTP_TIMEOUT", 20*time.Second),
		VerifyToken:        getEnv("WHATSAPP_WEBHOOK_VERIFY_TOKEN", ""),
		ConnectionCacheTTL: getEnvDuration("CONNECTION_CACHE_TTL", 30*time.Second),
		WebhookDedupTTL:    getEnvDuration("WEBHOOK_DEDUP_TTL", 24*time.Hour),
	}

	rtCfg := RealtimeConfig{
		PingInterval:  getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
		SweepInterval: getEnvDuration("WS_SWEEP_INTERVAL", 60*time.Second),
		IdleTimeout:   getEnvDuration("WS_IDLE_TIMEOUT", 5*time.Minute),
	}

	convCfg := ConversationConfig{
		InactivityTimeout: getEnvDuration("CONVERSATION_INACTIVITY_TIMEOUT", 24*time.Hour),
		AutoCloseSchedule: getEnv("CONVERSATION_AUTOCLOSE_SCHEDULE", "@every 5m"),
	}

	cfg := &Config{
		App:          appCfg,
		Paths:        PathsConfig{Storages: baseDir},
		Database:     dbCfg,
		Valkey:       valkeyCfg,
		Whatsapp:     waCfg,
		Realtime:     rtCfg,
		Conversation: convCfg,
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("MESSAGE_WORKER_POOL_SIZE", 8),
			QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 500),
		},
		Security: SecurityConfig{
			SecretKey: getEnv("APP_SECRET_KEY", "changeme_please_change_me_in_prod_12345"),
			TokenTTL:  getEnvDuration("APP_TOKEN_TTL", 24*time.Hour),
		},
	}

	Global = cfg
	return cfg, nil
}
