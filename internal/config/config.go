package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Client    ClientConfig
	Sync      SyncConfig
	Cache     CacheConfig
	Store     StoreConfig
	Server    ServerConfig
	Database  DatabaseConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ClientConfig struct {
	ProxyURL      string
	SigningSecret string
	FeedURL       string
	TokenTTL      time.Duration
}

type SyncConfig struct {
	MaxRetries     int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
	BeaconDelay    time.Duration
	BeaconTimeout  time.Duration
	Cooldown       time.Duration
}

type CacheConfig struct {
	NameIndexTTL   time.Duration
	HistoryTTL     time.Duration
	ReadTimeout    time.Duration
	NameIndexLimit int
	HistoryLimit   int
}

type StoreConfig struct {
	Path         string
	InMemory     bool
	SyncWrites   bool
	HistoryLimit int
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxConnections  int
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type LoggingConfig struct {
	Level string
	Mode  string
}

func Load() (*Config, error) {
	godotenv.Load()

	durations := map[string]struct {
		key string
		def string
	}{
		"token":       {"PROXY_TOKEN_TTL", "5m"},
		"base":        {"SYNC_BASE_DELAY", "1s"},
		"attempt":     {"SYNC_ATTEMPT_TIMEOUT", "5s"},
		"beacon":      {"SYNC_BEACON_DELAY", "2s"},
		"beaconLimit": {"SYNC_BEACON_TIMEOUT", "30s"},
		"cooldown":    {"SYNC_COOLDOWN", "5s"},
		"names":       {"CACHE_NAME_INDEX_TTL", "5m"},
		"history":     {"CACHE_HISTORY_TTL", "2m"},
		"read":        {"CACHE_READ_TIMEOUT", "8s"},
	}

	parsed := make(map[string]time.Duration, len(durations))
	for name, d := range durations {
		v, err := getEnvAsDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		parsed[name] = v
	}

	return &Config{
		Client: ClientConfig{
			ProxyURL:      getEnv("PROXY_URL", "http://localhost:8080/exec"),
			SigningSecret: getEnv("PROXY_SIGNING_SECRET", ""),
			FeedURL:       getEnv("FEED_URL", "ws://localhost:8080/ws"),
			TokenTTL:      parsed["token"],
		},
		Sync: SyncConfig{
			MaxRetries:     getEnvAsInt("SYNC_MAX_RETRIES", 2),
			BaseDelay:      parsed["base"],
			AttemptTimeout: parsed["attempt"],
			BeaconDelay:    parsed["beacon"],
			BeaconTimeout:  parsed["beaconLimit"],
			Cooldown:       parsed["cooldown"],
		},
		Cache: CacheConfig{
			NameIndexTTL:   parsed["names"],
			HistoryTTL:     parsed["history"],
			ReadTimeout:    parsed["read"],
			NameIndexLimit: getEnvAsInt("CACHE_NAME_INDEX_LIMIT", 200),
			HistoryLimit:   getEnvAsInt("CACHE_HISTORY_LIMIT", 500),
		},
		Store: StoreConfig{
			Path:         getEnv("STORE_PATH", defaultStorePath()),
			InMemory:     getEnvAsBool("STORE_IN_MEMORY", false),
			SyncWrites:   getEnvAsBool("STORE_SYNC_WRITES", true),
			HistoryLimit: getEnvAsInt("HISTORY_LIMIT", 100),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "readiness"),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			MaxConnections:  getEnvAsInt("WS_MAX_CONN", 100),
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingPeriod:      54 * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnvAsList("CORS_ALLOWED_METHODS", "GET,OPTIONS"),
			AllowedHeaders: getEnvAsList("CORS_ALLOWED_HEADERS", "Content-Type"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Mode:  getEnv("LOG_MODE", getEnv("ENV", "development")),
		},
	}, nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rlsync"
	}
	return filepath.Join(home, ".rlsync")
}

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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvAsList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
