package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                    string `yaml:"port"`
	Env                     string `yaml:"env"`
	FirebaseCredentialsPath string `yaml:"firebase_credentials_path"`
	PostgresConnStr         string `yaml:"postgres_conn_str"`
	MongoURI                string `yaml:"mongo_uri"`
	MongoDatabase           string `yaml:"mongo_database"`
	AuthProvider            string `yaml:"auth_provider"`
	JWTSecret               string `yaml:"jwt_secret"`
	LogLevel                string `yaml:"log_level"`
	LogFormat               string `yaml:"log_format"`
	NodeID                  int64  `yaml:"node_id"`

	ActivityWindow     time.Duration `yaml:"notification_activity_window"`
	HighlightLock      time.Duration `yaml:"highlight_lock_duration"`
	HighlightMaxAge    time.Duration `yaml:"highlight_max_age"`
	PurgeRetention     time.Duration `yaml:"purge_retention"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	WorkerPollInterval time.Duration `yaml:"worker_poll_interval"`

	EtcdEndpoints      []string `yaml:"etcd_endpoints"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Port:               "8080",
		Env:                "development",
		MongoDatabase:      "letterbox",
		AuthProvider:       "jwt",
		LogLevel:           "info",
		LogFormat:          "auto",
		ActivityWindow:     3 * time.Hour,
		HighlightLock:      24 * time.Hour,
		PurgeRetention:     30 * 24 * time.Hour,
		SweepInterval:      time.Hour,
		WorkerPollInterval: time.Second,
		RateLimitPerMinute: 60,
	}
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE, then the
// environment. Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.FirebaseCredentialsPath = getEnv("FIREBASE_CREDENTIALS_PATH", cfg.FirebaseCredentialsPath)
	cfg.PostgresConnStr = getEnv("POSTGRES_CONN_STR", cfg.PostgresConnStr)
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)
	cfg.AuthProvider = getEnv("AUTH_PROVIDER", cfg.AuthProvider)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		cfg.EtcdEndpoints = splitList(v)
	}

	var err error
	if cfg.NodeID, err = getInt64("NODE_ID", cfg.NodeID); err != nil {
		return err
	}
	rate, err := getInt64("RATE_LIMIT_PER_MINUTE", int64(cfg.RateLimitPerMinute))
	if err != nil {
		return err
	}
	cfg.RateLimitPerMinute = int(rate)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"NOTIFICATION_ACTIVITY_WINDOW", &cfg.ActivityWindow},
		{"HIGHLIGHT_LOCK_DURATION", &cfg.HighlightLock},
		{"HIGHLIGHT_MAX_AGE", &cfg.HighlightMaxAge},
		{"PURGE_RETENTION", &cfg.PurgeRetention},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"WORKER_POLL_INTERVAL", &cfg.WorkerPollInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

// Validate rejects settings the core cannot run with.
func (c *Config) Validate() error {
	positive := map[string]time.Duration{
		"notification_activity_window": c.ActivityWindow,
		"highlight_lock_duration":      c.HighlightLock,
		"purge_retention":              c.PurgeRetention,
		"sweep_interval":               c.SweepInterval,
		"worker_poll_interval":         c.WorkerPollInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.HighlightMaxAge < 0 {
		return fmt.Errorf("highlight_max_age must not be negative")
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("node_id must be between 0 and 1023, got %d", c.NodeID)
	}
	switch c.AuthProvider {
	case "jwt", "firebase":
	default:
		return fmt.Errorf("auth_provider must be jwt or firebase, got %q", c.AuthProvider)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
