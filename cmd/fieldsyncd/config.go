package main

import (
	"strconv"
	"time"
)

// Config holds all daemon configuration.
type Config struct {
	// Server settings
	Host        string
	Port        int
	Environment string
	LogLevel    string

	// Device identity
	DeviceID     string
	Inspector    string
	TemplatePath string

	// Local store settings
	DataPath string

	// Remote settings
	RemoteProvider string // "http" or "postgres"
	RemoteURL      string
	RemoteToken    string
	RemoteDSN      string

	// Blob storage settings
	StorageProvider  string
	StorageLocalPath string
	StorageLocalURL  string
	StorageS3Bucket  string
	StorageS3Region  string
	StorageS3BaseURL string

	// Monitor settings
	MonitorPollInterval  time.Duration
	MonitorProbeURL      string
	MonitorSaveData      bool
	BatteryPath          string
	BatteryOverrideLevel float64

	// Adaptation settings
	NormalMaxDimension    int
	NormalQuality         float64
	EmergencyMaxDimension int
	EmergencyQuality      float64

	// Sync settings
	SyncWorkerCount     int
	SyncPollInterval    time.Duration
	SyncDeliveryTimeout time.Duration
	SyncMaxRetries      int
	SyncBackoffBase     time.Duration
	SyncRateLimit       float64

	// Workflow settings
	AutoSaveInterval time.Duration

	// Identity cache settings
	IdentityCacheTTL time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		// Server settings
		Host:        envString(getenv, "SERVER_HOST", "localhost"),
		Port:        envInt(getenv, "SERVER_PORT", 8080),
		Environment: envString(getenv, "ENVIRONMENT", "dev"),
		LogLevel:    envString(getenv, "LOG_LEVEL", "info"),

		// Device identity
		DeviceID:     envString(getenv, "DEVICE_ID", "device-1"),
		Inspector:    envString(getenv, "INSPECTOR_ID", ""),
		TemplatePath: envString(getenv, "TEMPLATE_PATH", "./templates.json"),

		// Local store settings
		DataPath: envString(getenv, "DATA_PATH", "./data/fieldsync.db"),

		// Remote settings
		RemoteProvider: envString(getenv, "REMOTE_PROVIDER", "http"),
		RemoteURL:      envString(getenv, "REMOTE_URL", "http://localhost:9090"),
		RemoteToken:    envString(getenv, "REMOTE_TOKEN", ""),
		RemoteDSN:      envString(getenv, "REMOTE_DSN", ""),

		// Blob storage settings
		StorageProvider:  envString(getenv, "STORAGE_PROVIDER", "local"),
		StorageLocalPath: envString(getenv, "STORAGE_LOCAL_PATH", "./uploads"),
		StorageLocalURL:  envString(getenv, "STORAGE_LOCAL_URL", "http://localhost:8080/uploads"),
		StorageS3Bucket:  envString(getenv, "STORAGE_S3_BUCKET", ""),
		StorageS3Region:  envString(getenv, "STORAGE_S3_REGION", "us-east-1"),
		StorageS3BaseURL: envString(getenv, "STORAGE_S3_BASE_URL", ""),

		// Monitor settings
		MonitorPollInterval:  envDuration(getenv, "MONITOR_POLL_INTERVAL", 15*time.Second),
		MonitorProbeURL:      envString(getenv, "MONITOR_PROBE_URL", "http://localhost:9090/healthz"),
		MonitorSaveData:      envBool(getenv, "MONITOR_SAVE_DATA", false),
		BatteryPath:          envString(getenv, "BATTERY_PATH", "/sys/class/power_supply/BAT0"),
		BatteryOverrideLevel: envFloat(getenv, "BATTERY_OVERRIDE_LEVEL", 0.15),

		// Adaptation settings
		NormalMaxDimension:    envInt(getenv, "MEDIA_MAX_DIMENSION", 1200),
		NormalQuality:         envFloat(getenv, "MEDIA_QUALITY", 0.8),
		EmergencyMaxDimension: envInt(getenv, "MEDIA_EMERGENCY_MAX_DIMENSION", 800),
		EmergencyQuality:      envFloat(getenv, "MEDIA_EMERGENCY_QUALITY", 0.6),

		// Sync settings
		SyncWorkerCount:     envInt(getenv, "SYNC_WORKER_COUNT", 2),
		SyncPollInterval:    envDuration(getenv, "SYNC_POLL_INTERVAL", 5*time.Second),
		SyncDeliveryTimeout: envDuration(getenv, "SYNC_DELIVERY_TIMEOUT", 30*time.Second),
		SyncMaxRetries:      envInt(getenv, "SYNC_MAX_RETRIES", 3),
		SyncBackoffBase:     envDuration(getenv, "SYNC_BACKOFF_BASE", time.Second),
		SyncRateLimit:       envFloat(getenv, "SYNC_RATE_LIMIT", 10),

		// Workflow settings
		AutoSaveInterval: envDuration(getenv, "AUTOSAVE_INTERVAL", 30*time.Second),

		// Identity cache settings
		IdentityCacheTTL: envDuration(getenv, "IDENTITY_CACHE_TTL", 15*time.Minute),
	}

	return cfg, nil
}

// Helper functions for loading environment variables with defaults.

func envString(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(getenv func(string) string, key string, defaultValue int) int {
	if value := getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func envFloat(getenv func(string) string, key string, defaultValue float64) float64 {
	if value := getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func envBool(getenv func(string) string, key string, defaultValue bool) bool {
	if value := getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func envDuration(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	if value := getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
