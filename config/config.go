package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type GatewayPollConfig struct {
	PollInterval        time.Duration
	OfflineAfter        time.Duration
	CallTimeout         time.Duration
	StreamReconnectBase time.Duration
	StreamReconnectMax  time.Duration
}

type QueueConfig struct {
	ProcessInterval     time.Duration
	AutoPromoteInterval time.Duration
	MaxClaimedTasks     int
	ProcessBatchLimit   int
}

type NotificationsConfig struct {
	WebhookURL string
}

// IsConfigured returns true if outbound chat notifications are enabled
func (c NotificationsConfig) IsConfigured() bool {
	return c.WebhookURL != ""
}

type AlertConfig struct {
	WebhookURL string
	LogsURL    string
}

// IsConfigured returns true if error alerting is enabled
func (c AlertConfig) IsConfigured() bool {
	return c.WebhookURL != ""
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL        string
	DatabaseSchema     string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string // Optional with default "*"
	Environment        string

	GatewayPollConfig   GatewayPollConfig
	QueueConfig         QueueConfig
	NotificationsConfig NotificationsConfig
	AlertConfig         AlertConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	// Core required configuration
	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("POLL_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}
	offlineAfter, err := getEnvDuration("OFFLINE_AFTER", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	callTimeout, err := getEnvDuration("GATEWAY_CALL_TIMEOUT", 8*time.Second)
	if err != nil {
		return nil, err
	}
	reconnectBase, err := getEnvDuration("STREAM_RECONNECT_BASE", 5*time.Second)
	if err != nil {
		return nil, err
	}
	reconnectMax, err := getEnvDuration("STREAM_RECONNECT_MAX", 60*time.Second)
	if err != nil {
		return nil, err
	}
	processInterval, err := getEnvDuration("QUEUE_PROCESS_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	autoPromoteInterval, err := getEnvDuration("AUTO_PROMOTE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	maxClaimedTasks, err := getEnvInt("MAX_CLAIMED_TASKS", 3)
	if err != nil {
		return nil, err
	}
	processBatchLimit, err := getEnvInt("QUEUE_PROCESS_BATCH_LIMIT", 50)
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),

		GatewayPollConfig: GatewayPollConfig{
			PollInterval:        pollInterval,
			OfflineAfter:        offlineAfter,
			CallTimeout:         callTimeout,
			StreamReconnectBase: reconnectBase,
			StreamReconnectMax:  reconnectMax,
		},

		QueueConfig: QueueConfig{
			ProcessInterval:     processInterval,
			AutoPromoteInterval: autoPromoteInterval,
			MaxClaimedTasks:     maxClaimedTasks,
			ProcessBatchLimit:   processBatchLimit,
		},

		NotificationsConfig: NotificationsConfig{
			WebhookURL: os.Getenv("NOTIF_WEBHOOK_URL"),
		},

		AlertConfig: AlertConfig{
			WebhookURL: os.Getenv("ALERT_WEBHOOK_URL"),
			LogsURL:    os.Getenv("SERVER_LOGS_URL"),
		},
	}

	if config.NotificationsConfig.IsConfigured() {
		log.Printf("✅ Chat notifications configured")
	} else {
		log.Printf("⚠️ Chat notifications not configured - task notifications will be disabled")
	}

	if config.AlertConfig.IsConfigured() {
		log.Printf("✅ Error alerting configured")
	} else {
		log.Printf("⚠️ Error alerting not configured - alerts will only be logged")
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid duration: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s is not a valid integer: %w", key, err)
	}
	return n, nil
}
