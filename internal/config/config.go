package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	DB struct {
		DSN string
	}
	Directory struct {
		BaseURL string
		Token   string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	Chat struct {
		Provider      string // "whatsapp" or "telegram"
		GatewayURL    string
		GatewayToken  string
		Session       string
		BotToken      string
		RatePerSecond int
	}
	API struct {
		Port     string
		BasePath string
	}
	Dispatch struct {
		QueueSize   int
		MaxWorkers  int
		MaxAttempts int
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	// Kafka settings
	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	// Database DSN
	cfg.DB.DSN = os.Getenv("DB_DSN")

	// Employee directory collaborator
	cfg.Directory.BaseURL = os.Getenv("DIRECTORY_BASE_URL")
	cfg.Directory.Token = os.Getenv("DIRECTORY_TOKEN")

	// Email settings
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	// Chat transport settings
	cfg.Chat.Provider = os.Getenv("CHAT_PROVIDER")
	cfg.Chat.GatewayURL = os.Getenv("CHAT_GATEWAY_URL")
	cfg.Chat.GatewayToken = os.Getenv("CHAT_GATEWAY_TOKEN")
	cfg.Chat.Session = os.Getenv("CHAT_SESSION")
	cfg.Chat.BotToken = os.Getenv("CHAT_BOT_TOKEN")
	if r, err := strconv.Atoi(os.Getenv("CHAT_RATE_PER_SECOND")); err == nil {
		cfg.Chat.RatePerSecond = r
	}

	// API settings
	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	// Dispatch worker settings
	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Dispatch.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Dispatch.MaxWorkers = mw
	}
	if ma, err := strconv.Atoi(os.Getenv("MAX_ATTEMPTS")); err == nil {
		cfg.Dispatch.MaxAttempts = ma
	}

	// Logging
	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.Kafka.Broker == "" {
		missing = append(missing, "KAFKA_BROKER")
	}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Directory.BaseURL == "" {
		missing = append(missing, "DIRECTORY_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "store_events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "notification-engine"
	}
	if cfg.Chat.Provider == "" {
		cfg.Chat.Provider = "whatsapp"
	}
	if cfg.Chat.RatePerSecond == 0 {
		cfg.Chat.RatePerSecond = 20
	}
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = 500
	}
	if cfg.Dispatch.MaxWorkers == 0 {
		cfg.Dispatch.MaxWorkers = 10
	}
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 3
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
