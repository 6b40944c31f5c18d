package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Events  EventsConfig  `yaml:"events"`
	JobAPI  JobAPIConfig  `yaml:"job_api"`
	Printer PrinterConfig `yaml:"printer"`
	Print   PrintConfig   `yaml:"print"`
	History HistoryConfig `yaml:"history"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type EventsConfig struct {
	Transport    string        `yaml:"transport"`
	URL          string        `yaml:"url"`
	Subject      string        `yaml:"subject"`
	ReconnectMin time.Duration `yaml:"reconnect_min"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

type JobAPIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type PrinterConfig struct {
	Hardware HardwareConfig `yaml:"hardware"`
	Spooler  SpoolerConfig  `yaml:"spooler"`
}

type HardwareConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Address           string        `yaml:"address"`
	Port              int           `yaml:"port"`
	PaperProfile      string        `yaml:"paper_profile"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

type SpoolerConfig struct {
	Command      string   `yaml:"command"`
	Args         []string `yaml:"args"`
	PaperProfile string   `yaml:"paper_profile"`
}

type PrintConfig struct {
	AutoPrint         bool                 `yaml:"auto_print"`
	CompletionTimeout time.Duration        `yaml:"completion_timeout"`
	QueueSize         int                  `yaml:"queue_size"`
	Layout            receipt.LayoutConfig `yaml:"layout"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Events: EventsConfig{
			Transport:    "websocket",
			Subject:      "printjobs.events",
			ReconnectMin: time.Second,
			ReconnectMax: 30 * time.Second,
		},
		JobAPI: JobAPIConfig{
			Timeout:    15 * time.Second,
			MaxRetries: 3,
		},
		Printer: PrinterConfig{
			Hardware: HardwareConfig{
				Port:              9100,
				PaperProfile:      string(receipt.ProfileThermal80),
				DialTimeout:       5 * time.Second,
				HeartbeatInterval: 30 * time.Second,
			},
			Spooler: SpoolerConfig{
				Command:      "lp",
				PaperProfile: string(receipt.ProfileStandard),
			},
		},
		Print: PrintConfig{
			AutoPrint:         true,
			CompletionTimeout: 12 * time.Second,
			QueueSize:         64,
			Layout: receipt.LayoutConfig{
				PaperProfile: receipt.ProfileThermal80,
				Title:        "Order Receipt",
				ShowDate:     true,
				ShowOrderID:  true,
				ShowQuantity: true,
				ShowPrice:    true,
			},
		},
		History: HistoryConfig{
			Path: "./data/history.db",
		},
		Auth: AuthConfig{
			Username: "operator",
			TokenTTL: 12 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func LoadFromEnv() *Config {
	cfg := defaults()

	if v := os.Getenv("PRINTAGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTAGENT_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}

	if v := os.Getenv("PRINTAGENT_JOB_API_URL"); v != "" {
		cfg.JobAPI.BaseURL = v
	}

	if v := os.Getenv("PRINTAGENT_JOB_API_TOKEN"); v != "" {
		cfg.JobAPI.Token = v
	}

	if v := os.Getenv("PRINTAGENT_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("PRINTAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	validTransports := map[string]bool{
		"websocket": true,
		"nats":      true,
	}

	if !validTransports[c.Events.Transport] {
		return fmt.Errorf("invalid events transport: %s (valid: websocket, nats)", c.Events.Transport)
	}

	if c.Events.URL == "" {
		return fmt.Errorf("events url is required")
	}

	if c.Events.ReconnectMin <= 0 || c.Events.ReconnectMax < c.Events.ReconnectMin {
		return fmt.Errorf("events reconnect window must satisfy 0 < min <= max")
	}

	if c.JobAPI.BaseURL == "" {
		return fmt.Errorf("job api base url is required")
	}

	if c.JobAPI.MaxRetries < 0 {
		return fmt.Errorf("job api max retries must be non-negative")
	}

	if c.Printer.Hardware.Enabled {
		if c.Printer.Hardware.Address == "" {
			return fmt.Errorf("hardware printer address is required when enabled")
		}
		if c.Printer.Hardware.Port < 1 || c.Printer.Hardware.Port > 65535 {
			return fmt.Errorf("hardware printer port must be between 1 and 65535, got %d", c.Printer.Hardware.Port)
		}
		if !receipt.PaperProfile(c.Printer.Hardware.PaperProfile).Valid() {
			return fmt.Errorf("invalid hardware paper profile: %s", c.Printer.Hardware.PaperProfile)
		}
	}

	if c.Printer.Spooler.Command == "" {
		return fmt.Errorf("spooler command is required")
	}

	if !receipt.PaperProfile(c.Printer.Spooler.PaperProfile).Valid() {
		return fmt.Errorf("invalid spooler paper profile: %s", c.Printer.Spooler.PaperProfile)
	}

	if c.Print.CompletionTimeout <= 0 {
		return fmt.Errorf("completion timeout must be positive")
	}

	if c.Print.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1")
	}

	if !c.Print.Layout.PaperProfile.Valid() {
		return fmt.Errorf("invalid layout paper profile: %s", c.Print.Layout.PaperProfile)
	}

	if c.History.Path == "" {
		return fmt.Errorf("history path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required")
	}

	if c.Auth.Username == "" {
		return fmt.Errorf("auth username is required")
	}

	if c.Auth.PasswordHash == "" {
		return fmt.Errorf("auth password hash is required")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}

	return nil
}
