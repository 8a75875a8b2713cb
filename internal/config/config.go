// Package config provides configuration loading and validation for the worker and its commands.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
// Values come from defaults, then an optional config file, then the environment.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Gemini     GeminiConfig     `yaml:"gemini" toml:"gemini"`
	FileServer FileServerConfig `yaml:"file_server" toml:"file_server"`
	Processing ProcessingConfig `yaml:"processing" toml:"processing"`
	Callback   CallbackConfig   `yaml:"callback" toml:"callback"`
	Events     EventsConfig     `yaml:"events" toml:"events"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Log        LogConfig        `yaml:"log" toml:"log"`
}

// DatabaseConfig selects the SQL driver and connection parameters
type DatabaseConfig struct {
	Driver   string `yaml:"driver" toml:"driver" validate:"oneof=mysql pgx sqlite"`
	URL      string `yaml:"url" toml:"url"` // full DSN, overrides the fields below
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Name     string `yaml:"name" toml:"name" validate:"required"`
}

// GeminiConfig configures the extraction oracle
type GeminiConfig struct {
	APIKey      string  `yaml:"api_key" toml:"api_key"`
	Model       string  `yaml:"model" toml:"model" validate:"required"`
	Temperature float32 `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int32   `yaml:"max_tokens" toml:"max_tokens" validate:"gt=0"`
}

// FileServerConfig configures access to the PHP file server
type FileServerConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url" validate:"required,url"`
	Token   string        `yaml:"token" toml:"token"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" validate:"gt=0"`
	TempDir string        `yaml:"temp_dir" toml:"temp_dir"`
}

// ProcessingConfig holds the polling and retry policy
type ProcessingConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" toml:"poll_interval" validate:"gt=0"`
	MaxAttempts   int           `yaml:"max_attempts" toml:"max_attempts" validate:"min=1"`
	MaxEmptyPolls int           `yaml:"max_empty_polls" toml:"max_empty_polls" validate:"min=1"`
	// StaleAfter is how old a claim must be before startup recovery releases it
	StaleAfter    time.Duration `yaml:"stale_after" toml:"stale_after" validate:"gt=0"`
	Endorsement   []string      `yaml:"endorsement" toml:"endorsement"`
}

// CallbackConfig configures the webhook used by one-shot commands
type CallbackConfig struct {
	URL     string        `yaml:"url" toml:"url" validate:"omitempty,url"`
	Token   string        `yaml:"token" toml:"token"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" validate:"gt=0"`
}

// EventsConfig configures state-change notifications. An empty URL disables them.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url" toml:"amqp_url"`
	Exchange string `yaml:"exchange" toml:"exchange" validate:"required"`
}

// ServerConfig configures the review API
type ServerConfig struct {
	Port      int           `yaml:"port" toml:"port" validate:"gt=0,lte=65535"`
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl" toml:"token_ttl" validate:"gt=0"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console json"`
}

// Defaults returns the documented default configuration
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "mysql",
			Host:   "localhost",
			Port:   3306,
			User:   "root",
			Name:   "by_bot_app",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-1.5-flash",
			Temperature: 0.1,
			MaxTokens:   4000,
		},
		FileServer: FileServerConfig{
			BaseURL: "http://localhost/bybot_app/admin",
			Timeout: 300 * time.Second,
		},
		Processing: ProcessingConfig{
			PollInterval:  30 * time.Second,
			MaxAttempts:   3,
			MaxEmptyPolls: 3,
			StaleAfter:    time.Hour,
		},
		Callback: CallbackConfig{
			Timeout: 120 * time.Second,
		},
		Events: EventsConfig{
			Exchange: "bybot.events",
		},
		Server: ServerConfig{
			Port:     8080,
			TokenTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the optional file at path and the environment
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeFile decodes the file onto cfg; keys absent from the file keep their current values
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to parse config TOML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASS")
	setString(&cfg.Database.Name, "DB_NAME")

	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "GEMINI_MODEL")
	if v, ok := lookup("GEMINI_TEMPERATURE"); ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Gemini.Temperature = float32(f)
		}
	}
	if v, ok := lookup("GEMINI_MAX_TOKENS"); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.Gemini.MaxTokens = int32(n)
		}
	}

	setString(&cfg.FileServer.BaseURL, "SERVER_BASE_URL")
	setString(&cfg.FileServer.Token, "BOT_API_TOKEN")
	setDuration(&cfg.FileServer.Timeout, "REQUEST_TIMEOUT")
	setString(&cfg.FileServer.TempDir, "TEMP_DIR")

	setDuration(&cfg.Processing.PollInterval, "POLL_INTERVAL")
	setInt(&cfg.Processing.MaxAttempts, "MAX_RETRIES")
	setInt(&cfg.Processing.MaxEmptyPolls, "MAX_EMPTY_POLLS")
	setDuration(&cfg.Processing.StaleAfter, "STALE_AFTER")

	setString(&cfg.Callback.URL, "BYBOT_API_URL")
	setString(&cfg.Callback.Token, "BYBOT_ACCESS_TOKEN")
	setDuration(&cfg.Callback.Timeout, "CALLBACK_TIMEOUT")

	setString(&cfg.Events.AMQPURL, "AMQP_URL")
	setString(&cfg.Events.Exchange, "AMQP_EXCHANGE")

	setInt(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.JWTSecret, "JWT_SECRET")
	setDuration(&cfg.Server.TokenTTL, "JWT_TTL")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
}

// Validate checks value ranges and formats. Missing secrets are not errors; see Warnings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// Warnings lists missing secrets. The first call that needs one will fail instead.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Gemini.APIKey == "" {
		warnings = append(warnings, "GEMINI_API_KEY is not set; extraction calls will fail")
	}
	if c.FileServer.Token == "" {
		warnings = append(warnings, "BOT_API_TOKEN is not set; file server calls will be rejected")
	}
	return warnings
}

// DSN returns the driver-specific data source name
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	switch d.Driver {
	case "pgx":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.Name,
		}
		return u.String()
	case "sqlite":
		return d.Name
	default:
		mc := mysql.NewConfig()
		mc.User = d.User
		mc.Passwd = d.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		mc.DBName = d.Name
		mc.ParseTime = true
		// report matched rather than changed rows so conditional updates can be checked
		mc.ClientFoundRows = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN()
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setDuration accepts Go durations ("45s") or a bare number of seconds ("45")
func setDuration(dst *time.Duration, key string) {
	v, ok := lookup(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}
