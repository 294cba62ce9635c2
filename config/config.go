package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// DefaultPath is where the server looks for its configuration file.
const DefaultPath = "/etc/httpd.conf"

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

const (
	DefaultThreadLimit  = 4
	DefaultAddress      = ":80"
	DefaultAdminAddress = ":9090"
	DefaultIOTimeout    = "15s"
	DefaultServerName   = "Go Static Server"
)

type Config struct {
	ThreadLimit  int    `mapstructure:"thread_limit"`
	DocumentRoot string `mapstructure:"document_root"`
	Address      string `mapstructure:"address"`
	AdminAddress string `mapstructure:"admin_address"`
	Environment  string `mapstructure:"environment"`
	LogLevel     string `mapstructure:"log_level"`
	IOTimeout    string `mapstructure:"io_timeout"`
	ServerName   string `mapstructure:"server_name"`
}

// Load reads the key/value file at path. Each line is "key value"; unknown
// keys are ignored. HTTPD_<KEY> environment variables take precedence over
// the file. A missing or unreadable file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()

	v.SetDefault("thread_limit", DefaultThreadLimit)
	v.SetDefault("document_root", "")
	v.SetDefault("address", DefaultAddress)
	v.SetDefault("admin_address", DefaultAdminAddress)
	v.SetDefault("environment", EnvDev)
	v.SetDefault("log_level", LogLevelInfo)
	v.SetDefault("io_timeout", DefaultIOTimeout)
	v.SetDefault("server_name", DefaultServerName)

	v.SetConfigFile(path)
	v.SetConfigType("properties")

	v.SetEnvPrefix("httpd")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		slog.Error("failed to read config file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.DocumentRoot = NormalizeRoot(cfg.DocumentRoot)
	cfg.Address = NormalizeAddress(cfg.Address)
	cfg.AdminAddress = NormalizeAddress(cfg.AdminAddress)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

// NormalizeRoot trims surrounding whitespace and makes root end with exactly
// one path separator. An empty root stays empty.
func NormalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}

	sep := string(os.PathSeparator)
	trimmed := strings.TrimRight(root, sep)

	return trimmed + sep
}

// NormalizeAddress turns a bare port into ":port". The file format treats a
// colon right after the key as a separator, so "address :8080" reads as
// "8080".
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.ContainsRune(addr, ':') {
		return addr
	}
	if _, err := strconv.Atoi(addr); err != nil {
		return addr
	}
	return ":" + addr
}

// Timeout returns the parsed per-connection I/O deadline. Zero means none.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.IOTimeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ThreadLimit,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&c.DocumentRoot,
			validation.Required,
			validation.By(validateDocumentRoot),
		),
		validation.Field(&c.Address,
			validation.Required,
			validation.By(validateHostPort),
		),
		validation.Field(&c.AdminAddress,
			validation.By(validateHostPort),
		),
		validation.Field(&c.Environment,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&c.IOTimeout,
			validation.Required,
			validation.By(validateDuration),
		),
		validation.Field(&c.ServerName,
			validation.Required,
			is.PrintableASCII,
		),
	)
}

func validateDocumentRoot(value interface{}) error {
	root, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if root == "" {
		return nil
	}

	if !strings.HasPrefix(root, string(os.PathSeparator)) {
		return validation.NewError("validation_relative_root", "document root must be an absolute path")
	}

	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if err := is.Port.Validate(port); err != nil {
		return validation.NewError("validation_invalid_port", "invalid port")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	if d < 0 {
		return validation.NewError("validation_negative_duration", "duration cannot be negative")
	}

	return nil
}
