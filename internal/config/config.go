package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PLUGINHUB"

// Config holds all configuration for the service.
// Values are loaded by Viper from an optional config file and environment
// variables prefixed with PLUGINHUB_ (e.g. PLUGINHUB_JWT_SECRET).
type Config struct {
	Port      string `mapstructure:"port"`
	DBPath    string `mapstructure:"db_path"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	JWTSecret      string        `mapstructure:"jwt_secret"`
	PluginTokenTTL time.Duration `mapstructure:"plugin_token_ttl"`

	StorageBackend string `mapstructure:"storage_backend"`
	StorageRoot    string `mapstructure:"storage_root"`
	S3Endpoint     string `mapstructure:"s3_endpoint"`
	S3Bucket       string `mapstructure:"s3_bucket"`
	S3Region       string `mapstructure:"s3_region"`
	S3AccessKey    string `mapstructure:"s3_access_key"`
	S3SecretKey    string `mapstructure:"s3_secret_key"`
	S3Prefix       string `mapstructure:"s3_prefix"`

	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	StripeCurrency      string `mapstructure:"stripe_currency"`

	PostmarkServerToken string `mapstructure:"postmark_server_token"`
	EmailFrom           string `mapstructure:"email_from"`

	DownloadLinkTTL time.Duration `mapstructure:"download_link_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	BackupPassphrase string        `mapstructure:"backup_passphrase"`
	BackupInterval   time.Duration `mapstructure:"backup_interval"`
	BackupKeep       int           `mapstructure:"backup_keep"`

	OperatorClients []string `mapstructure:"operator_clients"`
}

var defaults = map[string]any{
	"port":                  "8080",
	"db_path":               "pluginhub.db",
	"log_level":             "info",
	"log_format":            "text",
	"jwt_secret":            "",
	"plugin_token_ttl":      "1h",
	"storage_backend":       "local",
	"storage_root":          "./data",
	"s3_endpoint":           "",
	"s3_bucket":             "",
	"s3_region":             "us-east-1",
	"s3_access_key":         "",
	"s3_secret_key":         "",
	"s3_prefix":             "",
	"stripe_secret_key":     "",
	"stripe_webhook_secret": "",
	"stripe_currency":       "usd",
	"postmark_server_token": "",
	"email_from":            "",
	"download_link_ttl":     "0s",
	"cleanup_interval":      "1h",
	"backup_passphrase":     "",
	"backup_interval":       "0s",
	"backup_keep":           7,
	"operator_clients":      []string{},
}

// Load reads configuration from the optional file at path and from the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	return cfg, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET is required", envPrefix)
	}
	switch c.StorageBackend {
	case "local":
		if c.StorageRoot == "" {
			return fmt.Errorf("storage_root is required for the local backend")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("s3 backend requires s3_bucket, s3_access_key and s3_secret_key")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.BackupKeep < 0 {
		return fmt.Errorf("backup_keep must not be negative")
	}
	if c.PluginTokenTTL <= 0 {
		return fmt.Errorf("plugin_token_ttl must be positive")
	}
	return nil
}

// ReceiptsEnabled reports whether purchase receipts can be mailed.
func (c Config) ReceiptsEnabled() bool {
	return c.PostmarkServerToken != "" && c.EmailFrom != ""
}

// PaymentsEnabled reports whether Stripe is configured.
func (c Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != ""
}
