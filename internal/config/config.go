// Package config loads mailmerge settings from a YAML file and
// MAILMERGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dmitrymomot/mailmerge/pkg/dispatch"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch/resend"
	"github.com/dmitrymomot/mailmerge/pkg/dispatch/ses"
	"github.com/dmitrymomot/mailmerge/pkg/draft/bedrock"
	"github.com/dmitrymomot/mailmerge/pkg/ingest/s3source"
	"github.com/dmitrymomot/mailmerge/pkg/logger"
	"github.com/dmitrymomot/mailmerge/pkg/personalize"
)

// EnvPrefix is prepended to every environment override, e.g.
// MAILMERGE_SERVER_PORT or MAILMERGE_RESEND_API_KEY.
const EnvPrefix = "MAILMERGE"

// Sender providers.
const (
	ProviderLog    = "log"
	ProviderResend = "resend"
	ProviderSES    = "ses"
)

// ErrInvalid is matched by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Log      logger.Config       `mapstructure:"log"`
	Sentry   logger.SentryConfig `mapstructure:"sentry"`
	Sender   SenderConfig        `mapstructure:"sender"`
	Resend   resend.Config       `mapstructure:"resend"`
	SES      ses.Config          `mapstructure:"ses"`
	S3       s3source.Config     `mapstructure:"s3"`
	Bedrock  BedrockConfig       `mapstructure:"bedrock"`
	Dispatch DispatchConfig      `mapstructure:"dispatch"`
	Batch    BatchConfig         `mapstructure:"batch"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SenderConfig selects the delivery provider and message defaults.
type SenderConfig struct {
	Provider  string `mapstructure:"provider"`
	From      string `mapstructure:"from"`
	ReplyTo   string `mapstructure:"reply_to"`
	PlainText bool   `mapstructure:"plain_text"`
}

// BedrockConfig enables the draft generator.
type BedrockConfig struct {
	bedrock.Config `mapstructure:",squash"`
	Enabled        bool `mapstructure:"enabled"`
}

// DispatchConfig holds the failure policy.
type DispatchConfig struct {
	Policy      string `mapstructure:"policy"`
	Concurrency int    `mapstructure:"concurrency"`
}

// BatchConfig holds personalization defaults.
type BatchConfig struct {
	Mode          string `mapstructure:"mode"`
	OnRenderError string `mapstructure:"on_render_error"`
	SkipOptedOut  bool   `mapstructure:"skip_opted_out"`
}

// Load reads configuration. When path is empty, mailmerge.yaml is looked up
// in ".", "./config" and "/etc/mailmerge"; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mailmerge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mailmerge")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown enum values and missing provider settings.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case logger.FormatJSON, logger.FormatText:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	switch c.Sender.Provider {
	case ProviderLog:
	case ProviderResend:
		if c.Resend.APIKey == "" {
			errs = append(errs, errors.New("resend.api_key is required for the resend provider"))
		}
	case ProviderSES:
		if c.SES.SenderEmail == "" {
			errs = append(errs, errors.New("ses.sender_email is required for the ses provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sender provider %q", c.Sender.Provider))
	}

	if _, err := dispatch.ParsePolicy(c.Dispatch.Policy); err != nil {
		errs = append(errs, err)
	}
	if _, err := personalize.ParseMode(c.Batch.Mode); err != nil {
		errs = append(errs, err)
	}
	if _, err := personalize.ParsePolicy(c.Batch.OnRenderError); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_upload_size", 10<<20)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatJSON)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.min_level", "warn")

	// Sender defaults
	v.SetDefault("sender.provider", ProviderLog)
	v.SetDefault("sender.from", "")
	v.SetDefault("sender.reply_to", "")
	v.SetDefault("sender.plain_text", false)

	v.SetDefault("resend.api_key", "")
	v.SetDefault("resend.sender_email", "")
	v.SetDefault("resend.sender_name", "")

	v.SetDefault("ses.region", "us-east-1")
	v.SetDefault("ses.access_key", "")
	v.SetDefault("ses.secret_key", "")
	v.SetDefault("ses.sender_email", "")
	v.SetDefault("ses.sender_name", "")
	v.SetDefault("ses.configuration_set", "")

	// Object storage defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.path_style", false)
	v.SetDefault("s3.max_size", 50<<20)

	// Draft generator defaults
	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.access_key", "")
	v.SetDefault("bedrock.secret_key", "")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1024)
	v.SetDefault("bedrock.temperature", 0.7)

	// Pipeline defaults
	v.SetDefault("dispatch.policy", dispatch.HaltOnFailure.String())
	v.SetDefault("dispatch.concurrency", 1)
	v.SetDefault("batch.mode", string(personalize.ModePersonalized))
	v.SetDefault("batch.on_render_error", personalize.FailFast.String())
	v.SetDefault("batch.skip_opted_out", true)
}
