// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the reply relay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultMaxBodySize is 25 MB in bytes.
const defaultMaxBodySize = 26214400

// Config holds the complete application configuration.
type Config struct {
	HTTP     HTTPConfig    `yaml:"http"`
	Provider string        `yaml:"provider"`
	Mailgun  MailgunConfig `yaml:"mailgun"`
	Subject  SubjectConfig `yaml:"subject"`
	Replay   ReplayConfig  `yaml:"replay"`
	Routes   []Route       `yaml:"routes"`
	SES      SESConfig     `yaml:"ses"`
	Graph    GraphConfig   `yaml:"graph"`
	TLS      TLSConfig     `yaml:"tls"`
	Logging  LoggingConfig `yaml:"logging"`
}

// HTTPConfig holds the webhook listener configuration.
type HTTPConfig struct {
	Listen      string `yaml:"listen"`
	Path        string `yaml:"path"`
	MaxBodySize int64  `yaml:"max_body_size"`
}

// MailgunConfig holds the Mailgun account used for replies and webhook
// verification.
type MailgunConfig struct {
	Address    string `yaml:"address"`
	Domain     string `yaml:"domain"`
	Key        string `yaml:"key"`
	API        string `yaml:"api"`
	SigningKey string `yaml:"signing_key"`
	// SignatureMaxAge rejects webhooks whose timestamp is older. Zero disables.
	SignatureMaxAge time.Duration `yaml:"signature_max_age"`
}

// SubjectConfig lists the normalizers applied to inbound subjects, in order.
type SubjectConfig struct {
	Normalize []string `yaml:"normalize"`
}

// ReplayConfig selects the webhook token store.
type ReplayConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

// Route is a config-defined autoresponder.
type Route struct {
	Subject string `yaml:"subject"`
	// Reply is a text/template rendered with the inbound message.
	Reply string `yaml:"reply"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// TLSConfig holds TLS certificate file paths. The listener serves plain
// HTTP unless Enabled is set.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	return cfg, nil
}

// MailgunConfigured returns true if the address, domain and key are set.
func (c *Config) MailgunConfigured() bool {
	return c.Mailgun.Address != "" &&
		c.Mailgun.Domain != "" &&
		c.Mailgun.Key != ""
}

// SignatureEnabled returns true if a webhook signing key is set.
func (c *Config) SignatureEnabled() bool {
	return c.Mailgun.SigningKey != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// SESConfigured returns true if the SES region is set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Listen = ":8080"
	c.HTTP.Path = "/"
	c.HTTP.MaxBodySize = defaultMaxBodySize
	c.Provider = "mailgun"
	c.Replay.TTL = 24 * time.Hour
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}
	if v := os.Getenv("HTTP_PATH"); v != "" {
		c.HTTP.Path = v
	}
	if v := os.Getenv("MAX_BODY_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.HTTP.MaxBodySize = size
		}
	}

	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("MAILGUN_ADDRESS"); v != "" {
		c.Mailgun.Address = v
	}
	if v := os.Getenv("MAILGUN_DOMAIN"); v != "" {
		c.Mailgun.Domain = v
	}
	if v := os.Getenv("MAILGUN_KEY"); v != "" {
		c.Mailgun.Key = v
	}
	if v := os.Getenv("MAILGUN_API"); v != "" {
		c.Mailgun.API = v
	}
	if v := os.Getenv("MAILGUN_SIGNING_KEY"); v != "" {
		c.Mailgun.SigningKey = v
	}
	if v := os.Getenv("MAILGUN_SIGNATURE_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Mailgun.SignatureMaxAge = d
		}
	}

	if v := os.Getenv("SUBJECT_NORMALIZE"); v != "" {
		c.Subject.Normalize = splitList(v)
	}

	if v := os.Getenv("REPLAY_REDIS_URL"); v != "" {
		c.Replay.RedisURL = v
	}
	if v := os.Getenv("REPLAY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Replay.TTL = d
		}
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SES_SENDER"); v != "" {
		c.SES.Sender = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_SENDER"); v != "" {
		c.Graph.Sender = v
	}

	if v := os.Getenv("TLS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TLS.Enabled = b
		}
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		c.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		c.TLS.KeyFile = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
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
