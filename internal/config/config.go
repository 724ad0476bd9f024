package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion               = 1
	DefaultPath                 = "/etc/evorelay/config.yaml"
	DefaultEnvFile              = ".env"
	DefaultHTTPAddr             = "0.0.0.0:8080"
	DefaultGRPCAddr             = "0.0.0.0:9000"
	DefaultIntervalMS           = 300000
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "console"
	DefaultSalesforceLoginURL   = "https://login.salesforce.com"
	DefaultSalesforceAPIVersion = "v59.0"
	DefaultSalesforceObject     = "Temp_Zone__c"
	DefaultArchivePrefix        = "evorelay/snapshots"
	DefaultMQTTTopicPrefix      = "evorelay"
	DefaultRedisStream          = "evorelay:status"
	DefaultRedisMaxLen          = 10000
)

// Config is the on-disk daemon configuration.
type Config struct {
	SchemaVersion int           `yaml:"schema_version"`
	Log           LogConfig     `yaml:"log"`
	Server        ServerConfig  `yaml:"server"`
	Poll          PollConfig    `yaml:"poll"`
	Evohome       EvohomeConfig `yaml:"evohome"`

	Salesforce *SalesforceConfig `yaml:"salesforce" validate:"omitempty"`
	Archive    *ArchiveConfig    `yaml:"archive" validate:"omitempty"`
	MQTT       *MQTTConfig       `yaml:"mqtt" validate:"omitempty"`
	Redis      *RedisConfig      `yaml:"redis" validate:"omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" validate:"required,hostname_port"`
	GRPCAddr string `yaml:"grpc_addr" validate:"required,hostname_port"`
	// DashboardsDir receives Grafana dashboard JSON at startup when set.
	DashboardsDir string `yaml:"dashboards_dir"`
}

type PollConfig struct {
	IntervalMS int64 `yaml:"interval_ms" validate:"gte=1000"`
}

// Interval returns the poll period.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

type EvohomeConfig struct {
	Username      string `yaml:"username" validate:"required"`
	Password      string `yaml:"password"`
	PasswordFile  string `yaml:"password_file"`
	BaseURL       string `yaml:"base_url" validate:"omitempty,url"`
	TokenURL      string `yaml:"token_url" validate:"omitempty,url"`
	ApplicationID string `yaml:"application_id"`
	ClientSecret  string `yaml:"client_secret"`
	// LocationID skips installation discovery when set.
	LocationID     string `yaml:"location_id"`
	RefreshEnabled *bool  `yaml:"refresh_enabled"`
}

type SalesforceConfig struct {
	LoginURL         string `yaml:"login_url" validate:"url"`
	Username         string `yaml:"username" validate:"required"`
	Password         string `yaml:"password"`
	PasswordFile     string `yaml:"password_file"`
	SecurityToken    string `yaml:"security_token"`
	ClientID         string `yaml:"client_id" validate:"required"`
	ClientSecret     string `yaml:"client_secret"`
	ClientSecretFile string `yaml:"client_secret_file"`
	APIVersion       string `yaml:"api_version" validate:"startswith=v"`
	SObject          string `yaml:"sobject"`
}

type ArchiveConfig struct {
	Endpoint      string `yaml:"endpoint" validate:"required"`
	Bucket        string `yaml:"bucket" validate:"required"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	AccessKeyFile string `yaml:"access_key_file" validate:"required"`
	SecretKeyFile string `yaml:"secret_key_file" validate:"required"`
}

type MQTTConfig struct {
	Broker       string `yaml:"broker" validate:"required,url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
	ClientID     string `yaml:"client_id"`
	TopicPrefix  string `yaml:"topic_prefix"`
	QoS          byte   `yaml:"qos" validate:"lte=2"`
	Retain       bool   `yaml:"retain"`
}

type RedisConfig struct {
	Addr         string `yaml:"addr" validate:"required,hostname_port"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"`
	DB           int    `yaml:"db" validate:"gte=0"`
	Stream       string `yaml:"stream"`
	MaxLen       int64  `yaml:"max_len" validate:"gte=0"`
}

var (
	validate    = validator.New(validator.WithRequiredStructEnabled())
	envRefRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// LoadEnvFile loads KEY=value pairs into the process environment. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data and expands ${VAR} references from the environment.
// References are expanded per scalar, so values may contain YAML syntax.
func Parse(data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("parse config: empty document")
	}
	expandEnv(&doc)
	expanded, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := resolveSecrets(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv substitutes ${VAR} references in scalar values. Plain scalars
// drop their resolved tag so numbers from the environment still decode into
// numeric fields; quoted scalars stay strings.
func expandEnv(node *yaml.Node) {
	if node.Kind == yaml.ScalarNode && envRefRegex.MatchString(node.Value) {
		node.Value = envRefRegex.ReplaceAllStringFunc(node.Value, func(ref string) string {
			return os.Getenv(envRefRegex.FindStringSubmatch(ref)[1])
		})
		if node.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
			node.Tag = ""
		}
	}
	for _, child := range node.Content {
		expandEnv(child)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Poll.IntervalMS == 0 {
		cfg.Poll.IntervalMS = DefaultIntervalMS
	}
	if cfg.Evohome.RefreshEnabled == nil {
		enabled := true
		cfg.Evohome.RefreshEnabled = &enabled
	}

	if sf := cfg.Salesforce; sf != nil {
		if sf.LoginURL == "" {
			sf.LoginURL = DefaultSalesforceLoginURL
		}
		if sf.APIVersion == "" {
			sf.APIVersion = DefaultSalesforceAPIVersion
		}
		if sf.SObject == "" {
			sf.SObject = DefaultSalesforceObject
		}
	}
	if cfg.Archive != nil && cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = DefaultArchivePrefix
	}
	if cfg.MQTT != nil && cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
	if r := cfg.Redis; r != nil {
		if r.Stream == "" {
			r.Stream = DefaultRedisStream
		}
		if r.MaxLen == 0 {
			r.MaxLen = DefaultRedisMaxLen
		}
	}
}

func resolveSecrets(cfg *Config) error {
	if err := fillSecret(&cfg.Evohome.Password, cfg.Evohome.PasswordFile); err != nil {
		return fmt.Errorf("evohome.password_file: %w", err)
	}
	if sf := cfg.Salesforce; sf != nil {
		if err := fillSecret(&sf.Password, sf.PasswordFile); err != nil {
			return fmt.Errorf("salesforce.password_file: %w", err)
		}
		if err := fillSecret(&sf.ClientSecret, sf.ClientSecretFile); err != nil {
			return fmt.Errorf("salesforce.client_secret_file: %w", err)
		}
	}
	if m := cfg.MQTT; m != nil {
		if err := fillSecret(&m.Password, m.PasswordFile); err != nil {
			return fmt.Errorf("mqtt.password_file: %w", err)
		}
	}
	if r := cfg.Redis; r != nil {
		if err := fillSecret(&r.Password, r.PasswordFile); err != nil {
			return fmt.Errorf("redis.password_file: %w", err)
		}
	}
	return nil
}

func fillSecret(dst *string, path string) error {
	if *dst != "" || path == "" {
		return nil
	}
	value, err := ReadSecretFile(path)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}

// ReadSecretFile returns the trimmed contents of a secret file.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Validate enforces required invariants beyond struct tags.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Evohome.Password == "" {
		return fmt.Errorf("evohome.password or evohome.password_file is required")
	}
	if cfg.Salesforce != nil && cfg.Salesforce.Password == "" {
		return fmt.Errorf("salesforce.password or salesforce.password_file is required")
	}
	if len(EnabledSinks(cfg)) == 0 {
		return fmt.Errorf("at least one of salesforce, archive, mqtt or redis must be configured")
	}
	return nil
}

// EnabledSinks lists external sink IDs based on config presence.
func EnabledSinks(cfg *Config) []string {
	var enabled []string
	if cfg == nil {
		return enabled
	}
	if cfg.Salesforce != nil {
		enabled = append(enabled, "salesforce")
	}
	if cfg.Archive != nil {
		enabled = append(enabled, "archive")
	}
	if cfg.MQTT != nil {
		enabled = append(enabled, "mqtt")
	}
	if cfg.Redis != nil {
		enabled = append(enabled, "redis")
	}
	return enabled
}
