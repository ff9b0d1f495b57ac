package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "CRISISGO_CONFIG"

const defaultConfigFile = "config.json"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Log         LogConfig                 `json:"log" yaml:"log"`
	Storage     StorageConfig             `json:"storage" yaml:"storage"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Assistant   AssistantConfig           `json:"assistant" yaml:"assistant"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Location    LocationConfig            `json:"location" yaml:"location"`
	Delivery    DeliveryConfig            `json:"delivery" yaml:"delivery"`
	Triggers    TriggerConfig             `json:"triggers" yaml:"triggers"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address" yaml:"server_address"`
	DemoUserID    int64  `json:"demo_user_id" yaml:"demo_user_id"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// StorageConfig selects the store backend. Driver "memory" ignores the rest.
type StorageConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type AssistantConfig struct {
	Provider           string `json:"provider" yaml:"provider"`
	ClassifierProvider string `json:"classifier_provider" yaml:"classifier_provider"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

// LocationConfig describes the server-side locator. Without coordinates the
// locator reports geolocation as unsupported.
type LocationConfig struct {
	Latitude       *float64 `json:"latitude" yaml:"latitude"`
	Longitude      *float64 `json:"longitude" yaml:"longitude"`
	Accuracy       float64  `json:"accuracy" yaml:"accuracy"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds"`
}

type DeliveryConfig struct {
	Channels    []string      `json:"channels" yaml:"channels"`
	Concurrency int           `json:"concurrency" yaml:"concurrency"`
	Stream      string        `json:"stream" yaml:"stream"`
	Webhook     WebhookConfig `json:"webhook" yaml:"webhook"`
	MQTT        MQTTConfig    `json:"mqtt" yaml:"mqtt"`
}

type WebhookConfig struct {
	URL            string            `json:"url" yaml:"url"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
}

type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Topic    string `json:"topic" yaml:"topic"`
	QoS      byte   `json:"qos" yaml:"qos"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type TriggerConfig struct {
	Key          string   `json:"key" yaml:"key"`
	WindowMillis int      `json:"window_ms" yaml:"window_ms"`
	VoiceEnabled *bool    `json:"voice_enabled" yaml:"voice_enabled"`
	Phrases      []string `json:"phrases" yaml:"phrases"`
}

// providerKeyEnv maps provider names to the environment variables consulted
// when the config leaves api_key empty.
var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file yields the built-in defaults; a missing explicit
// path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == "sqlite3" && cfg.Storage.DSN != "" && cfg.Storage.DSN != ":memory:" &&
		!strings.HasPrefix(cfg.Storage.DSN, "file:") && !filepath.IsAbs(cfg.Storage.DSN) {
		cfg.Storage.DSN = filepath.Join(filepath.Dir(absPath), cfg.Storage.DSN)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":5000"
	}
	if c.BasicConfig.DemoUserID <= 0 {
		c.BasicConfig.DemoUserID = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Driver == "sqlite" {
		c.Storage.Driver = "sqlite3"
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, envName := range providerKeyEnv {
		prov := c.Providers[name]
		if prov.APIKey == "" {
			prov.APIKey = os.Getenv(envName)
		}
		if prov.APIKey != "" || prov.Model != "" || prov.BaseURL != "" {
			c.Providers[name] = prov
		}
	}
	c.Assistant.Provider = strings.ToLower(strings.TrimSpace(c.Assistant.Provider))
	c.Assistant.ClassifierProvider = strings.ToLower(strings.TrimSpace(c.Assistant.ClassifierProvider))
	if c.Assistant.ClassifierProvider == "" {
		c.Assistant.ClassifierProvider = c.Assistant.Provider
	}
	if c.Location.TimeoutSeconds <= 0 {
		c.Location.TimeoutSeconds = 5
	}
	if len(c.Delivery.Channels) == 0 {
		c.Delivery.Channels = []string{"log"}
	}
	if c.Delivery.Concurrency <= 0 {
		c.Delivery.Concurrency = 4
	}
	if c.Delivery.Stream == "" {
		c.Delivery.Stream = "crisis:alerts:outbox"
	}
	if c.Delivery.Webhook.TimeoutSeconds <= 0 {
		c.Delivery.Webhook.TimeoutSeconds = 10
	}
	if c.Delivery.MQTT.Topic == "" {
		c.Delivery.MQTT.Topic = "crisis/alerts"
	}
	if c.Delivery.MQTT.ClientID == "" {
		c.Delivery.MQTT.ClientID = "crisisgo"
	}
	if c.Triggers.Key == "" {
		c.Triggers.Key = "v"
	}
	if c.Triggers.WindowMillis <= 0 {
		c.Triggers.WindowMillis = 500
	}
	if len(c.Triggers.Phrases) == 0 {
		c.Triggers.Phrases = []string{"help me", "emergency"}
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite3", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite3" && c.Storage.DSN == "" {
		return errors.New("sqlite dsn must be provided")
	}
	if (c.Location.Latitude == nil) != (c.Location.Longitude == nil) {
		return errors.New("location latitude and longitude must be set together")
	}
	for _, ch := range c.Delivery.Channels {
		switch ch {
		case "log", "redis", "webhook", "mqtt":
		default:
			return fmt.Errorf("unsupported delivery channel: %s", ch)
		}
	}
	if c.Delivery.HasChannel("webhook") && c.Delivery.Webhook.URL == "" {
		return errors.New("webhook delivery requires delivery.webhook.url")
	}
	if c.Delivery.HasChannel("mqtt") && c.Delivery.MQTT.Broker == "" {
		return errors.New("mqtt delivery requires delivery.mqtt.broker")
	}
	return nil
}

// VoiceSupported reports whether voice keyword detection is available.
func (t TriggerConfig) VoiceSupported() bool {
	return t.VoiceEnabled == nil || *t.VoiceEnabled
}

// HasChannel reports whether the named delivery channel is configured.
func (d DeliveryConfig) HasChannel(name string) bool {
	for _, ch := range d.Channels {
		if ch == name {
			return true
		}
	}
	return false
}
