package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cyberorg/sparagliding-meshmap/meshcrypt"
)

// Config is the top-level application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Messaging  MessagingConfig  `yaml:"messaging"`
	Broker     BrokerConfig     `yaml:"broker"`
	Decryption DecryptionConfig `yaml:"decryption"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Relay      RelayConfig      `yaml:"relay"`
	Retention  RetentionConfig  `yaml:"retention"`
	Web        WebConfig        `yaml:"web"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig points at the connectivity state mirror. An empty address
// disables the mirror.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MessagingConfig defines the transport the gateways publish on.
type MessagingConfig struct {
	Backend string      `yaml:"backend"` // "mqtt" or "kafka"
	MQTT    MQTTConfig  `yaml:"mqtt"`
	Kafka   KafkaConfig `yaml:"kafka"`
	Topics  []string    `yaml:"topics"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// KafkaConfig defines Kafka settings for an MQTT-to-Kafka bridged feed.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

// BrokerConfig runs an embedded MQTT broker that gateways can publish to
// directly.
type BrokerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DecryptionConfig holds the ordered channel keys, base64 encoded.
type DecryptionConfig struct {
	Keys []string `yaml:"keys"`
}

type IngestConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	DedupWindow time.Duration `yaml:"dedup_window"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RelayConfig struct {
	Telegram      TelegramConfig `yaml:"telegram"`
	FlyXC         FlyXCConfig    `yaml:"flyxc"`
	DrainInterval time.Duration  `yaml:"drain_interval"`
	MaxRetries    int            `yaml:"max_retries"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	ThreadID string `yaml:"thread_id"`
	APIBase  string `yaml:"api_base"`
}

// Enabled reports whether both credentials are present.
func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

type FlyXCConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
}

// Enabled reports whether both URL and key are present.
func (c FlyXCConfig) Enabled() bool {
	return c.APIURL != "" && c.APIKey != ""
}

type RetentionConfig struct {
	MaxAge        time.Duration `yaml:"max_age"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "meshmap.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "meshmap",
				User:     "meshmap",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Messaging: MessagingConfig{
			Backend: "mqtt",
			MQTT: MQTTConfig{
				Broker:   "mqtt.meshtastic.org",
				Port:     1883,
				ClientID: "meshmap",
				Username: "meshdev",
				Password: "large4cats",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "meshmap",
			},
			Topics: []string{"msh/#"},
		},
		Broker: BrokerConfig{
			Enabled: false,
			Address: ":1883",
		},
		Decryption: DecryptionConfig{
			Keys: []string{meshcrypt.DefaultKeyBase64},
		},
		Ingest: IngestConfig{
			Workers:     4,
			QueueSize:   1024,
			DedupWindow: 15 * time.Second,
			Timeout:     30 * time.Second,
		},
		Relay: RelayConfig{
			DrainInterval: 5 * time.Second,
			MaxRetries:    5,
		},
		Retention: RetentionConfig{
			MaxAge:        30 * 24 * time.Hour,
			PurgeInterval: time.Hour,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8084,
			SessionSecret: "change-me-in-production",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
