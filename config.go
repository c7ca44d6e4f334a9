package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"smppd/smpp"
	"smppd/zabbix"
)

// Config is the service configuration read from config.yaml.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Session  smpp.Config       `yaml:"session"`            // per-session engine settings
	Accounts map[string]string `yaml:"accounts,omitempty"` // systemId -> password; empty accepts everyone
	Receipts ReceiptsConfig    `yaml:"receipts"`
	Log      LogConfig         `yaml:"log"`
	SQLog    SQLogConfig       `yaml:"sqlog,omitempty"`
	Admin    AdminConfig       `yaml:"admin,omitempty"`
	Zabbix   *ZabbixConfig     `yaml:"zabbix,omitempty"`
}

type ServerConfig struct {
	Address  string `yaml:"address"`
	SystemID string `yaml:"systemId,omitempty"` // overrides session.systemId
	CertFile string `yaml:"certFile,omitempty"` // TLS when set together with keyFile
	KeyFile  string `yaml:"keyFile,omitempty"`
}

type ReceiptsConfig struct {
	Enabled bool          `yaml:"enabled"`
	Delay   time.Duration `yaml:"delay"`          // before the receipt is delivered
	Stat    string        `yaml:"stat,omitempty"` // final state reported, DELIVRD by default
	Keep    time.Duration `yaml:"keep,omitempty"` // how long undelivered receipts are retried
}

type LogConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`          // text, json or prefixed
	Files  map[string]string `yaml:"files,omitempty"` // level -> file
}

type SQLogConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type AdminConfig struct {
	Address string `yaml:"address,omitempty"`
}

type ZabbixConfig struct {
	zabbix.Log `yaml:",inline"`
	Key        string `yaml:"key"` // item receiving the active session count
}

// DefaultConfig returns the configuration used for missing values.
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Address: ":2775"},
		Session: smpp.DefaultConfig(),
		Receipts: ReceiptsConfig{
			Enabled: true,
			Delay:   time.Second,
			Stat:    "DELIVRD",
			Keep:    time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// ParseConfig parses the configuration and initializes default values.
func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	err := yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}
	if config.Server.SystemID != "" {
		config.Session.SystemID = config.Server.SystemID
	}
	if config.Zabbix != nil && config.Zabbix.Key == "" {
		config.Zabbix.Key = "smppd.sessions"
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadConfig loads and parses the configuration from a file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("config: empty server address")
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return errors.New("config: certFile and keyFile go together")
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("config: session: %w", err)
	}
	for systemID, password := range c.Accounts {
		if systemID == "" || len(systemID) > 15 {
			return fmt.Errorf("config: bad account system id %q", systemID)
		}
		if len(password) > 8 {
			return fmt.Errorf("config: password of %q longer than 8 characters", systemID)
		}
	}
	if c.Receipts.Delay < 0 || c.Receipts.Keep < 0 {
		return errors.New("config: negative receipts delay")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log: %w", err)
	}
	switch c.Log.Format {
	case "", "text", "json", "prefixed":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	for level := range c.Log.Files {
		if _, err := logrus.ParseLevel(level); err != nil {
			return fmt.Errorf("config: log file: %w", err)
		}
	}
	if c.Zabbix != nil && (c.Zabbix.Server == "" || c.Zabbix.Host == "") {
		return errors.New("config: zabbix needs server and host")
	}
	return nil
}
