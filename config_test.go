package main

import (
	"strings"
	"testing"
	"time"

	"github.com/kr/pretty"

	"smppd/smpp"
	"smppd/zabbix"
)

const testConfig = `
server:
  address: 127.0.0.1:2775
  systemId: gw-1
session:
  readTimeout: 30s
  requestTimeout: 5s
  windowSize: 4
accounts:
  client: secret
receipts:
  delay: 250ms
log:
  level: debug
  format: prefixed
  files:
    error: error.log
zabbix:
  server: zabbix.local
  host: smppd-1
`

func TestConfigFile(t *testing.T) {
	config, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatal(err)
	}
	session := smpp.DefaultConfig()
	session.SystemID = "gw-1"
	session.ReadTimeout = 30 * time.Second
	session.RequestTimeout = 5 * time.Second
	session.WindowSize = 4
	want := &Config{
		Server:   ServerConfig{Address: "127.0.0.1:2775", SystemID: "gw-1"},
		Session:  session,
		Accounts: map[string]string{"client": "secret"},
		Receipts: ReceiptsConfig{Enabled: true, Delay: 250 * time.Millisecond, Stat: "DELIVRD", Keep: time.Hour},
		Log:      LogConfig{Level: "debug", Format: "prefixed", Files: map[string]string{"error": "error.log"}},
		Zabbix: &ZabbixConfig{
			Log: zabbix.Log{Server: "zabbix.local", Host: "smppd-1"},
			Key: "smppd.sessions",
		},
	}
	if diff := pretty.Diff(want, config); len(diff) > 0 {
		t.Errorf("config differs: %v", diff)
	}
}

func TestConfigDefaults(t *testing.T) {
	config, err := ParseConfig(nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Diff(DefaultConfig(), config); len(diff) > 0 {
		t.Errorf("empty config differs from defaults: %v", diff)
	}
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		yaml string
		err  string
	}{
		{"server:\n  address: ''", "empty server address"},
		{"server:\n  certFile: a.pem", "certFile and keyFile"},
		{"session:\n  windowSize: -1", "session"},
		{"accounts:\n  client: toolongpassword", "longer than 8"},
		{"log:\n  level: loud", "log"},
		{"log:\n  format: xml", "unknown log format"},
		{"zabbix:\n  host: smppd-1", "zabbix"},
		{"receipts:\n  delay: soon", "soon"},
	}
	for _, tt := range tests {
		_, err := ParseConfig([]byte(tt.yaml))
		if err == nil || !strings.Contains(err.Error(), tt.err) {
			t.Errorf("%q: got %v, want error containing %q", tt.yaml, err, tt.err)
		}
	}
}

func TestSampleConfig(t *testing.T) {
	config, err := LoadConfig("config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if config.Session.SystemID != "smppd" || config.Admin.Address == "" {
		t.Errorf("sample config: %# v", pretty.Formatter(config))
	}
}
