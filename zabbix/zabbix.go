package zabbix

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single zabbix_sender run.
const DefaultTimeout = 5 * time.Second

// Log pushes item values to a Zabbix server with the zabbix_sender utility.
type Log struct {
	Server  string
	Host    string // monitored host name as known to Zabbix
	Sender  string // path to zabbix_sender, looked up in PATH when empty
	Timeout time.Duration
}

func (z Log) command(ctx context.Context, key, value string) *exec.Cmd {
	sender := z.Sender
	if sender == "" {
		sender = "zabbix_sender"
	}
	return exec.CommandContext(ctx, sender,
		"-z", z.Server,
		"-s", z.Host,
		"-k", key,
		"-o", value)
}

// Send reports value for the item key.
func (z Log) Send(ctx context.Context, key, value string) error {
	timeout := z.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := z.command(ctx, key, value).CombinedOutput()
	if err != nil {
		return fmt.Errorf("zabbix_sender %s: %w: %s", key, err, strings.TrimSpace(string(out)))
	}
	return nil
}
