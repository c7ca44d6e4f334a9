package zabbix

import (
	"context"
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	z := Log{Server: "zabbix.local", Host: "smppd-1"}
	cmd := z.command(context.Background(), "smppd.sessions", "3")
	want := []string{"zabbix_sender", "-z", "zabbix.local", "-s", "smppd-1", "-k", "smppd.sessions", "-o", "3"}
	if strings.Join(cmd.Args, " ") != strings.Join(want, " ") {
		t.Errorf("args %q", cmd.Args)
	}
}

func TestSendMissingSender(t *testing.T) {
	z := Log{Server: "zabbix.local", Host: "smppd-1", Sender: "/nonexistent/zabbix_sender"}
	err := z.Send(context.Background(), "smppd.sessions", "1")
	if err == nil || !strings.Contains(err.Error(), "smppd.sessions") {
		t.Errorf("got %v", err)
	}
}
