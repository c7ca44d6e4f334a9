package main

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"smppd/smpp"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-c", "smppd.yaml", "--debug", "--listen", ":2776", "--admin", ":8080"})
	if err != nil {
		t.Fatal(err)
	}
	want := options{config: "smppd.yaml", debug: true, listen: ":2776", admin: ":8080"}
	if *opts != want {
		t.Errorf("got %+v", *opts)
	}
	if _, err := parseFlags([]string{"--unknown"}); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestSetupLogging(t *testing.T) {
	dir := t.TempDir()
	errorLog := filepath.Join(dir, "error.log")
	logger := logrus.New()
	logger.SetOutput(new(bytes.Buffer))
	err := setupLogging(logger, LogConfig{
		Level:  "warn",
		Format: "prefixed",
		Files:  map[string]string{"error": errorLog},
	}, false)
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("level %v", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*prefixed.TextFormatter); !ok {
		t.Errorf("formatter %T", logger.Formatter)
	}
	logger.Error("Disk full")
	data, err := os.ReadFile(errorLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Disk full") {
		t.Errorf("error log %q", data)
	}

	if err := setupLogging(logger, LogConfig{Level: "info", Format: "json"}, true); err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("debug flag ignored: %v", logger.GetLevel())
	}
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	if !strings.HasPrefix(buf.String(), "### smppd ") {
		t.Errorf("version line %q", buf.String())
	}
}

func TestCheck(t *testing.T) {
	config := DefaultConfig()
	config.Accounts = map[string]string{"client": "secret", "zz": "other"}
	srv, _, _, _ := startGateway(t, config)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(logger).WithField("mode", "check")
	if err := check(srv.Addr().String(), config, log); err != nil {
		t.Fatal(err)
	}
	if len(hook.Entries) == 0 {
		t.Fatal("nothing logged")
	}
	bound := hook.Entries[0]
	if bound.Message != "Bound" || bound.Data["mode"] != "check" || bound.Data["system_id"] != "client" {
		t.Errorf("bind logged as %q %v", bound.Message, bound.Data)
	}
	if !hasEntry(hook, logrus.DebugLevel, "Enquire link answered") {
		t.Error("keepalive round trip not logged")
	}

	wrong := DefaultConfig()
	wrong.Accounts = map[string]string{"client": "guess"}
	if err := check(srv.Addr().String(), wrong, log); err == nil {
		t.Error("check passed with a wrong password")
	}
}

// silentServer accepts one bind and never answers anything after it.
func silentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		bind, err := smpp.ReadPacket(conn, 0)
		if err != nil {
			return
		}
		resp := bind.Reply(smpp.ESME_ROK)
		resp.Body = &smpp.BindResp{SystemID: "silent"}
		data, _ := smpp.Encode(resp)
		conn.Write(data)
		io.Copy(io.Discard, conn)
	}()
	return ln.Addr().String()
}

func TestCheckKeepaliveUnanswered(t *testing.T) {
	err := check(silentServer(t), DefaultConfig(), testLogger())
	if !errors.Is(err, smpp.ErrELResponse) {
		t.Errorf("check = %v, want %v", err, smpp.ErrELResponse)
	}
}
