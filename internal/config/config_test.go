package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loramesh/lorax/internal/config"
	"github.com/loramesh/lorax/internal/protocol"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lorax.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
address: "aabbccddeeff"
sockets:
  messages: /tmp/lorax/messages
broadcast_jitter_ms: 500
monitor:
  listen: "127.0.0.1:9310"
`)

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Sockets.Messages != "/tmp/lorax/messages" {
		t.Errorf("messages socket = %q", c.Sockets.Messages)
	}
	if c.Sockets.RadioData != config.RunDir+"/e32.data" {
		t.Errorf("radio data socket = %q", c.Sockets.RadioData)
	}
	if c.RadioAckTimeout() != 3*time.Second {
		t.Errorf("ack timeout = %s", c.RadioAckTimeout())
	}
	if c.BroadcastInterval() != 10*time.Second || c.BroadcastJitter() != 500*time.Millisecond {
		t.Errorf("broadcast = %s + %s", c.BroadcastInterval(), c.BroadcastJitter())
	}
	if c.RetryInterval() != 3*time.Second || c.StaleAfter() != time.Minute {
		t.Errorf("retry = %s stale = %s", c.RetryInterval(), c.StaleAfter())
	}
	if c.Monitor.Listen != "127.0.0.1:9310" {
		t.Errorf("monitor listen = %q", c.Monitor.Listen)
	}

	addr, err := c.NodeAddress()
	if err != nil {
		t.Fatalf("NodeAddress: %v", err)
	}
	if addr != (protocol.Address{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}) {
		t.Errorf("address = %s", addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{name: "bad address", body: `address: "xyz"`, want: "address"},
		{name: "negative jitter", body: `broadcast_jitter_ms: -1`, want: "broadcast_jitter_ms"},
		{name: "server equals messages", body: "sockets:\n  messages: /a\n  server: /a\n", want: "must differ"},
		{name: "not yaml", body: "address: [", want: "parse config"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
}
