package grlog

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetLevel(t *testing.T) {
	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug): %v", err)
	}
	if Logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", Logger.GetLevel())
	}
	if err := SetLevel("not-a-level"); err == nil {
		t.Fatal("expected error for invalid level")
	}
	_ = SetLevel("info")
}

func TestWithIfaceAndPort(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	WithIface(7).WithField("event", "created").Info("interface created")
	if !strings.Contains(buf.String(), "iface_id=7") {
		t.Fatalf("expected iface_id field in output, got %q", buf.String())
	}

	buf.Reset()
	WithPort(3).Info("port probed")
	if !strings.Contains(buf.String(), "port_id=3") {
		t.Fatalf("expected port_id field in output, got %q", buf.String())
	}
}
