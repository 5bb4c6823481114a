package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grout.yaml")
	contents := "ports:\n  - devargs: \"sim:0\"\n    mtu: 1500\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SocketPath != DefaultSocketPath {
		t.Fatalf("SocketPath = %q, want default", c.SocketPath)
	}
	if c.NextHopCapacity != DefaultNextHopCapacity {
		t.Fatalf("NextHopCapacity = %d, want default", c.NextHopCapacity)
	}
	if len(c.Ports) != 1 || c.Ports[0].Devargs != "sim:0" || c.Ports[0].MTU != 1500 {
		t.Fatalf("unexpected ports: %+v", c.Ports)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grout.yaml")

	c := Default()
	c.SocketPath = "/tmp/custom.sock"
	c.VLANs = []VLAN{{ParentDevargs: "sim:0", VLANID: 100}}

	if err := c.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SocketPath != "/tmp/custom.sock" {
		t.Fatalf("SocketPath = %q, want /tmp/custom.sock", got.SocketPath)
	}
	if len(got.VLANs) != 1 || got.VLANs[0].VLANID != 100 {
		t.Fatalf("unexpected vlans: %+v", got.VLANs)
	}
}
