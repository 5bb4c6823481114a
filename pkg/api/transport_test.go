package api

import (
	"path/filepath"
	"testing"
	"time"
)

func TestServerClientRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "grout.sock")

	r := NewRegistry()
	r.Register(&Handler{
		Name:        "ping",
		RequestType: "ping",
		Callback: func(body []byte) (interface{}, error) {
			return map[string]string{"pong": string(body)}, nil
		},
	})

	srv, err := NewServer(sock, r)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	// Give the listener goroutine a moment to start accepting.
	time.Sleep(10 * time.Millisecond)

	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var out map[string]string
	if err := client.Call("ping", "hello", &out); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out["pong"] != `"hello"` {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestServerUnknownRequestType(t *testing.T) {
	dir := t.TempDir()
	sock := filepath.Join(dir, "grout.sock")

	r := NewRegistry()
	srv, err := NewServer(sock, r)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Close()
	go srv.Serve()
	time.Sleep(10 * time.Millisecond)

	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	err = client.Call("nope", nil, nil)
	if err == nil {
		t.Fatal("expected an error for an unregistered request type")
	}
}
