package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/vjardin/grout/pkg/grlog"
)

// wireRequest and wireResponse are the JSON-framed envelopes exchanged
// over the socket, one object per line.
type wireRequest struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

type wireResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Server listens on a Unix domain socket and dispatches each accepted
// connection's requests to a Registry. One request per line, one
// response per line — simple enough to drive from a shell for
// debugging, matching the control-plane socket conventions in the
// ambient stack.
type Server struct {
	registry *Registry
	listener net.Listener
}

// NewServer binds a Unix domain socket at socketPath, removing any
// stale socket file left over from a previous run.
func NewServer(socketPath string, registry *Registry) (*Server, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("api: remove stale socket: %w", err)
	}
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("api: listen on %s: %w", socketPath, err)
	}
	return &Server{registry: registry, listener: l}, nil
}

// Addr returns the socket path the server is bound to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req wireRequest
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(wireResponse{Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		result, err := s.registry.Dispatch(req.Type, req.Body)
		if err != nil {
			grlog.WithOperation(req.Type).Warnf("request failed: %v", err)
			_ = enc.Encode(wireResponse{Error: err.Error()})
			continue
		}
		resultJSON, err := json.Marshal(result)
		if err != nil {
			_ = enc.Encode(wireResponse{Error: fmt.Sprintf("marshal response: %v", err)})
			continue
		}
		if err := enc.Encode(wireResponse{Result: resultJSON}); err != nil {
			grlog.WithOperation(req.Type).Warnf("encode response: %v", err)
			return
		}
	}
}

// Client is a thin JSON-line client for Server, used by grctl.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to a Server listening at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("api: dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}, nil
}

// Call sends a request of the given type with body, and decodes the
// response's result into out (if non-nil). Returns the error the
// handler reported, if any.
func (c *Client) Call(requestType string, body interface{}, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api: marshal request: %w", err)
	}
	if err := c.enc.Encode(wireRequest{Type: requestType, Body: raw}); err != nil {
		return fmt.Errorf("api: send request: %w", err)
	}

	var resp wireResponse
	if err := c.dec.Decode(&resp); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("api: decode result: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
