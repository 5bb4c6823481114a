// Package api implements the API Handler Registration contract (spec
// §6): a name and request-type-keyed table of callbacks, plus a minimal
// transport that dispatches framed JSON requests to them.
package api

import "fmt"

// Request is a decoded incoming request: Type selects the handler,
// Body carries the type-specific payload to be unmarshaled by the
// handler itself.
type Request struct {
	Type string      `json:"type"`
	Body interface{} `json:"body,omitempty"`
}

// Handler is one registered request type's name and callback. Callback
// receives the request body as raw JSON bytes, left for the handler to
// unmarshal into its own request struct, and returns a response value
// or an error.
type Handler struct {
	Name        string
	RequestType string
	Callback    func(body []byte) (interface{}, error)
}

// Registry is the process-wide table of registered handlers, keyed by
// request type.
type Registry struct {
	handlers map[string]*Handler
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register installs h. Registering the same request type twice panics,
// matching the module-init-time, not-expected-to-fail nature of handler
// registration (spec §9).
func (r *Registry) Register(h *Handler) {
	if _, exists := r.handlers[h.RequestType]; exists {
		panic(fmt.Sprintf("api: request type %q registered twice", h.RequestType))
	}
	r.handlers[h.RequestType] = h
}

// Dispatch looks up the handler for requestType and invokes it with
// body. Returns an *UnknownRequestTypeError if no handler is registered.
func (r *Registry) Dispatch(requestType string, body []byte) (interface{}, error) {
	h, ok := r.handlers[requestType]
	if !ok {
		return nil, &UnknownRequestTypeError{RequestType: requestType}
	}
	return h.Callback(body)
}

// UnknownRequestTypeError is returned by Dispatch when no handler is
// registered for the requested type.
type UnknownRequestTypeError struct {
	RequestType string
}

func (e *UnknownRequestTypeError) Error() string {
	return fmt.Sprintf("api: no handler registered for request type %q", e.RequestType)
}
