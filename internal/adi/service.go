// Package adi implements the service router: a registry of capability-set
// services dispatched by name and method, with unary, streaming,
// subscription, and notification semantics multiplexed over the signaling
// link.
package adi

import "context"

// MethodInfo describes one dispatchable method for discovery.
type MethodInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Streaming   bool   `json:"streaming"`
	ParamSchema any    `json:"param_schema,omitempty"`
	ResultSchema any   `json:"result_schema,omitempty"`
}

// Capabilities is a capability set, not a class hierarchy: every service
// declares what it supports, defaulting to all false.
type Capabilities struct {
	Subscriptions bool `json:"subscriptions"`
	Notifications bool `json:"notifications"`
	Streaming     bool `json:"streaming"`
}

// SubscriptionEventInfo describes one event a service can emit.
type SubscriptionEventInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataSchema  any    `json:"data_schema,omitempty"`
}

// SubscriptionEvent is one emitted event payload.
type SubscriptionEvent struct {
	Service string `json:"service"`
	Event   string `json:"event"`
	Data    any    `json:"data"`
}

// HandleResult is returned by Service.Handle: either a synchronous value
// or a stream channel of (data, done) chunks.
type HandleResult struct {
	Success any
	Stream  <-chan StreamChunk
}

type StreamChunk struct {
	Data any
	Done bool
}

func Success(data any) HandleResult { return HandleResult{Success: data} }
func Stream(ch <-chan StreamChunk) HandleResult { return HandleResult{Stream: ch} }

// ServiceError is a {code,message} pair used on every ADI failure path.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string { return e.Code + ": " + e.Message }

func NotFound(msg string) *ServiceError            { return &ServiceError{Code: "not_found", Message: msg} }
func InvalidParams(msg string) *ServiceError       { return &ServiceError{Code: "invalid_params", Message: msg} }
func Internal(msg string) *ServiceError            { return &ServiceError{Code: "internal", Message: msg} }
func MethodNotFoundErr(msg string) *ServiceError   { return &ServiceError{Code: "method_not_found", Message: msg} }
func NotSupported(msg string) *ServiceError        { return &ServiceError{Code: "not_supported", Message: msg} }
func SubscriptionFailed(msg string) *ServiceError  { return &ServiceError{Code: "subscription_failed", Message: msg} }
func ServiceNotFoundErr(msg string) *ServiceError  { return &ServiceError{Code: "service_not_found", Message: msg} }

// Service is a capability set: identity, methods, capability flags, and an
// optional subscription producer. Implementations are registered by value
// behind a uniform dispatch table — there is no inheritance here.
type Service interface {
	ServiceID() string
	Name() string
	Version() string
	Description() string
	Methods() []MethodInfo
	Capabilities() Capabilities
	Handle(ctx context.Context, method string, params map[string]any) (HandleResult, *ServiceError)

	// SubscriptionEvents, Subscribe, OnClientConnected/Disconnected have
	// default (no-op / not-supported) behavior satisfied by BaseService,
	// which concrete services embed.
	SubscriptionEvents() []SubscriptionEventInfo
	Subscribe(ctx context.Context, event string, filter map[string]any) (<-chan SubscriptionEvent, *ServiceError)
	OnClientConnected(clientID string)
	OnClientDisconnected(clientID string)
}

// BaseService gives concrete services the default capability-set behavior
// so they only override what they actually support.
type BaseService struct{}

func (BaseService) Capabilities() Capabilities                      { return Capabilities{} }
func (BaseService) SubscriptionEvents() []SubscriptionEventInfo      { return nil }
func (BaseService) Subscribe(ctx context.Context, event string, filter map[string]any) (<-chan SubscriptionEvent, *ServiceError) {
	return nil, NotSupported("service does not support subscriptions")
}
func (BaseService) OnClientConnected(clientID string)    {}
func (BaseService) OnClientDisconnected(clientID string) {}
