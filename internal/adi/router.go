package adi

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const notificationBufferSize = 256

// ServiceInfo is the discovery-facing summary of one registered service.
type ServiceInfo struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Version      string                  `json:"version"`
	Description  string                  `json:"description,omitempty"`
	Methods      []MethodInfo            `json:"methods"`
	Capabilities Capabilities            `json:"capabilities"`
}

// Notification is the router-level broadcast envelope: either a
// ServicesChanged lifecycle event or a service-specific notification.
type Notification struct {
	Kind           string          `json:"kind"`
	ServicesChanged *ServicesChanged `json:"services_changed,omitempty"`
	Event          *SubscriptionEvent `json:"event,omitempty"`
}

type ServicesChanged struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Updated []string `json:"updated,omitempty"`
}

type activeSubscription struct {
	service string
	event   string
}

// Router owns the service registry, subscription table, and the bounded
// notification broadcast.
type Router struct {
	mu       sync.RWMutex
	services map[string]Service

	subMu         sync.Mutex
	subscriptions map[string]activeSubscription

	notifyMu   sync.Mutex
	notifySubs []chan Notification
}

func NewRouter() *Router {
	return &Router{
		services:      make(map[string]Service),
		subscriptions: make(map[string]activeSubscription),
	}
}

// NotificationReceiver returns a new bounded channel that receives every
// notification broadcast after this call. Slow receivers drop the oldest
// buffered notification rather than block the broadcaster.
func (r *Router) NotificationReceiver() <-chan Notification {
	ch := make(chan Notification, notificationBufferSize)
	r.notifyMu.Lock()
	r.notifySubs = append(r.notifySubs, ch)
	r.notifyMu.Unlock()
	return ch
}

// BroadcastNotification is fire-and-forget: every current receiver gets
// the notification, or loses their oldest buffered one to make room.
func (r *Router) BroadcastNotification(n Notification) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	for _, ch := range r.notifySubs {
		select {
		case ch <- n:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
}

// Register adds or replaces a service. Last registration for a given id
// wins; registering an existing id emits "updated", a new id emits
// "added".
func (r *Router) Register(svc Service) {
	id := svc.ServiceID()
	r.mu.Lock()
	_, existed := r.services[id]
	r.services[id] = svc
	r.mu.Unlock()

	changed := ServicesChanged{Added: nil, Updated: nil}
	if existed {
		changed.Updated = []string{id}
	} else {
		changed.Added = []string{id}
	}
	r.BroadcastNotification(Notification{Kind: "services_changed", ServicesChanged: &changed})
}

// Unregister removes a service by id.
func (r *Router) Unregister(id string) {
	r.mu.Lock()
	_, existed := r.services[id]
	delete(r.services, id)
	r.mu.Unlock()
	if !existed {
		return
	}
	r.BroadcastNotification(Notification{
		Kind:            "services_changed",
		ServicesChanged: &ServicesChanged{Removed: []string{id}},
	})
}

func (r *Router) HasService(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[id]
	return ok
}

func (r *Router) GetService(id string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	return svc, ok
}

// ListServices returns discovery info for every registered service.
func (r *Router) ListServices() []ServiceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServiceInfo, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, ServiceInfo{
			ID:           svc.ServiceID(),
			Name:         svc.Name(),
			Version:      svc.Version(),
			Description:  svc.Description(),
			Methods:      svc.Methods(),
			Capabilities: svc.Capabilities(),
		})
	}
	return out
}

// Request is one AdiRequest frame.
type Request struct {
	RequestID string
	Service   string
	Method    string
	Params    map[string]any
}

// Outcome tags which kind of response a Handle call produced.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeServiceNotFound
	OutcomeMethodNotFound
	OutcomeError
	OutcomeStream
)

// Response is a single, non-streaming AdiRequest outcome.
type Response struct {
	Outcome          Outcome
	RequestID        string
	Service          string
	Method           string
	Data             any
	Code             string
	Message          string
	AvailableMethods []string
}

// StreamResult is returned when a service's Handle produces a stream.
type StreamResult struct {
	RequestID string
	Service   string
	Method    string
	Chunks    <-chan StreamChunk
}

// Handle dispatches one AdiRequest to its service and method.
func (r *Router) Handle(ctx context.Context, req Request) (*Response, *StreamResult) {
	svc, ok := r.GetService(req.Service)
	if !ok {
		return &Response{Outcome: OutcomeServiceNotFound, RequestID: req.RequestID, Service: req.Service, Method: req.Method}, nil
	}

	known := false
	var names []string
	for _, m := range svc.Methods() {
		names = append(names, m.Name)
		if m.Name == req.Method {
			known = true
		}
	}
	if !known {
		return &Response{
			Outcome: OutcomeMethodNotFound, RequestID: req.RequestID, Service: req.Service, Method: req.Method,
			AvailableMethods: names,
		}, nil
	}

	result, svcErr := svc.Handle(ctx, req.Method, req.Params)
	if svcErr != nil {
		return &Response{
			Outcome: OutcomeError, RequestID: req.RequestID, Service: req.Service, Method: req.Method,
			Code: svcErr.Code, Message: svcErr.Message,
		}, nil
	}
	if result.Stream != nil {
		return nil, &StreamResult{RequestID: req.RequestID, Service: req.Service, Method: req.Method, Chunks: result.Stream}
	}
	return &Response{
		Outcome: OutcomeSuccess, RequestID: req.RequestID, Service: req.Service, Method: req.Method, Data: result.Success,
	}, nil
}

// Subscribe registers a new subscription against a service's event stream.
func (r *Router) Subscribe(ctx context.Context, service, event string, filter map[string]any) (string, <-chan SubscriptionEvent, *ServiceError) {
	svc, ok := r.GetService(service)
	if !ok {
		return "", nil, ServiceNotFoundErr("service not found: " + service)
	}
	if !svc.Capabilities().Subscriptions {
		return "", nil, NotSupported("service does not support subscriptions")
	}
	ch, err := svc.Subscribe(ctx, event, filter)
	if err != nil {
		return "", nil, err
	}

	id := uuid.NewString()
	r.subMu.Lock()
	r.subscriptions[id] = activeSubscription{service: service, event: event}
	r.subMu.Unlock()
	return id, ch, nil
}

// Unsubscribe removes a subscription and always reports success, whether
// or not the id was found, so clients can unsubscribe idempotently.
func (r *Router) Unsubscribe(subscriptionID string) {
	r.subMu.Lock()
	delete(r.subscriptions, subscriptionID)
	r.subMu.Unlock()
}

func (r *Router) SubscriptionCount() int {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	return len(r.subscriptions)
}

// ClientConnected/ClientDisconnected fan out lifecycle events to every
// registered service.
func (r *Router) ClientConnected(clientID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.services {
		svc.OnClientConnected(clientID)
	}
}

func (r *Router) ClientDisconnected(clientID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.services {
		svc.OnClientDisconnected(clientID)
	}
}
