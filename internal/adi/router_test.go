package adi

import (
	"context"
	"testing"
)

type testService struct {
	BaseService
	id string
}

func (s *testService) ServiceID() string  { return s.id }
func (s *testService) Name() string       { return "Test Service" }
func (s *testService) Version() string    { return "1.0.0" }
func (s *testService) Description() string { return "a test service" }
func (s *testService) Methods() []MethodInfo {
	return []MethodInfo{
		{Name: "echo"},
		{Name: "count"},
	}
}

func (s *testService) Handle(ctx context.Context, method string, params map[string]any) (HandleResult, *ServiceError) {
	switch method {
	case "echo":
		return Success(params["value"]), nil
	case "count":
		return Success(42), nil
	default:
		return HandleResult{}, MethodNotFoundErr("unknown method " + method)
	}
}

func TestRegisterAndList(t *testing.T) {
	r := NewRouter()
	r.Register(&testService{id: "test"})

	services := r.ListServices()
	if len(services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(services))
	}
	if services[0].ID != "test" {
		t.Fatalf("service id = %q", services[0].ID)
	}
}

func TestHandleSuccess(t *testing.T) {
	r := NewRouter()
	r.Register(&testService{id: "test"})

	resp, stream := r.Handle(context.Background(), Request{RequestID: "r1", Service: "test", Method: "echo", Params: map[string]any{"value": "hi"}})
	if stream != nil {
		t.Fatal("expected non-streaming response")
	}
	if resp.Outcome != OutcomeSuccess || resp.Data != "hi" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandleServiceNotFound(t *testing.T) {
	r := NewRouter()
	resp, _ := r.Handle(context.Background(), Request{RequestID: "r1", Service: "missing", Method: "echo"})
	if resp.Outcome != OutcomeServiceNotFound {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestHandleMethodNotFound(t *testing.T) {
	r := NewRouter()
	r.Register(&testService{id: "test"})
	resp, _ := r.Handle(context.Background(), Request{RequestID: "r1", Service: "test", Method: "bogus"})
	if resp.Outcome != OutcomeMethodNotFound {
		t.Fatalf("resp = %+v", resp)
	}
	if len(resp.AvailableMethods) != 2 {
		t.Fatalf("available methods = %+v", resp.AvailableMethods)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	r := NewRouter()
	// Never subscribed; both calls must succeed silently.
	r.Unsubscribe("does-not-exist")
	r.Unsubscribe("does-not-exist")
}

func TestRegisterEmitsServicesChanged(t *testing.T) {
	r := NewRouter()
	ch := r.NotificationReceiver()
	r.Register(&testService{id: "test"})

	n := <-ch
	if n.Kind != "services_changed" || n.ServicesChanged == nil {
		t.Fatalf("notification = %+v", n)
	}
	if len(n.ServicesChanged.Added) != 1 || n.ServicesChanged.Added[0] != "test" {
		t.Fatalf("added = %+v", n.ServicesChanged.Added)
	}

	r.Register(&testService{id: "test"})
	n2 := <-ch
	if len(n2.ServicesChanged.Updated) != 1 {
		t.Fatalf("expected updated on re-registration, got %+v", n2.ServicesChanged)
	}
}

func TestSubscribeRejectsUnsupportedService(t *testing.T) {
	r := NewRouter()
	r.Register(&testService{id: "test"})
	_, _, err := r.Subscribe(context.Background(), "test", "anything", nil)
	if err == nil || err.Code != "not_supported" {
		t.Fatalf("expected not_supported, got %+v", err)
	}
}
