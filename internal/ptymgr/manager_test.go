package ptymgr

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adi-family/cocoon/internal/signaling"
)

func newTestManager(t *testing.T) (*Manager, *sync.Mutex, *[]any) {
	t.Helper()
	var mu sync.Mutex
	var frames []any
	m := NewManager(func(payload any) {
		mu.Lock()
		frames = append(frames, payload)
		mu.Unlock()
	})
	return m, &mu, &frames
}

func TestCreateAndOutput(t *testing.T) {
	m, mu, frames := newTestManager(t)

	id, err := m.Create("echo hello-pty", 80, 24, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	deadline := time.Now().Add(3 * time.Second)
	var gotOutput, gotExit bool
	var decoded strings.Builder
	for time.Now().Before(deadline) {
		mu.Lock()
		for _, f := range *frames {
			switch v := f.(type) {
			case signaling.PtyOutput:
				raw, _ := base64.StdEncoding.DecodeString(v.Data)
				decoded.Write(raw)
				gotOutput = true
			case signaling.PtyExited:
				gotExit = true
			}
		}
		mu.Unlock()
		if gotExit {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !gotOutput {
		t.Fatal("expected at least one PtyOutput frame")
	}
	if !gotExit {
		t.Fatal("expected a PtyExited frame")
	}
	if !strings.Contains(decoded.String(), "hello-pty") {
		t.Fatalf("decoded output = %q, want it to contain hello-pty", decoded.String())
	}
}

func TestReattachReplaysBufferedOutput(t *testing.T) {
	m, mu, frames := newTestManager(t)
	id, err := m.Create("echo reattach-me", 80, 24, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(*frames)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	replay, err := m.Reattach(id)
	if err != nil {
		t.Fatalf("Reattach: %v", err)
	}
	if !strings.Contains(string(replay), "reattach-me") {
		t.Fatalf("replay = %q, want it to contain reattach-me", replay)
	}
}

func TestReattachUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	if _, err := m.Reattach("nonexistent"); err == nil {
		t.Fatal("expected session_not_found error")
	}
}

func TestInputUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.Input("nonexistent", []byte("x")); err == nil {
		t.Fatal("expected session_not_found error")
	}
}

func TestResizeUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(t)
	if err := m.Resize("nonexistent", 80, 24); err == nil {
		t.Fatal("expected session_not_found error")
	}
}

func TestCloseReapsSession(t *testing.T) {
	m, mu, frames := newTestManager(t)
	id, err := m.Create("sleep 5", 80, 24, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !m.Has(id) {
		t.Fatal("expected session to be live")
	}
	if err := m.Close(id); err != nil {
		t.Fatalf("Close: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	var gotExit bool
	for time.Now().Before(deadline) {
		mu.Lock()
		for _, f := range *frames {
			if _, ok := f.(signaling.PtyExited); ok {
				gotExit = true
			}
		}
		mu.Unlock()
		if gotExit {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !gotExit {
		t.Fatal("expected PtyExited frame after Close")
	}
	if m.Has(id) {
		t.Fatal("expected session removed after exit")
	}
}
