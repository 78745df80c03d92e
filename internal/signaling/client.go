package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	maxReconnectDelay  = 10 * time.Second
	baseReconnectDelay = time.Second
	writeTimeout       = 10 * time.Second
	readLimitBytes     = 512 * 1024
)

// FrameHandler is invoked once per inbound frame with its type tag and raw
// JSON body. It runs on the Link's single read goroutine; handlers that do
// real work should hand off to their own goroutine.
type FrameHandler func(frameType string, raw json.RawMessage)

// Link owns the single outbound WebSocket: framing, registration, the
// shared write sink, and the reconnection boundary. Every other component
// sends upstream only through Write, never by holding the connection itself.
type Link struct {
	URL        string
	Secret     string
	SetupToken string
	Name       string
	Version    string

	OnFrame      FrameHandler
	OnRegistered func(deviceID string)
	OnReconnect  func()

	mu       sync.Mutex
	conn     *websocket.Conn
	deviceID string
}

func NewLink(url, secret, setupToken, name, version string, onFrame FrameHandler) *Link {
	return &Link{
		URL:        url,
		Secret:     secret,
		SetupToken: setupToken,
		Name:       name,
		Version:    version,
		OnFrame:    onFrame,
	}
}

// SetDeviceID primes the device id sent on the next (re)connect, e.g. after
// loading a previously persisted one.
func (l *Link) SetDeviceID(id string) {
	l.mu.Lock()
	l.deviceID = id
	l.mu.Unlock()
}

func (l *Link) DeviceID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deviceID
}

// Run dials, registers, and serves frames until ctx is cancelled, retrying
// with exponential backoff on any connection failure. Invalid-secret
// failures are fatal and returned immediately without retry.
func (l *Link) Run(ctx context.Context) error {
	backoff := NewBackoff(baseReconnectDelay, maxReconnectDelay)
	first := true
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !first && l.OnReconnect != nil {
			l.OnReconnect()
		}
		err := l.connectAndServe(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if isAuthError(err) {
			return fmt.Errorf("registration rejected: %w", err)
		}
		first = false
		delay := backoff.Next()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func isAuthError(err error) bool {
	return strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "invalid secret")
}

func (l *Link) connectAndServe(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, l.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimitBytes)

	l.mu.Lock()
	l.conn = conn
	deviceID := l.deviceID
	l.mu.Unlock()

	if err := l.sendRegister(ctx, deviceID); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	type inboundFrame struct {
		env  Envelope
		data []byte
		err  error
	}
	frames := make(chan inboundFrame, 1)
	go func() {
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				frames <- inboundFrame{err: err}
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) != nil {
				continue
			}
			frames <- inboundFrame{env: env, data: data}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// The connection is still open here, unlike after Run's loop
			// returns, so this is the only place a Deregister frame can
			// actually reach the wire on shutdown.
			deregCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			_ = l.Deregister(deregCtx, l.DeviceID(), "shutdown")
			cancel()
			l.clearConn()
			return ctx.Err()
		case f := <-frames:
			if f.err != nil {
				l.clearConn()
				return fmt.Errorf("read: %w", f.err)
			}
			switch f.env.Type {
			case TypeRegistered:
				var reg Registered
				if json.Unmarshal(f.data, &reg) == nil {
					l.setDeviceID(reg.DeviceID)
				}
			case TypeRegisteredWithOwner:
				var reg RegisteredWithOwner
				if json.Unmarshal(f.data, &reg) == nil {
					l.setDeviceID(reg.DeviceID)
				}
			}
			if l.OnFrame != nil {
				l.OnFrame(f.env.Type, f.data)
			}
		}
	}
}

func (l *Link) setDeviceID(id string) {
	l.mu.Lock()
	l.deviceID = id
	l.mu.Unlock()
	if l.OnRegistered != nil {
		l.OnRegistered(id)
	}
}

func (l *Link) sendRegister(ctx context.Context, deviceID string) error {
	if l.SetupToken != "" {
		return l.Write(ctx, RegisterWithSetupToken{
			Type:       TypeRegisterWithSetup,
			Secret:     l.Secret,
			SetupToken: l.SetupToken,
			Name:       l.Name,
			Version:    l.Version,
		})
	}
	var idPtr *string
	if deviceID != "" {
		idPtr = &deviceID
	}
	return l.Write(ctx, Register{
		Type:     TypeRegister,
		Secret:   l.Secret,
		DeviceID: idPtr,
		Version:  l.Version,
	})
}

func (l *Link) clearConn() {
	l.mu.Lock()
	l.conn = nil
	l.mu.Unlock()
}

// Write is the shared sink: every component that needs to send upstream
// calls this. It is safe for concurrent use.
func (l *Link) Write(ctx context.Context, v any) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("signaling link not connected")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

// WriteSyncData wraps a CommandResponse payload in a SyncData frame.
func (l *Link) WriteSyncData(ctx context.Context, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return l.Write(ctx, SyncData{Type: TypeSyncData, Payload: raw})
}

// Deregister sends a best-effort Deregister frame through the shared sink.
// Failures are returned to the caller; the shutdown path in
// connectAndServe ignores them.
func (l *Link) Deregister(ctx context.Context, deviceID, reason string) error {
	return l.Write(ctx, Deregister{Type: TypeDeregister, DeviceID: deviceID, Reason: reason})
}

// Close closes the underlying connection, if any, causing the read loop to
// fail fast and any pending Write calls to error out.
func (l *Link) Close() error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "shutdown")
}
