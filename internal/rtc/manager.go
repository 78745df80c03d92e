// Package rtc implements the WebRTC session manager: it terminates
// browser peer connections over data channels and bridges them back to
// the agent's filesystem handler and the signaling link.
package rtc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/adi-family/cocoon/internal/signaling"
)

const closeTimeout = 5 * time.Second

// Sink is the subset of the signaling link a session needs to forward
// upstream frames.
type Sink interface {
	Write(ctx context.Context, v any) error
}

// FileRequestHandler answers a filesystem request received on the "file"
// data channel and returns the JSON response to write back on the same
// channel.
type FileRequestHandler func(request json.RawMessage) json.RawMessage

type sessionState int

const (
	statePending sessionState = iota
	stateConnected
	stateDisconnected
	stateFailed
	stateClosed
)

type session struct {
	id    string
	pc    *webrtc.PeerConnection
	state sessionState

	mu       sync.Mutex
	channels map[string]*webrtc.DataChannel
}

// Manager owns every live WebRTC session, keyed by session id. Removal
// from the map is the authoritative signal of liveness.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*session
	iceServers []webrtc.ICEServer
	sink       Sink
	fileHandler FileRequestHandler
	log        *slog.Logger
}

func NewManager(iceServers []webrtc.ICEServer, sink Sink, fileHandler FileRequestHandler, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		sessions:    make(map[string]*session),
		iceServers:  iceServers,
		sink:        sink,
		fileHandler: fileHandler,
		log:         log,
	}
}

func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CreateSession builds a fresh peer connection for sessionID, replacing
// any prior session under the same id. Creation is synchronous so an
// offer arriving immediately after is guaranteed to find the session.
func (m *Manager) CreateSession(sessionID string) error {
	config := webrtc.Configuration{ICEServers: m.iceServers}
	pc, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return fmt.Errorf("session_create_failed: %w", err)
	}

	sess := &session{id: sessionID, pc: pc, state: statePending, channels: make(map[string]*webrtc.DataChannel)}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		idx := init.SDPMLineIndex
		m.send(signaling.WebRTCIceCandidate{
			Type:          signaling.TypeWebRTCIceCandidate,
			SessionID:     sessionID,
			Candidate:     init.Candidate,
			SDPMid:        derefStr(init.SDPMid),
			SDPMLineIndex: idx,
		})
	})

	pc.OnICEGatheringStateChange(func(s webrtc.ICEGathererState) {
		m.log.Debug("ice gathering state", "session", sessionID, "state", s.String())
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		m.log.Debug("ice connection state", "session", sessionID, "state", s.String())
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		m.log.Info("peer connection state", "session", sessionID, "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateConnected:
			sess.mu.Lock()
			sess.state = stateConnected
			sess.mu.Unlock()
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			// Only remove the map entry if it is still this session, so a
			// replaced or closed-then-recreated session under the same id
			// survives the old peer connection's late state change.
			m.mu.Lock()
			if m.sessions[sessionID] == sess {
				delete(m.sessions, sessionID)
			}
			m.mu.Unlock()
			m.send(signaling.WebRTCSessionEnded{Type: signaling.TypeWebRTCSessionEnded, SessionID: sessionID, Reason: s.String()})
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		label := dc.Label()
		sess.mu.Lock()
		sess.channels[label] = dc
		sess.mu.Unlock()

		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			m.handleDataChannelMessage(sessionID, label, dc, msg)
		})
	})

	m.mu.Lock()
	if old, ok := m.sessions[sessionID]; ok {
		old.mu.Lock()
		old.state = stateClosed
		old.mu.Unlock()
		go old.pc.Close()
	}
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	return nil
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (m *Manager) handleDataChannelMessage(sessionID, channel string, dc *webrtc.DataChannel, msg webrtc.DataChannelMessage) {
	if channel == "file" {
		if m.fileHandler == nil {
			return
		}
		resp := m.fileHandler(json.RawMessage(msg.Data))
		if resp != nil {
			dc.Send(resp)
		}
		return
	}

	data := string(msg.Data)
	binary := msg.IsString == false
	if binary {
		data = base64.StdEncoding.EncodeToString(msg.Data)
	}
	m.send(signaling.WebRTCData{
		Type: signaling.TypeWebRTCData, SessionID: sessionID, Channel: channel, Data: data, Binary: binary,
	})
}

func (m *Manager) send(v any) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Write(context.Background(), v); err != nil {
		m.log.Warn("webrtc upstream send failed", "err", err)
	}
}

func (m *Manager) getSession(sessionID string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

func (m *Manager) removeSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// HandleOffer sets the remote description, creates an answer, waits for
// ICE gathering, and returns the answer SDP.
func (m *Manager) HandleOffer(sessionID, sdp string) (string, error) {
	sess, ok := m.getSession(sessionID)
	if !ok {
		return "", fmt.Errorf("session_not_found: %s", sessionID)
	}

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := sess.pc.SetRemoteDescription(offer); err != nil {
		return "", fmt.Errorf("offer_failed: set remote description: %w", err)
	}

	answer, err := sess.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("offer_failed: create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(sess.pc)
	if err := sess.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("offer_failed: set local description: %w", err)
	}
	<-gatherComplete

	local := sess.pc.LocalDescription()
	if local == nil {
		return "", fmt.Errorf("offer_failed: no local description after ICE gathering")
	}
	return local.SDP, nil
}

// AddICECandidate adds a remote ICE candidate to an existing session.
func (m *Manager) AddICECandidate(sessionID, candidate string, sdpMid string, sdpMLineIndex *uint16) error {
	sess, ok := m.getSession(sessionID)
	if !ok {
		return fmt.Errorf("session_not_found: %s", sessionID)
	}
	init := webrtc.ICECandidateInit{Candidate: candidate}
	if sdpMid != "" {
		init.SDPMid = &sdpMid
	}
	init.SDPMLineIndex = sdpMLineIndex
	return sess.pc.AddICECandidate(init)
}

// SendData writes a payload to channel on an existing session's data
// channel. Binary payloads are base64-decoded before sending.
func (m *Manager) SendData(sessionID, channel, data string, binary bool) error {
	sess, ok := m.getSession(sessionID)
	if !ok {
		return fmt.Errorf("session_not_found: %s", sessionID)
	}
	sess.mu.Lock()
	dc, ok := sess.channels[channel]
	sess.mu.Unlock()
	if !ok {
		return fmt.Errorf("channel_not_found: %s", channel)
	}
	if binary {
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return fmt.Errorf("decode binary payload: %w", err)
		}
		return dc.Send(raw)
	}
	return dc.SendText(data)
}

// CloseSession removes the session from the map first so recreation is
// always immediately possible, then closes the peer connection under a
// bounded timeout. A timeout or close error is logged but never
// surfaced — the session is gone either way.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	done := make(chan error, 1)
	go func() { done <- sess.pc.Close() }()

	select {
	case err := <-done:
		if err != nil {
			m.log.Warn("webrtc session close error", "session", sessionID, "err", err)
		}
	case <-time.After(closeTimeout):
		m.log.Warn("webrtc session close timed out", "session", sessionID)
	}
}

// CloseAll closes every live session, used on agent shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.CloseSession(id)
	}
}
