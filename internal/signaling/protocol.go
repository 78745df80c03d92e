// Package signaling owns the single outbound WebSocket to the signaling
// server: framing, registration, the shared write sink, and reconnection.
package signaling

import "encoding/json"

// Frame type discriminators, snake_case on the wire.
const (
	TypeRegister             = "register"
	TypeRegisterWithSetup    = "register_with_setup_token"
	TypeRegistered           = "registered"
	TypeRegisteredWithOwner  = "registered_with_owner"
	TypeDeregister           = "deregister"
	TypeDeregistered         = "deregistered"
	TypeSyncData             = "sync_data"
	TypePeerConnected        = "peer_connected"
	TypePeerDisconnected     = "peer_disconnected"
	TypeError                = "error"

	TypeWebRTCStartSession = "web_rtc_start_session"
	TypeWebRTCOffer        = "web_rtc_offer"
	TypeWebRTCAnswer       = "web_rtc_answer"
	TypeWebRTCIceCandidate = "web_rtc_ice_candidate"
	TypeWebRTCSessionEnded = "web_rtc_session_ended"
	TypeWebRTCData         = "web_rtc_data"
	TypeWebRTCError        = "web_rtc_error"
)

// Envelope is the outer frame every message is wrapped in; Type routes it.
type Envelope struct {
	Type string `json:"type"`
}

// Register is sent on connect when no setup token is configured.
type Register struct {
	Type     string  `json:"type"`
	Secret   string  `json:"secret"`
	DeviceID *string `json:"device_id"`
	Version  string  `json:"version,omitempty"`
}

// RegisterWithSetupToken is sent on connect when a one-shot setup token is
// configured, letting the server auto-associate this cocoon with an account.
type RegisterWithSetupToken struct {
	Type       string `json:"type"`
	Secret     string `json:"secret"`
	SetupToken string `json:"setup_token"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
}

type Registered struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

type RegisteredWithOwner struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name,omitempty"`
}

type Deregister struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
	Reason   string `json:"reason,omitempty"`
}

type Deregistered struct {
	Type string `json:"type"`
}

// SyncData carries an opaque payload, itself discriminated by its own
// "type" field as a CommandRequest or CommandResponse variant.
type SyncData struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type PeerConnected struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id,omitempty"`
}

type PeerDisconnected struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id,omitempty"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WebRTC signaling frames (§4.11).

type WebRTCStartSession struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type WebRTCOffer struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	SDP       string `json:"sdp"`
}

type WebRTCAnswer struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	SDP       string `json:"sdp"`
}

type WebRTCIceCandidate struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdp_mid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdp_mline_index,omitempty"`
}

type WebRTCSessionEnded struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

type WebRTCData struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Channel   string `json:"channel"`
	Data      string `json:"data"`
	Binary    bool   `json:"binary"`
}

type WebRTCError struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}
