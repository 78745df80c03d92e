package runtime

import (
	"context"
	"encoding/json"

	"github.com/adi-family/cocoon/internal/fsops"
	"github.com/adi-family/cocoon/internal/signaling"
)

func (a *Agent) handleWebRTCStartSession(req signaling.WebRTCStartSession) {
	if err := a.rtcMgr.CreateSession(req.SessionID); err != nil {
		a.writeSyncData(context.Background(), signaling.WebRTCError{
			Type: signaling.TypeWebRTCError, SessionID: req.SessionID, Message: err.Error(),
		})
	}
}

func (a *Agent) handleWebRTCOffer(req signaling.WebRTCOffer) {
	answer, err := a.rtcMgr.HandleOffer(req.SessionID, req.SDP)
	if err != nil {
		a.writeSyncData(context.Background(), signaling.WebRTCError{
			Type: signaling.TypeWebRTCError, SessionID: req.SessionID, Message: err.Error(),
		})
		return
	}
	a.link.Write(context.Background(), signaling.WebRTCAnswer{
		Type: signaling.TypeWebRTCAnswer, SessionID: req.SessionID, SDP: answer,
	})
}

func (a *Agent) handleWebRTCIceCandidate(req signaling.WebRTCIceCandidate) {
	if err := a.rtcMgr.AddICECandidate(req.SessionID, req.Candidate, req.SDPMid, req.SDPMLineIndex); err != nil {
		a.log.Warn("add ice candidate failed", "session", req.SessionID, "err", err)
	}
}

func (a *Agent) handleWebRTCData(req signaling.WebRTCData) {
	if err := a.rtcMgr.SendData(req.SessionID, req.Channel, req.Data, req.Binary); err != nil {
		a.log.Warn("send data failed", "session", req.SessionID, "channel", req.Channel, "err", err)
	}
}

// fileChannelRequest/Response mirror the shapes exchanged over the WebRTC
// "file" data channel: a small filesystem RPC independent of the
// signaling link.
type fileChannelRequest struct {
	Op       string `json:"op"`
	Path     string `json:"path"`
	Offset   int64  `json:"offset,omitempty"`
	Limit    int64  `json:"limit,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
}

type fileChannelResponse struct {
	Op    string `json:"op"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// handleFileChannelRequest answers a filesystem request received on the
// WebRTC "file" data channel directly, without going through the
// signaling link.
func (a *Agent) handleFileChannelRequest(raw json.RawMessage) json.RawMessage {
	var req fileChannelRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return mustMarshal(fileChannelResponse{Error: "invalid request"})
	}

	var data any
	var fsErr *fsops.Error
	switch req.Op {
	case "list_dir":
		data, fsErr = fsops.ListDir(req.Path)
	case "read_file":
		data, fsErr = fsops.ReadFile(req.Path, req.Offset, req.Limit)
	case "stat":
		data, fsErr = fsops.Stat(req.Path)
	case "walk":
		data, fsErr = fsops.Walk(req.Path, req.MaxDepth, req.Pattern)
	default:
		return mustMarshal(fileChannelResponse{Op: req.Op, Error: "unknown op"})
	}

	if fsErr != nil {
		return mustMarshal(fileChannelResponse{Op: req.Op, Error: fsErr.Message, Code: fsErr.Code})
	}
	return mustMarshal(fileChannelResponse{Op: req.Op, Data: data})
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{"error":"encode failure"}`)
	}
	return data
}
