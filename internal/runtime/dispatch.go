package runtime

import (
	"context"
	"encoding/json"

	"github.com/adi-family/cocoon/internal/signaling"
)

// onFrame runs on the Link's single read goroutine. Each command is
// dispatched to its own goroutine so a slow handler (a long-running
// batch command, a blocking proxy request) never stalls the read loop.
func (a *Agent) onFrame(frameType string, raw json.RawMessage) {
	switch frameType {
	case signaling.TypeSyncData:
		var sd signaling.SyncData
		if json.Unmarshal(raw, &sd) != nil {
			return
		}
		go a.dispatchSyncData(sd.Payload)
	case signaling.TypeWebRTCStartSession:
		var req signaling.WebRTCStartSession
		if json.Unmarshal(raw, &req) == nil {
			go a.handleWebRTCStartSession(req)
		}
	case signaling.TypeWebRTCOffer:
		var req signaling.WebRTCOffer
		if json.Unmarshal(raw, &req) == nil {
			go a.handleWebRTCOffer(req)
		}
	case signaling.TypeWebRTCIceCandidate:
		var req signaling.WebRTCIceCandidate
		if json.Unmarshal(raw, &req) == nil {
			go a.handleWebRTCIceCandidate(req)
		}
	case signaling.TypeWebRTCData:
		var req signaling.WebRTCData
		if json.Unmarshal(raw, &req) == nil {
			go a.handleWebRTCData(req)
		}
	case signaling.TypeWebRTCSessionEnded:
		var req signaling.WebRTCSessionEnded
		if json.Unmarshal(raw, &req) == nil {
			go a.rtcMgr.CloseSession(req.SessionID)
		}
	case signaling.TypeDeregistered:
		a.log.Info("deregistered by server")
	case signaling.TypeError:
		var ef signaling.ErrorFrame
		if json.Unmarshal(raw, &ef) == nil {
			a.log.Warn("signaling error frame", "message", ef.Message)
		}
	case signaling.TypePeerConnected, signaling.TypePeerDisconnected:
		// Ignored; no per-peer state is kept outside WebRTC sessions.
	}
}

type payloadEnvelope struct {
	Type string `json:"type"`
}

func (a *Agent) dispatchSyncData(payload json.RawMessage) {
	var env payloadEnvelope
	if json.Unmarshal(payload, &env) != nil {
		return
	}

	ctx := context.Background()
	switch env.Type {
	case signaling.CmdExecute:
		a.handleExecute(ctx, payload)
	case signaling.CmdAttachPty:
		a.handleAttachPty(ctx, payload)
	case signaling.CmdPtyInput:
		a.handlePtyInput(ctx, payload)
	case signaling.CmdPtyResize:
		a.handlePtyResize(ctx, payload)
	case signaling.CmdPtyClose:
		a.handlePtyClose(ctx, payload)
	case signaling.CmdProxyHTTP:
		a.handleProxyHTTP(ctx, payload)
	case signaling.CmdQueryLocal:
		a.handleQueryLocal(ctx, payload)
	case signaling.CmdSilkCreate:
		a.handleSilkCreate(ctx, payload)
	case signaling.CmdSilkExecute:
		a.handleSilkExecute(ctx, payload)
	case signaling.CmdSilkInput:
		a.handleSilkInput(ctx, payload)
	case signaling.CmdSilkResize:
		a.handleSilkResize(ctx, payload)
	case signaling.CmdSilkClose:
		a.handleSilkClose(ctx, payload)
	case signaling.CmdAdiRequest:
		a.handleAdiRequest(ctx, payload)
	case signaling.CmdAdiSubscribe:
		a.handleAdiSubscribe(ctx, payload)
	case signaling.CmdAdiUnsubscribe:
		a.handleAdiUnsubscribe(ctx, payload)
	}
}
