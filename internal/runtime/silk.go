package runtime

import (
	"context"
	"encoding/json"

	"github.com/adi-family/cocoon/internal/signaling"
	"github.com/adi-family/cocoon/internal/silk"
)

func (a *Agent) handleSilkCreate(ctx context.Context, payload json.RawMessage) {
	var req signaling.SilkCreate
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	sess := a.silkMgr.Create(req.CWD, req.Env, req.Shell)
	a.writeSyncData(ctx, map[string]any{"type": "silk_created", "session_id": sess.ID})
}

func (a *Agent) handleSilkExecute(ctx context.Context, payload json.RawMessage) {
	var req signaling.SilkExecute
	if json.Unmarshal(payload, &req) != nil {
		return
	}

	onOutput := func(chunk silk.OutputChunk) {
		a.writeSyncData(ctx, signaling.SilkOutput{
			Type: signaling.RespSilkOutput, SessionID: chunk.SessionID, CommandID: chunk.CommandID,
			Stream: chunk.Stream, Data: chunk.Data, HTML: convertSpans(chunk.HTML),
		})
	}
	onCompleted := func(done silk.CommandCompleted) {
		a.writeSyncData(ctx, signaling.SilkCommandCompleted{
			Type: signaling.RespSilkCommandCompleted, SessionID: done.SessionID, CommandID: done.CommandID,
			ExitCode: done.ExitCode, CWD: done.CWD,
		})
	}

	outcome, err := a.silkMgr.Execute(ctx, req.SessionID, req.Command, req.CommandID, onOutput, onCompleted)
	if err != nil {
		a.writeError(ctx, "session_not_found", err.Error())
		return
	}

	if outcome.Interactive {
		a.writeSyncData(ctx, signaling.SilkInteractiveRequired{
			Type: signaling.RespSilkInteractiveRequired, SessionID: req.SessionID, CommandID: req.CommandID,
			Reason: "command requires an interactive terminal", PtySessionID: outcome.PtySessionID,
		})
		return
	}
	a.writeSyncData(ctx, signaling.SilkCommandStarted{
		Type: signaling.RespSilkCommandStarted, SessionID: req.SessionID, CommandID: req.CommandID, Interactive: false,
	})
}

func convertSpans(spans []silk.HTMLSpan) []signaling.SilkHTMLSpan {
	out := make([]signaling.SilkHTMLSpan, len(spans))
	for i, s := range spans {
		out[i] = signaling.SilkHTMLSpan{Text: s.Text, Styles: s.Styles, Classes: s.Classes}
	}
	return out
}

// handleSilkInput and handleSilkResize route to the interactive command's
// delegated PTY session, looked up by (session_id, command_id).
func (a *Agent) handleSilkInput(ctx context.Context, payload json.RawMessage) {
	var req signaling.SilkInput
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	sess, ok := a.silkMgr.Lookup(req.SessionID)
	if !ok {
		a.writeError(ctx, "session_not_found", "silk session not found")
		return
	}
	ptyID, ok := sess.InteractivePty(req.CommandID)
	if !ok {
		a.writeError(ctx, "session_not_found", "no interactive command for this id")
		return
	}
	if err := a.ptyMgr.Input(ptyID, []byte(req.Data)); err != nil {
		a.writeError(ctx, "session_not_found", err.Error())
	}
}

func (a *Agent) handleSilkResize(ctx context.Context, payload json.RawMessage) {
	var req signaling.SilkResize
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	sess, ok := a.silkMgr.Lookup(req.SessionID)
	if !ok {
		a.writeError(ctx, "session_not_found", "silk session not found")
		return
	}
	ptyID, ok := sess.InteractivePty(req.CommandID)
	if !ok {
		a.writeError(ctx, "session_not_found", "no interactive command for this id")
		return
	}
	if err := a.ptyMgr.Resize(ptyID, req.Cols, req.Rows); err != nil {
		a.writeError(ctx, "resize_failed", err.Error())
	}
}

func (a *Agent) handleSilkClose(ctx context.Context, payload json.RawMessage) {
	var req signaling.SilkClose
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	a.silkMgr.Close(req.SessionID)
}
