package runtime

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/adi-family/cocoon/internal/signaling"
)

func (a *Agent) handleExecute(ctx context.Context, payload json.RawMessage) {
	var req signaling.Execute
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	result := a.executor.Execute(ctx, req.Command, req.Input)
	a.writeSyncData(ctx, result)
}

func (a *Agent) handleAttachPty(ctx context.Context, payload json.RawMessage) {
	var req signaling.AttachPty
	if json.Unmarshal(payload, &req) != nil {
		return
	}

	if req.SessionID != "" {
		replay, err := a.ptyMgr.Reattach(req.SessionID)
		if err != nil {
			a.writeError(ctx, "session_not_found", err.Error())
			return
		}
		a.writeSyncData(ctx, signaling.PtyCreated{Type: signaling.RespPtyCreated, SessionID: req.SessionID})
		if len(replay) > 0 {
			a.writeSyncData(ctx, signaling.PtyOutput{
				Type:      signaling.RespPtyOutput,
				SessionID: req.SessionID,
				Data:      base64.StdEncoding.EncodeToString(replay),
			})
		}
		return
	}

	cols, rows := req.Cols, req.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	id, err := a.ptyMgr.Create(req.Command, cols, rows, req.Env)
	if err != nil {
		a.writeError(ctx, "pty_create_failed", err.Error())
		return
	}
	a.writeSyncData(ctx, signaling.PtyCreated{Type: signaling.RespPtyCreated, SessionID: id})
}

func (a *Agent) handlePtyInput(ctx context.Context, payload json.RawMessage) {
	var req signaling.PtyInput
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	if err := a.ptyMgr.Input(req.SessionID, []byte(req.Data)); err != nil {
		a.writeError(ctx, "session_not_found", err.Error())
	}
}

func (a *Agent) handlePtyResize(ctx context.Context, payload json.RawMessage) {
	var req signaling.PtyResize
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	if err := a.ptyMgr.Resize(req.SessionID, req.Cols, req.Rows); err != nil {
		a.writeError(ctx, "resize_failed", err.Error())
	}
}

func (a *Agent) handlePtyClose(ctx context.Context, payload json.RawMessage) {
	var req signaling.PtyClose
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	if err := a.ptyMgr.Close(req.SessionID); err != nil {
		a.writeError(ctx, "session_not_found", err.Error())
	}
}

func (a *Agent) handleProxyHTTP(ctx context.Context, payload json.RawMessage) {
	var req signaling.ProxyHTTP
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	result := a.proxyReg.Forward(ctx, req.ServiceName, req.Method, req.Path, req.Headers, req.Body)
	a.writeSyncData(ctx, signaling.ProxyResult{
		Type: signaling.RespProxyResult, RequestID: req.RequestID,
		StatusCode: result.StatusCode, Headers: result.Headers, Body: result.Body,
	})
}

// handleQueryLocal answers query_type="task" from the Tasks ADI service
// directly, rather than returning stub data.
func (a *Agent) handleQueryLocal(ctx context.Context, payload json.RawMessage) {
	var req signaling.QueryLocal
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	if req.QueryType != "task" {
		a.writeSyncData(ctx, signaling.QueryResult{Type: signaling.RespQueryResult, QueryID: req.QueryID, IsFinal: true, Data: nil})
		return
	}
	method, _ := req.Params["method"].(string)
	if method == "" {
		method = "list"
	}
	result, svcErr := a.tasksSvc.Handle(ctx, method, req.Params)
	if svcErr != nil {
		a.writeSyncData(ctx, signaling.QueryResult{Type: signaling.RespQueryResult, QueryID: req.QueryID, IsFinal: true, Data: map[string]any{"error": svcErr.Message}})
		return
	}
	a.writeSyncData(ctx, signaling.QueryResult{Type: signaling.RespQueryResult, QueryID: req.QueryID, IsFinal: true, Data: result.Success})
}

func (a *Agent) writeSyncData(ctx context.Context, payload any) {
	if err := a.link.WriteSyncData(ctx, payload); err != nil {
		a.log.Warn("sync_data send failed", "err", err)
	}
}

func (a *Agent) writeError(ctx context.Context, code, message string) {
	a.writeSyncData(ctx, signaling.CommandError{Type: signaling.RespError, Code: code, Message: message})
}
