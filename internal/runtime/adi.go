package runtime

import (
	"context"
	"encoding/json"

	"github.com/adi-family/cocoon/internal/adi"
	"github.com/adi-family/cocoon/internal/signaling"
)

func (a *Agent) handleAdiRequest(ctx context.Context, payload json.RawMessage) {
	var req signaling.AdiRequest
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	resp, stream := a.router.Handle(ctx, adi.Request{
		RequestID: req.RequestID, Service: req.Service, Method: req.Method, Params: req.Params,
	})

	if stream != nil {
		for chunk := range stream.Chunks {
			a.writeSyncData(ctx, signaling.AdiSuccess{
				Type: signaling.RespAdiSuccess, RequestID: stream.RequestID, Service: stream.Service, Method: stream.Method, Data: chunk.Data,
			})
			if chunk.Done {
				break
			}
		}
		return
	}

	switch resp.Outcome {
	case adi.OutcomeSuccess:
		a.writeSyncData(ctx, signaling.AdiSuccess{
			Type: signaling.RespAdiSuccess, RequestID: resp.RequestID, Service: resp.Service, Method: resp.Method, Data: resp.Data,
		})
	case adi.OutcomeServiceNotFound:
		a.writeSyncData(ctx, signaling.AdiServiceNotFound{
			Type: signaling.RespAdiServiceNotFound, RequestID: resp.RequestID, Service: resp.Service,
		})
	case adi.OutcomeMethodNotFound:
		a.writeSyncData(ctx, signaling.AdiMethodNotFound{
			Type: signaling.RespAdiMethodNotFound, RequestID: resp.RequestID, Service: resp.Service, Method: resp.Method,
			AvailableMethods: resp.AvailableMethods,
		})
	case adi.OutcomeError:
		a.writeSyncData(ctx, signaling.AdiErrorResponse{
			Type: signaling.RespAdiError, RequestID: resp.RequestID, Service: resp.Service, Method: resp.Method,
			Code: resp.Code, Message: resp.Message,
		})
	}
}

func (a *Agent) handleAdiSubscribe(ctx context.Context, payload json.RawMessage) {
	var req signaling.AdiSubscribeRequest
	if json.Unmarshal(payload, &req) != nil {
		return
	}

	id, ch, svcErr := a.router.Subscribe(ctx, req.Service, req.Event, req.Filter)
	if svcErr != nil {
		a.writeSyncData(ctx, signaling.AdiErrorResponse{
			Type: signaling.RespAdiError, Service: req.Service, Code: svcErr.Code, Message: svcErr.Message,
		})
		return
	}

	subCtx, cancel := context.WithCancel(context.Background())
	a.adiSubsMu.Lock()
	a.adiSubStop[id] = cancel
	a.adiSubsMu.Unlock()

	go a.forwardAdiSubscriptionEvents(subCtx, id, ch)

	a.writeSyncData(ctx, signaling.AdiSubscribed{
		Type: signaling.RespAdiSubscribed, SubscriptionID: id, Service: req.Service, Event: req.Event,
	})
}

func (a *Agent) handleAdiUnsubscribe(ctx context.Context, payload json.RawMessage) {
	var req signaling.AdiUnsubscribeRequest
	if json.Unmarshal(payload, &req) != nil {
		return
	}
	a.router.Unsubscribe(req.SubscriptionID)

	a.adiSubsMu.Lock()
	if cancel, ok := a.adiSubStop[req.SubscriptionID]; ok {
		cancel()
		delete(a.adiSubStop, req.SubscriptionID)
	}
	a.adiSubsMu.Unlock()

	a.writeSyncData(ctx, signaling.AdiUnsubscribed{Type: signaling.RespAdiUnsubscribed, SubscriptionID: req.SubscriptionID})
}

func (a *Agent) forwardAdiSubscriptionEvents(ctx context.Context, subscriptionID string, ch <-chan adi.SubscriptionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			a.writeSyncData(context.Background(), signaling.AdiEvent{
				Type: signaling.RespAdiEvent, SubscriptionID: subscriptionID, Service: ev.Service, Event: ev.Event, Data: ev.Data,
			})
		}
	}
}

func (a *Agent) forwardServicesChanged(ctx context.Context) {
	ch := a.router.NotificationReceiver()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-ch:
			if n.Kind != "services_changed" || n.ServicesChanged == nil {
				continue
			}
			a.writeSyncData(context.Background(), signaling.AdiServicesChanged{
				Type: signaling.RespAdiServicesChanged,
				Added: n.ServicesChanged.Added, Removed: n.ServicesChanged.Removed, Updated: n.ServicesChanged.Updated,
			})
		}
	}
}
