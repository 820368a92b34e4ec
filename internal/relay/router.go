package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"

	"chess-arena/internal/auth"

	"github.com/rs/zerolog/log"
)

type Handler func(ctx context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error

// Router binds each inbound event name to one handler. Dispatch runs
// synchronously, so a transport that calls it from one read loop per
// connection keeps that connection's events in order.
type Router struct {
	hub      *Hub
	handlers map[string]Handler
}

func NewRouter(hub *Hub) *Router {
	r := &Router{hub: hub, handlers: map[string]Handler{}}
	r.Handle(EventRoomCreate, func(_ context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data)
		if err != nil {
			return err
		}
		return hub.CreateRoom(ac, c, roomID)
	})
	r.Handle(EventRoomJoin, func(_ context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data)
		if err != nil {
			return err
		}
		return hub.JoinRoom(ac, c, roomID)
	})
	r.Handle(EventIsReconnecting, func(_ context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error {
		roomID, err := decodeRoomID(data)
		if err != nil {
			return err
		}
		return hub.ConfirmReconnect(ac, c, roomID)
	})
	r.Handle(EventMakeMove, func(_ context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error {
		p, err := decodeMove(data)
		if err != nil {
			return err
		}
		return hub.MakeMove(ac, c, p)
	})
	r.Handle(EventMessage, func(_ context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error {
		p, err := decodeChat(data)
		if err != nil {
			return err
		}
		return hub.Message(ac, c, p)
	})
	r.Handle(EventResign, func(ctx context.Context, ac auth.AuthenticatedConnection, c Conn, _ json.RawMessage) error {
		return hub.Resign(ctx, ac, c)
	})
	r.Handle(EventGameOver, func(ctx context.Context, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) error {
		p, err := decodeGameOver(data)
		if err != nil {
			return err
		}
		return hub.GameOver(ctx, ac, c, p)
	})
	return r
}

func (r *Router) Handle(event string, h Handler) {
	r.handlers[event] = h
}

func (r *Router) Events() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Dispatch runs the handler for event. Business errors and recovered panics
// are reported to c as error events; the connection stays open.
func (r *Router) Dispatch(ctx context.Context, ac auth.AuthenticatedConnection, c Conn, event string, data json.RawMessage) {
	h, ok := r.handlers[event]
	if !ok {
		r.hub.metrics.events.WithLabelValues("unknown").Inc()
		log.Debug().Str("conn_id", ac.ConnID).Str("event", event).Msg("unknown event ignored")
		return
	}
	r.hub.metrics.events.WithLabelValues(event).Inc()

	err := r.invoke(ctx, h, ac, c, data)
	if err == nil {
		return
	}
	payload := errorPayload(err)
	r.hub.metrics.errors.WithLabelValues(payload.Code).Inc()
	ev := log.Debug()
	if errors.Is(err, ErrInternal) {
		ev = log.Error()
	}
	ev.Err(err).
		Str("identity_id", ac.Identity.ID).
		Str("conn_id", ac.ConnID).
		Str("event", event).
		Str("code", payload.Code).
		Msg("event rejected")
	c.Send(EventError, payload)
}

func (r *Router) invoke(ctx context.Context, h Handler, ac auth.AuthenticatedConnection, c Conn, data json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("identity_id", ac.Identity.ID).
				Str("conn_id", ac.ConnID).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
			err = fmt.Errorf("panic: %v: %w", rec, ErrInternal)
		}
	}()
	return h(ctx, ac, c, data)
}
