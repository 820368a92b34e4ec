package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"chess-arena/internal/auth"
	"chess-arena/internal/relay"
	"chess-arena/internal/store"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultPingInterval = 54 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultWriteWait    = 10 * time.Second
	defaultMaxMessage   = 64 << 10
	defaultSendBuffer   = 64
)

type Verifier interface {
	Verify(ctx context.Context, credential string) (auth.Identity, error)
}

type Hub interface {
	Connect(ac auth.AuthenticatedConnection, c relay.Conn) error
	Disconnect(ac auth.AuthenticatedConnection, c relay.Conn)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ac auth.AuthenticatedConnection, c relay.Conn, event string, data json.RawMessage)
}

type Options struct {
	SendBuffer      int
	AllowedOrigins  []string
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageBytes int64
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = defaultMaxMessage
	}
	return o
}

type Server struct {
	verifier Verifier
	hub      Hub
	router   Dispatcher
	upgrader websocket.Upgrader
	opts     Options
}

func NewServer(verifier Verifier, hub Hub, router Dispatcher, opts Options) *Server {
	opts = opts.withDefaults()
	s := &Server{verifier: verifier, hub: hub, router: router, opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

// HandleWS authenticates the upgrade request, then runs the connection until
// the client goes away. No event is dispatched for an unauthenticated peer.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Verify(r.Context(), auth.CredentialFromRequest(r))
	if err != nil {
		code := auth.ErrInvalidCredential.Error()
		if errors.Is(err, auth.ErrMissingCredential) {
			code = auth.ErrMissingCredential.Error()
		}
		log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket handshake rejected")
		writeJSON(w, http.StatusUnauthorized, httpError{Error: code})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	ac := auth.AuthenticatedConnection{
		Identity:    identity,
		ConnID:      store.NewPrefixedID("conn"),
		RemoteAddr:  r.RemoteAddr,
		ConnectedAt: time.Now(),
	}
	c := newClient(ac.ConnID, conn, s.opts.SendBuffer)
	go c.writePump(s.opts)

	if err := s.hub.Connect(ac, c); err != nil {
		c.Send(relay.EventError, relay.PayloadFor(err))
		c.Close()
		return
	}
	s.readPump(r.Context(), ac, c)
}

func (s *Server) readPump(ctx context.Context, ac auth.AuthenticatedConnection, c *client) {
	defer func() {
		s.hub.Disconnect(ac, c)
		c.Close()
	}()

	c.conn.SetReadLimit(s.opts.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		mt, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("conn_id", ac.ConnID).Msg("websocket read failed")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var f Frame
		if err := json.Unmarshal(msg, &f); err != nil || f.Event == "" {
			c.Send(relay.EventError, relay.PayloadFor(relay.ErrInvalidPayload))
			continue
		}
		s.router.Dispatch(ctx, ac, c, f.Event, f.Data)
	}
}

// client adapts a gorilla connection to relay.Conn.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send queues a frame. It never blocks: frames sent after Close, or while the
// buffer is full, are dropped.
func (c *client) Send(event string, data any) {
	msg, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.id).Str("event", event).Msg("encode frame failed")
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- msg:
	default:
		log.Warn().Str("conn_id", c.id).Str("event", event).Msg("send buffer full, frame dropped")
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) writePump(opts Options) {
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg, opts.WriteWait); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil, opts.WriteWait); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush(opts.WriteWait)
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Second)
			return
		}
	}
}

// flush writes whatever was queued before Close, so a final error frame
// reaches the peer.
func (c *client) flush(wait time.Duration) {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg, wait); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(mt int, msg []byte, wait time.Duration) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(mt, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
