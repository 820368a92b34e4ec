package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"chess-arena/internal/auth"
	"chess-arena/internal/store"
)

type sentEvent struct {
	event string
	data  any
}

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []sentEvent
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events = append(c.events, sentEvent{event: event, data: data})
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) named(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (c *fakeConn) last(event string) (any, bool) {
	all := c.named(event)
	if len(all) == 0 {
		return nil, false
	}
	return all[len(all)-1], true
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock hands out timers that only run when a test fires them.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// fire runs every live timer with duration d. With stale set it also runs
// timers that were stopped, as if they fired just before Stop took effect.
func (c *fakeClock) fire(d time.Duration, stale bool) int {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if t.d != d || t.fired || (t.stopped && !stale) {
			continue
		}
		t.fired = true
		due = append(due, t)
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

type fakeAccounts struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (a *fakeAccounts) record(op, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, op+":"+id)
	return a.err
}

func (a *fakeAccounts) FindByAccountID(context.Context, string) (store.Account, error) {
	return store.Account{}, store.ErrNotFound
}
func (a *fakeAccounts) IncrementWin(_ context.Context, id string) error  { return a.record("win", id) }
func (a *fakeAccounts) IncrementLoss(_ context.Context, id string) error { return a.record("loss", id) }
func (a *fakeAccounts) IncrementDraw(_ context.Context, id string) error { return a.record("draw", id) }

func (a *fakeAccounts) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type testEnv struct {
	hub      *Hub
	clock    *fakeClock
	accounts *fakeAccounts
	seq      int
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{clock: &fakeClock{}, accounts: &fakeAccounts{}}
	opts.AfterFunc = env.clock.AfterFunc
	env.hub = NewHub(env.accounts, opts)
	t.Cleanup(env.hub.Close)
	return env
}

type player struct {
	ac   auth.AuthenticatedConnection
	conn *fakeConn
}

func (e *testEnv) connect(t *testing.T, id auth.Identity) player {
	t.Helper()
	e.seq++
	ac := auth.AuthenticatedConnection{
		Identity:    id,
		ConnID:      fmt.Sprintf("conn-%d", e.seq),
		ConnectedAt: time.Now(),
	}
	c := newFakeConn(ac.ConnID)
	if err := e.hub.Connect(ac, c); err != nil {
		t.Fatalf("connect %s: %v", id.ID, err)
	}
	return player{ac: ac, conn: c}
}

func (e *testEnv) disconnect(p player) {
	e.hub.Disconnect(p.ac, p.conn)
}

func account(id, name string) auth.Identity {
	return auth.Identity{ID: id, DisplayName: name}
}

func guest(name string) auth.Identity {
	return auth.Identity{ID: "GUEST_" + name, DisplayName: name, IsGuest: true}
}

// seatedPair connects two accounts, U creates room r1 and V joins it.
func seatedPair(t *testing.T, e *testEnv, u, v auth.Identity) (player, player) {
	t.Helper()
	pu := e.connect(t, u)
	pv := e.connect(t, v)
	if err := e.hub.CreateRoom(pu.ac, pu.conn, "r1"); err != nil {
		t.Fatalf("create r1: %v", err)
	}
	if err := e.hub.JoinRoom(pv.ac, pv.conn, "r1"); err != nil {
		t.Fatalf("join r1: %v", err)
	}
	pu.conn.reset()
	pv.conn.reset()
	return pu, pv
}
