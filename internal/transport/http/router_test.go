package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chess-arena/internal/auth"
	"chess-arena/internal/relay"
	"chess-arena/internal/store"

	"github.com/prometheus/client_golang/prometheus"
)

type stubConn struct {
	id     string
	mu     sync.Mutex
	closed bool
}

func (c *stubConn) ID() string { return c.id }
func (c *stubConn) Send(string, any) {}
func (c *stubConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *stubConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type staticLeaderboard []store.Account

func (l staticLeaderboard) Leaderboard(_ context.Context, limit int) ([]store.Account, error) {
	if limit < len(l) {
		return l[:limit], nil
	}
	return l, nil
}

type fixture struct {
	hub    *relay.Hub
	router http.Handler
	reg    *prometheus.Registry
}

func newFixture(t *testing.T, d Deps) fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	hub := relay.NewHub(nil, relay.Options{Registerer: reg})
	t.Cleanup(hub.Close)
	d.Rooms = hub
	d.Sessions = hub
	d.Registry = reg
	if d.Verifier == nil {
		d.Verifier = auth.NewVerifier("test-secret", "", nil)
	}
	return fixture{hub: hub, router: NewRouter(d), reg: reg}
}

func (f fixture) connect(t *testing.T, token string) *stubConn {
	t.Helper()
	verifier := auth.NewVerifier("test-secret", "", nil)
	id, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify %s: %v", token, err)
	}
	c := &stubConn{id: "conn-" + id.ID}
	ac := auth.AuthenticatedConnection{Identity: id, ConnID: c.id, ConnectedAt: time.Now()}
	if err := f.hub.Connect(ac, c); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := f.hub.CreateRoom(ac, c, "room-"+id.DisplayName); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return c
}

func do(t *testing.T, h http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Deps{})
	if w := do(t, f.router, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 without a store, got %d", w.Code)
	}

	down := newFixture(t, Deps{Health: pingerFunc(func(context.Context) error { return errors.New("down") })})
	w := do(t, down.router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["store"] != "down" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestPublicRooms(t *testing.T) {
	f := newFixture(t, Deps{})
	f.connect(t, "GUEST_alice")
	f.connect(t, "GUEST_bob")

	w := do(t, f.router, http.MethodGet, "/api/public/rooms", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rooms status %d", w.Code)
	}
	if body := decodeBody(t, w); body["count"] != float64(2) {
		t.Fatalf("expected 2 rooms, got %v", body)
	}

	w = do(t, f.router, http.MethodGet, "/api/public/rooms/room-alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("room status %d", w.Code)
	}
	if body := decodeBody(t, w); body["fen"] != relay.StartingFEN {
		t.Fatalf("unexpected snapshot %v", body)
	}

	w = do(t, f.router, http.MethodGet, "/api/public/rooms/nope", nil)
	if w.Code != http.StatusNotFound || decodeBody(t, w)["error"] != "room_not_found" {
		t.Fatalf("expected 404 room_not_found, got %d %s", w.Code, w.Body.String())
	}
}

func TestLogout(t *testing.T) {
	f := newFixture(t, Deps{})
	c := f.connect(t, "GUEST_alice")

	w := do(t, f.router, http.MethodPost, "/api/auth/logout", nil)
	if w.Code != http.StatusUnauthorized || decodeBody(t, w)["error"] != "missing_credential" {
		t.Fatalf("expected 401 missing_credential, got %d %s", w.Code, w.Body.String())
	}

	w = do(t, f.router, http.MethodPost, "/api/auth/logout", http.Header{"Authorization": []string{"Bearer GUEST_alice"}})
	if w.Code != http.StatusOK || decodeBody(t, w)["disconnected"] != true {
		t.Fatalf("expected disconnected logout, got %d %s", w.Code, w.Body.String())
	}
	if !c.isClosed() {
		t.Fatalf("logout should close the live connection")
	}

	w = do(t, f.router, http.MethodPost, "/api/auth/logout", http.Header{"Authorization": []string{"Bearer GUEST_alice"}})
	if decodeBody(t, w)["disconnected"] != false {
		t.Fatalf("second logout should find no connection: %s", w.Body.String())
	}
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t, Deps{})
	if w := do(t, f.router, http.MethodGet, "/api/public/leaderboard", nil); w.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a leaderboard, got %d", w.Code)
	}

	board := staticLeaderboard{{ID: "a", Username: "alice", Wins: 3}, {ID: "b", Username: "bob", Wins: 1}}
	f = newFixture(t, Deps{Leaderboard: board})
	w := do(t, f.router, http.MethodGet, "/api/public/leaderboard?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leaderboard status %d", w.Code)
	}
	body := decodeBody(t, w)
	if items, _ := body["items"].([]any); len(items) != 1 || body["limit"] != float64(1) {
		t.Fatalf("unexpected leaderboard %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, Deps{})
	f.connect(t, "GUEST_alice")
	do(t, f.router, http.MethodGet, "/api/public/rooms", nil)

	w := do(t, f.router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status %d", w.Code)
	}
	out := w.Body.String()
	for _, name := range []string{"chess_arena_rooms 1", "chess_arena_http_requests_total", `route="/api/public/rooms"`} {
		if !strings.Contains(out, name) {
			t.Fatalf("metrics output missing %q", name)
		}
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int{"": 20, "5": 5, "0": 1, "-3": 1, "1000": 100, "abc": 20}
	for v, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/?limit="+v, nil)
		if got := ParseLimit(r, 20, 100); got != want {
			t.Fatalf("ParseLimit(%q) = %d, want %d", v, got, want)
		}
	}
}
