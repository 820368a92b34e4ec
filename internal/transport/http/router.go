package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"chess-arena/internal/auth"
	"chess-arena/internal/relay"
	"chess-arena/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type RoomSource interface {
	Rooms() []relay.RoomSummary
	Room(roomID string) (relay.RoomState, bool)
}

type Disconnecter interface {
	ForceDisconnect(identityID string) bool
}

type Leaderboard interface {
	Leaderboard(ctx context.Context, limit int) ([]store.Account, error)
}

type Verifier interface {
	Verify(ctx context.Context, credential string) (auth.Identity, error)
}

// Deps wires the router. Health and Leaderboard may be nil; Registry nil
// disables /metrics and request metrics.
type Deps struct {
	Rooms       RoomSource
	Sessions    Disconnecter
	Verifier    Verifier
	WS          http.HandlerFunc
	Health      Pinger
	Leaderboard Leaderboard
	Registry    *prometheus.Registry
}

func NewRouter(d Deps) *chi.Mux {
	public := NewPublicHandlers(d.Rooms, d.Leaderboard)
	authHandlers := NewAuthHandlers(d.Verifier, d.Sessions)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if d.Registry != nil {
		r.Use(RequestMetricsMiddleware(newRequestMetrics(d.Registry)))
	}

	r.With(APILogMiddleware()).Get("/healthz", Health(d.Health))
	if d.WS != nil {
		r.Get("/ws", d.WS)
	}
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Post("/auth/logout", authHandlers.Logout())
		r.Get("/public/rooms", public.Rooms())
		r.Get("/public/rooms/{room_id}", public.Room())
		r.Get("/public/leaderboard", public.Leaderboard())
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("%s %s; ", rt.Method, rt.Path))
	}
	log.Info().Int("count", len(routes)).Str("routes", strings.TrimSuffix(b.String(), "; ")).Msg("registered routes")
}
