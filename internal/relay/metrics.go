package relay

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	connections  prometheus.Gauge
	sessions     prometheus.Gauge
	rooms        prometheus.Gauge
	events       *prometheus.CounterVec
	errors       *prometheus.CounterVec
	settlements  *prometheus.CounterVec
	graceExpired *prometheus.CounterVec
	reconnects   prometheus.Counter
	superseded   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chess_arena_connections",
			Help: "Registered live connections.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chess_arena_sessions",
			Help: "Sessions held in memory, including disconnected ones in grace.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chess_arena_rooms",
			Help: "Live rooms.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chess_arena_events_total",
			Help: "Inbound events dispatched, by event name.",
		}, []string{"event"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chess_arena_event_errors_total",
			Help: "Error events sent to clients, by code.",
		}, []string{"code"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chess_arena_settlements_total",
			Help: "Finished games, by reason and settlement outcome.",
		}, []string{"reason", "outcome"}),
		graceExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chess_arena_grace_expired_total",
			Help: "Grace timers that fired and acted, by timer.",
		}, []string{"timer"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chess_arena_reconnects_total",
			Help: "Players that rejoined their room.",
		}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chess_arena_superseded_connections_total",
			Help: "Connections replaced by a newer connection for the same identity.",
		}),
	}
	reg.MustRegister(
		m.connections,
		m.sessions,
		m.rooms,
		m.events,
		m.errors,
		m.settlements,
		m.graceExpired,
		m.reconnects,
		m.superseded,
	)
	return m
}

func (m *metrics) setGauges(conns, sessions, rooms int) {
	m.connections.Set(float64(conns))
	m.sessions.Set(float64(sessions))
	m.rooms.Set(float64(rooms))
}
