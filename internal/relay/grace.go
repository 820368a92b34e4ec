package relay

import "time"

type TimerKind int

const (
	RoomGraceTimer TimerKind = iota
	RemovalTimer
)

func (k TimerKind) String() string {
	if k == RemovalTimer {
		return "removal"
	}
	return "room_grace"
}

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It must not run f synchronously.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type graceKey struct {
	identityID string
	kind       TimerKind
}

type pendingTimer struct {
	gen   uint64
	timer Timer
}

// GraceScheduler owns at most one timer per identity and kind. Each arm gets a
// fresh generation; a callback must Claim its generation before acting, so a
// timer that fires after being cancelled or re-armed does nothing.
// Not safe for concurrent use; the Hub serializes access.
type GraceScheduler struct {
	after     AfterFunc
	durations [2]time.Duration
	pending   map[graceKey]pendingTimer
	gen       uint64
}

func NewGraceScheduler(after AfterFunc, roomGrace, removalGrace time.Duration) *GraceScheduler {
	if after == nil {
		after = realAfterFunc
	}
	return &GraceScheduler{
		after:     after,
		durations: [2]time.Duration{RoomGraceTimer: roomGrace, RemovalTimer: removalGrace},
		pending:   map[graceKey]pendingTimer{},
	}
}

func (g *GraceScheduler) Duration(kind TimerKind) time.Duration {
	return g.durations[kind]
}

// Arm cancels any prior timer of the same kind for the identity and schedules
// fire with the new generation.
func (g *GraceScheduler) Arm(identityID string, kind TimerKind, fire func(gen uint64)) uint64 {
	g.Cancel(identityID, kind)
	g.gen++
	gen := g.gen
	t := g.after(g.durations[kind], func() { fire(gen) })
	g.pending[graceKey{identityID, kind}] = pendingTimer{gen: gen, timer: t}
	return gen
}

func (g *GraceScheduler) Cancel(identityID string, kind TimerKind) bool {
	key := graceKey{identityID, kind}
	p, ok := g.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(g.pending, key)
	return true
}

func (g *GraceScheduler) CancelAll(identityID string) {
	g.Cancel(identityID, RoomGraceTimer)
	g.Cancel(identityID, RemovalTimer)
}

func (g *GraceScheduler) Pending(identityID string, kind TimerKind) bool {
	_, ok := g.pending[graceKey{identityID, kind}]
	return ok
}

// Claim consumes the pending entry if gen is still current.
func (g *GraceScheduler) Claim(identityID string, kind TimerKind, gen uint64) bool {
	key := graceKey{identityID, kind}
	p, ok := g.pending[key]
	if !ok || p.gen != gen {
		return false
	}
	delete(g.pending, key)
	return true
}

func (g *GraceScheduler) StopAll() {
	for key, p := range g.pending {
		p.timer.Stop()
		delete(g.pending, key)
	}
}

func (g *GraceScheduler) Len() int { return len(g.pending) }
