package relay

// Conn is a live connection handle. Send must not block and must not call
// back into the Hub; Close must be idempotent.
type Conn interface {
	ID() string
	Send(event string, data any)
	Close()
}

// Registry maps identity id to its live connection and tracks which
// connections belong to which room group. Not safe for concurrent use.
type Registry struct {
	conns    map[string]Conn
	groups   map[string]map[string]Conn
	memberOf map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns:    map[string]Conn{},
		groups:   map[string]map[string]Conn{},
		memberOf: map[string]map[string]struct{}{},
	}
}

// Register upserts the entry and returns the handle it replaced, if any.
func (r *Registry) Register(identityID string, c Conn) Conn {
	prev := r.conns[identityID]
	r.conns[identityID] = c
	if prev == c {
		return nil
	}
	return prev
}

func (r *Registry) Lookup(identityID string) (Conn, bool) {
	c, ok := r.conns[identityID]
	return c, ok
}

// Remove drops the entry. A non-nil c only removes the entry if it is still
// the registered handle.
func (r *Registry) Remove(identityID string, c Conn) bool {
	cur, ok := r.conns[identityID]
	if !ok || (c != nil && cur != c) {
		return false
	}
	delete(r.conns, identityID)
	return true
}

func (r *Registry) JoinGroup(roomID string, c Conn) {
	if c == nil {
		return
	}
	g := r.groups[roomID]
	if g == nil {
		g = map[string]Conn{}
		r.groups[roomID] = g
	}
	g[c.ID()] = c
	rooms := r.memberOf[c.ID()]
	if rooms == nil {
		rooms = map[string]struct{}{}
		r.memberOf[c.ID()] = rooms
	}
	rooms[roomID] = struct{}{}
}

func (r *Registry) LeaveGroup(roomID string, c Conn) {
	if c == nil {
		return
	}
	if g := r.groups[roomID]; g != nil {
		delete(g, c.ID())
		if len(g) == 0 {
			delete(r.groups, roomID)
		}
	}
	if rooms := r.memberOf[c.ID()]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.memberOf, c.ID())
		}
	}
}

func (r *Registry) LeaveAllGroups(c Conn) {
	if c == nil {
		return
	}
	for roomID := range r.memberOf[c.ID()] {
		r.LeaveGroup(roomID, c)
	}
}

func (r *Registry) DropGroup(roomID string) {
	for _, c := range r.groups[roomID] {
		r.LeaveGroup(roomID, c)
	}
}

func (r *Registry) InGroup(roomID string, c Conn) bool {
	if c == nil {
		return false
	}
	_, ok := r.groups[roomID][c.ID()]
	return ok
}

// Broadcast sends to every member of the room group except the given handle.
func (r *Registry) Broadcast(roomID, event string, data any, except Conn) int {
	sent := 0
	for _, c := range r.groups[roomID] {
		if except != nil && c.ID() == except.ID() {
			continue
		}
		c.Send(event, data)
		sent++
	}
	return sent
}

func (r *Registry) GroupSize(roomID string) int { return len(r.groups[roomID]) }

func (r *Registry) All() []Conn {
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int { return len(r.conns) }
