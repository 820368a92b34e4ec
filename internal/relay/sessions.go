package relay

import "chess-arena/internal/auth"

type Connectivity int

const (
	Connected Connectivity = iota + 1
	Disconnected
)

func (c Connectivity) String() string {
	switch c {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the per-identity state. Values returned by SessionTable are copies.
type Session struct {
	Identity     auth.Identity
	RoomID       string
	Connectivity Connectivity
	ActiveInRoom bool
	FirstContact bool
}

// SessionTable is not safe for concurrent use; the Hub serializes access.
type SessionTable struct {
	sessions map[string]*Session
}

func NewSessionTable() *SessionTable {
	return &SessionTable{sessions: map[string]*Session{}}
}

// Upsert creates the session on first contact. An existing session keeps its
// room and activity but picks up the latest identity details.
func (t *SessionTable) Upsert(id auth.Identity) (Session, bool) {
	if s, ok := t.sessions[id.ID]; ok {
		s.Identity = id
		s.FirstContact = false
		return *s, false
	}
	s := &Session{Identity: id, Connectivity: Connected, FirstContact: true}
	t.sessions[id.ID] = s
	return *s, true
}

func (t *SessionTable) Get(identityID string) (Session, bool) {
	s, ok := t.sessions[identityID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (t *SessionTable) MarkConnected(identityID string) {
	if s, ok := t.sessions[identityID]; ok {
		s.Connectivity = Connected
	}
}

func (t *SessionTable) MarkDisconnected(identityID string) {
	if s, ok := t.sessions[identityID]; ok {
		s.Connectivity = Disconnected
	}
}

func (t *SessionTable) SetRoom(identityID, roomID string, active bool) {
	if s, ok := t.sessions[identityID]; ok {
		s.RoomID = roomID
		s.ActiveInRoom = active
	}
}

func (t *SessionTable) ClearRoom(identityID string) {
	t.SetRoom(identityID, "", false)
}

func (t *SessionTable) SetActive(identityID string, active bool) {
	if s, ok := t.sessions[identityID]; ok && s.RoomID != "" {
		s.ActiveInRoom = active
	}
}

func (t *SessionTable) Delete(identityID string) {
	delete(t.sessions, identityID)
}

func (t *SessionTable) Len() int { return len(t.sessions) }
