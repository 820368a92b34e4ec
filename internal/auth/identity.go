package auth

import "time"

// Identity is the principal resolved for a connection.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	IsGuest     bool   `json:"isGuest"`
}

// AuthenticatedConnection is produced once per connection by the handshake
// and passed by value to every handler. It is never mutated.
type AuthenticatedConnection struct {
	Identity    Identity
	ConnID      string
	RemoteAddr  string
	ConnectedAt time.Time
}
