package ws

import "encoding/json"

// Frame is one WebSocket text message in either direction.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type httpError struct {
	Error string `json:"error"`
}
