package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Inbound event names.
const (
	EventRoomCreate     = "room-create"
	EventRoomJoin       = "room-join"
	EventIsReconnecting = "is-reconnecting"
	EventMakeMove       = "make-move"
	EventMessage        = "message"
	EventResign         = "resign"
	EventGameOver       = "game-over"
)

// Outbound event names. message is shared with the inbound chat event.
const (
	EventRoomCreated        = "room-created"
	EventRoomJoined         = "room-joined"
	EventPlayerMove         = "player-move"
	EventPlayerReconnecting = "player-reconnecting"
	EventPlayerDisconnect   = "player-disconnect"
	EventSessionRestored    = "session-restored"
	EventGameEnded          = "game-ended"
	EventError              = "error"
)

// Result is the client-reported terminal state of a game.
type Result int

const (
	ResultWhiteWins Result = 0
	ResultBlackWins Result = 1
	ResultDraw      Result = 2
)

func (r Result) valid() bool { return r >= ResultWhiteWins && r <= ResultDraw }

func (r Result) String() string {
	switch r {
	case ResultWhiteWins:
		return "white_wins"
	case ResultBlackWins:
		return "black_wins"
	case ResultDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// UnmarshalJSON accepts both "1" and 1.
func (r *Result) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("result %q: %w", raw, ErrInvalidPayload)
	}
	res := Result(n)
	if !res.valid() {
		return fmt.Errorf("result %d: %w", n, ErrInvalidPayload)
	}
	*r = res
	return nil
}

func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(r)))
}

func resultForWinner(color string) Result {
	if color == ColorBlack {
		return ResultBlackWins
	}
	return ResultWhiteWins
}

type MovePayload struct {
	Move   json.RawMessage `json:"move"`
	FEN    string          `json:"fen"`
	RoomID string          `json:"roomId"`
}

type ChatMessage struct {
	AuthorColor string `json:"authorColor"`
	Text        string `json:"text"`
	AuthorID    string `json:"authorId"`
}

type ChatPayload struct {
	Message ChatMessage `json:"message"`
	RoomID  string      `json:"roomId"`
}

type GameOverPayload struct {
	RoomID string `json:"roomId"`
	Result Result `json:"result"`
}

type Seat struct {
	IdentityID  string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	IsGuest     bool   `json:"isGuest"`
}

type MoveEntry struct {
	Move         json.RawMessage `json:"move"`
	FEN          string          `json:"fen"`
	ByIdentityID string          `json:"byIdentityId"`
	At           time.Time       `json:"at"`
}

type ChatEntry struct {
	AuthorColor string    `json:"authorColor"`
	AuthorID    string    `json:"authorId"`
	AuthorName  string    `json:"authorName"`
	Text        string    `json:"text"`
	At          time.Time `json:"at"`
}

// RoomState is a deep copy of a room, safe to hand to other goroutines.
type RoomState struct {
	RoomID    string      `json:"roomId"`
	FEN       string      `json:"fen"`
	Moves     []MoveEntry `json:"moves"`
	Messages  []ChatEntry `json:"messages"`
	Players   []Seat      `json:"players"`
	CreatedAt time.Time   `json:"createdAt"`
}

type RoomSummary struct {
	RoomID    string    `json:"roomId"`
	Players   []Seat    `json:"players"`
	MoveCount int       `json:"moveCount"`
	Full      bool      `json:"full"`
	CreatedAt time.Time `json:"createdAt"`
}

type RoomJoined struct {
	Message   string    `json:"message"`
	RoomState RoomState `json:"roomState"`
}

type PlayerMove struct {
	Move          json.RawMessage `json:"move"`
	ByDisplayName string          `json:"byDisplayName"`
}

type ChatLog struct {
	RoomID   string      `json:"roomId"`
	Messages []ChatEntry `json:"messages"`
}

type SessionRestored struct {
	RoomID string `json:"roomId"`
}

type GameEnded struct {
	RoomID   string `json:"roomId"`
	Result   Result `json:"result"`
	Reason   string `json:"reason"`
	WinnerID string `json:"winnerId,omitempty"`
}

// decodeRoomID accepts a bare JSON string or an object with a roomId field.
func decodeRoomID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", ErrInvalidRoomID
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return "", fmt.Errorf("room id: %w", ErrInvalidPayload)
		}
		return id, nil
	}
	var obj struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("room id: %w", ErrInvalidPayload)
	}
	return obj.RoomID, nil
}

func decodeMove(data json.RawMessage) (MovePayload, error) {
	var p MovePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return MovePayload{}, fmt.Errorf("make-move: %w", ErrInvalidPayload)
	}
	if len(bytes.TrimSpace(p.Move)) == 0 || bytes.Equal(bytes.TrimSpace(p.Move), []byte("null")) {
		return MovePayload{}, fmt.Errorf("make-move: missing move: %w", ErrInvalidPayload)
	}
	return p, nil
}

func decodeChat(data json.RawMessage) (ChatPayload, error) {
	var p ChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return ChatPayload{}, fmt.Errorf("message: %w", ErrInvalidPayload)
	}
	if strings.TrimSpace(p.Message.Text) == "" {
		return ChatPayload{}, fmt.Errorf("message: empty text: %w", ErrInvalidPayload)
	}
	return p, nil
}

func decodeGameOver(data json.RawMessage) (GameOverPayload, error) {
	var raw struct {
		RoomID string  `json:"roomId"`
		Result *Result `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return GameOverPayload{}, fmt.Errorf("game-over: %w", ErrInvalidPayload)
	}
	if raw.Result == nil {
		return GameOverPayload{}, fmt.Errorf("game-over: missing result: %w", ErrInvalidPayload)
	}
	return GameOverPayload{RoomID: raw.RoomID, Result: *raw.Result}, nil
}
