package relay

import (
	"errors"
	"fmt"
)

var (
	ErrRoomConflict   = errors.New("room_conflict")
	ErrRoomNotFound   = errors.New("room_not_found")
	ErrRoomFull       = errors.New("room_full")
	ErrAlreadyInRoom  = errors.New("already_in_room")
	ErrNotInRoom      = errors.New("not_in_room")
	ErrInvalidRoomID  = errors.New("invalid_room_id")
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrInternal       = errors.New("internal_error")
	ErrSuperseded     = errors.New("superseded")
	ErrClosed         = errors.New("hub_closed")
)

var defaultMessages = map[error]string{
	ErrRoomConflict:   "A room with this name already exists",
	ErrRoomNotFound:   "Room does not exist",
	ErrRoomFull:       "Room is full",
	ErrAlreadyInRoom:  "You are already in a room",
	ErrNotInRoom:      "You are not in this room",
	ErrInvalidRoomID:  "Invalid room id",
	ErrInvalidPayload: "Invalid payload",
	ErrInternal:       "Something went wrong",
	ErrSuperseded:     "Signed in from another connection",
	ErrClosed:         "Server is shutting down",
}

// failure attaches a user-facing message and redirect hint to a sentinel.
type failure struct {
	code     error
	message  string
	redirect string
}

func (f *failure) Error() string {
	return fmt.Sprintf("%s: %s", f.code, f.message)
}

func (f *failure) Unwrap() error { return f.code }

func fail(code error, message, redirect string) error {
	return &failure{code: code, message: message, redirect: redirect}
}

func alreadyInRoom(code error, roomID string) error {
	return fail(code, fmt.Sprintf("You are already in room %s", roomID), "/room/"+roomID)
}

// ErrorPayload is the body of the outbound error event.
type ErrorPayload struct {
	Message      string `json:"message"`
	Code         string `json:"code"`
	RedirectHint string `json:"redirectHint,omitempty"`
}

func errorPayload(err error) ErrorPayload {
	var f *failure
	if errors.As(err, &f) {
		return ErrorPayload{Message: f.message, Code: f.code.Error(), RedirectHint: f.redirect}
	}
	for code, msg := range defaultMessages {
		if errors.Is(err, code) {
			p := ErrorPayload{Message: msg, Code: code.Error()}
			if code == ErrInternal {
				p.RedirectHint = "/"
			}
			return p
		}
	}
	return ErrorPayload{Message: defaultMessages[ErrInternal], Code: ErrInternal.Error(), RedirectHint: "/"}
}

// ErrorCode returns the wire code for err.
func ErrorCode(err error) string {
	return errorPayload(err).Code
}

// PayloadFor builds the error event body for err, for transports that reject
// frames before they reach the router.
func PayloadFor(err error) ErrorPayload {
	return errorPayload(err)
}
