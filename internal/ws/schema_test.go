package ws

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"chess-arena/internal/relay"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

func compileFrameSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	f, err := os.Open("../../api/schema/ws_v1.schema.json")
	if err != nil {
		t.Fatalf("open schema: %v", err)
	}
	defer f.Close()
	doc, err := jsonschema.UnmarshalJSON(f)
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("ws_v1.schema.json", doc); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	schema, err := compiler.Compile("ws_v1.schema.json")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return schema
}

func frameInstance(t *testing.T, event string, data any) any {
	t.Helper()
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("unmarshal %s: %v", event, err)
	}
	return inst
}

func TestWSProtocolSchema(t *testing.T) {
	schema := compileFrameSchema(t)
	now := time.Now()
	seat := relay.Seat{IdentityID: "u", DisplayName: "Ursula", Color: relay.ColorWhite}
	chat := []relay.ChatEntry{{AuthorColor: relay.ColorWhite, AuthorID: "u", AuthorName: "Ursula", Text: "hi", At: now}}

	samples := []struct {
		event string
		data  any
	}{
		{relay.EventRoomCreated, "r1"},
		{relay.EventRoomJoined, relay.RoomJoined{Message: "Ursula joined the room", RoomState: relay.RoomState{
			RoomID: "r1", FEN: relay.StartingFEN, Moves: []relay.MoveEntry{}, Players: []relay.Seat{seat}, CreatedAt: now,
		}}},
		{relay.EventPlayerMove, relay.PlayerMove{Move: json.RawMessage(`{"from":"e2","to":"e4"}`), ByDisplayName: "Ursula"}},
		{relay.EventPlayerReconnecting, "Ursula is reconnecting..."},
		{relay.EventPlayerDisconnect, "Ursula has left the game"},
		{relay.EventSessionRestored, relay.SessionRestored{RoomID: "r1"}},
		{relay.EventMessage, relay.ChatLog{RoomID: "r1", Messages: chat}},
		{relay.EventGameEnded, relay.GameEnded{RoomID: "r1", Result: relay.ResultBlackWins, Reason: "abandoned", WinnerID: "v"}},
		{relay.EventError, relay.PayloadFor(relay.ErrRoomFull)},
	}
	for _, s := range samples {
		if err := schema.Validate(frameInstance(t, s.event, s.data)); err != nil {
			t.Fatalf("schema validate %s: %v", s.event, err)
		}
	}

	if err := schema.Validate(frameInstance(t, relay.EventRoomCreated, map[string]string{"roomId": "r1"})); err == nil {
		t.Fatalf("room-created with an object payload should not validate")
	}
	if err := schema.Validate(frameInstance(t, "room-deleted", nil)); err == nil {
		t.Fatalf("unknown events should not validate")
	}
}
