package main

import (
	"encoding/json"
	"math/rand"
	"net/url"
	"os"
	"time"

	"chess-arena/internal/config"
	"chess-arena/internal/logging"
	"chess-arena/internal/relay"
	"chess-arena/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type probeMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var replies = []probeMove{
	{From: "e7", To: "e5"},
	{From: "d7", To: "d5"},
	{From: "g8", To: "f6"},
	{From: "b8", To: "c6"},
	{From: "c7", To: "c5"},
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadProbe()
	if err != nil {
		log.Fatal().Err(err).Msg("load probe config failed")
	}

	target, err := dialURL(cfg.WSURL, cfg.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid websocket url")
	}
	conn, resp, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Fatal().Err(err).Int("status", status).Msg("dial failed")
	}
	defer conn.Close()

	first := relay.EventRoomJoin
	if cfg.Create {
		first = relay.EventRoomCreate
	}
	send(conn, first, cfg.RoomID)

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		var f ws.Frame
		if err := conn.ReadJSON(&f); err != nil {
			log.Info().Err(err).Msg("connection closed")
			os.Exit(0)
		}
		log.Info().Str("event", f.Event).RawJSON("data", rawOrNull(f.Data)).Msg("frame")

		switch f.Event {
		case relay.EventRoomCreated:
			send(conn, relay.EventRoomJoin, cfg.RoomID)
		case relay.EventSessionRestored:
			send(conn, relay.EventIsReconnecting, cfg.RoomID)
		case relay.EventPlayerMove:
			send(conn, relay.EventMakeMove, map[string]any{
				"move":   decide(rnd),
				"fen":    "",
				"roomId": cfg.RoomID,
			})
		case relay.EventGameEnded:
			return
		}
	}
}

func dialURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func decide(rnd *rand.Rand) probeMove {
	return replies[rnd.Intn(len(replies))]
}

func send(conn *websocket.Conn, event string, data any) {
	if err := conn.WriteJSON(outFrame{Event: event, Data: data}); err != nil {
		log.Error().Err(err).Str("event", event).Msg("send failed")
	}
}

func rawOrNull(b json.RawMessage) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
