package types

import (
	"encoding/json"
	"time"

	"github.com/prestonh/lcr-backend/internal/engine"
)

// ClientMessage is the envelope for every inbound wire event. Fields are a
// union over the event payloads; unused ones are left empty.
type ClientMessage struct {
	Event      string `json:"event"`
	Name       string `json:"name,omitempty"`
	Room       string `json:"room,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	IsAI       bool   `json:"isAI,omitempty"`
	Sender     string `json:"sender,omitempty"`
	Message    string `json:"message,omitempty"`
	PlayerID   string `json:"playerId,omitempty"`

	// Some legacy clients send their own dice with the roll request. The
	// server never reads them; outcomes are generated server-side.
	RollResults json.RawMessage `json:"rollResults,omitempty"`
}

// ServerMessage is the envelope for every outbound wire event.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried on the "error" event.
const (
	CodeAlreadyExists      = "AlreadyExists"
	CodeNotFound           = "NotFound"
	CodeOutOfTurn          = "OutOfTurn"
	CodeInvalidState       = "InvalidState"
	CodePersistenceFailure = "PersistenceFailure"
	CodeBadRequest         = "BadRequest"
)

type ChatMessage struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type PlayerView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Chips      int    `json:"chips"`
	Connected  bool   `json:"connected"`
	IsAI       bool   `json:"isAI"`
	Eliminated bool   `json:"eliminated"`
}

// Snapshot is the full session view broadcast on gameStateUpdated.
type Snapshot struct {
	Room       string        `json:"room"`
	Version    int           `json:"version"`
	Phase      engine.Phase  `json:"phase"`
	Players    []PlayerView  `json:"players"`
	Pot        int           `json:"pot"`
	TurnID     string        `json:"turnPlayerId,omitempty"`
	TurnName   string        `json:"turnPlayerName,omitempty"`
	WinnerID   string        `json:"winnerId,omitempty"`
	WinnerName string        `json:"winnerName,omitempty"`
	LastRoll   []engine.Face `json:"lastRoll,omitempty"`
}

// SnapshotFrom projects engine state into the wire shape.
func SnapshotFrom(room string, version int, s engine.State, lastRoll []engine.Face) Snapshot {
	snap := Snapshot{
		Room:     room,
		Version:  version,
		Phase:    engine.DerivePhase(s),
		Players:  make([]PlayerView, 0, len(s.Seats)),
		Pot:      s.Pot,
		LastRoll: lastRoll,
	}
	for _, seat := range s.Seats {
		snap.Players = append(snap.Players, PlayerView{
			ID:         seat.PlayerID,
			Name:       seat.Name,
			Chips:      seat.Chips,
			Connected:  seat.Connected,
			IsAI:       seat.IsAI,
			Eliminated: seat.Chips == 0,
		})
	}
	if seat, ok := engine.SeatByID(s, s.WinnerID); ok {
		snap.WinnerID = seat.PlayerID
		snap.WinnerName = seat.Name
	} else if active, ok := engine.ActiveSeat(s); ok {
		snap.TurnID = active.PlayerID
		snap.TurnName = active.Name
	}
	return snap
}
