// Package session runs one goroutine per room. The goroutine owns the
// authoritative game state and serializes every mutation, persistence calls
// included, so no two roll requests for the same room can interleave.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prestonh/lcr-backend/internal/engine"
	"github.com/prestonh/lcr-backend/internal/store"
	"github.com/prestonh/lcr-backend/internal/types"
)

// Outbound is one event destined for a client connection. The ws layer
// wraps it into the wire envelope.
type Outbound struct {
	Event string
	Data  any
}

type Msg interface{ isSessionMsg() }

type Join struct {
	ClientID   string
	PlayerName string
	IsAI       bool
	Outbox     chan Outbound // nil for AI seats
}

func (Join) isSessionMsg() {}

type Leave struct {
	ClientID   string
	PlayerName string
}

func (Leave) isSessionMsg() {}

type Chat struct {
	ClientID string
	Sender   string
	Body     string
}

func (Chat) isSessionMsg() {}

type RollRequest struct {
	ClientID string
	PlayerID string
}

func (RollRequest) isSessionMsg() {}

// botTurn is scheduled internally when the cursor lands on an AI seat.
type botTurn struct{ playerID string }

func (botTurn) isSessionMsg() {}

type GetState struct{ Reply chan View }

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// View reflects internal state without data races; test-only.
type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type DiceRoller interface {
	Roll(n int) []engine.Face
}

type client struct {
	outbox     chan Outbound
	playerID   string
	playerName string
}

type Session struct {
	name    string
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]*client
	st      store.Store
	log     *zap.Logger
	roller  DiceRoller
	botWait time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, name string, initial engine.State, st store.Store, log *zap.Logger, roller DiceRoller, botWait time.Duration) *Session {
	ctx, cancel := context.WithCancel(parent)
	if botWait <= 0 {
		botWait = 500 * time.Millisecond
	}
	s := &Session{
		name:    name,
		inbox:   make(chan Msg, 64),
		state:   initial,
		clients: make(map[string]*client),
		st:      st,
		log:     log.With(zap.String("room", name)),
		roller:  roller,
		botWait: botWait,
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Name() string { return s.name }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)

			case Leave:
				s.handleLeave(msg)

			case Chat:
				s.handleChat(msg)

			case RollRequest:
				s.handleRoll(msg.ClientID, msg.PlayerID)

			case botTurn:
				active, ok := engine.ActiveSeat(s.state)
				if !ok || active.PlayerID != msg.playerID || engine.DerivePhase(s.state) != engine.PhaseInProgress {
					break // stale fire, turn already moved on
				}
				s.handleRoll("", msg.playerID)

			case GetState:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					State:      s.state,
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	rec, err := s.st.FindOrCreatePlayer(s.ctx, s.name, msg.PlayerName, uuid.NewString(), engine.InitialChips, msg.IsAI)
	if err != nil {
		s.log.Error("join aborted, player load failed", zap.String("player", msg.PlayerName), zap.Error(err))
		s.sendTo(msg.Outbox, errorOutbound(types.CodePersistenceFailure, "could not load player"))
		return
	}
	history, err := s.st.ListMessages(s.ctx, s.name)
	if err != nil {
		s.log.Error("join aborted, history load failed", zap.String("player", msg.PlayerName), zap.Error(err))
		s.sendTo(msg.Outbox, errorOutbound(types.CodePersistenceFailure, "could not load message history"))
		return
	}

	cmd := engine.Command{
		Type:     engine.CmdJoin,
		PlayerID: rec.PlayerID,
		Name:     msg.PlayerName,
		Chips:    rec.Chips,
		IsAI:     rec.IsAI,
	}
	events, ns, err := engine.Apply(s.state, cmd)
	if err != nil {
		s.sendTo(msg.Outbox, errorOutbound(types.CodeInvalidState, err.Error()))
		return
	}
	s.state = ns
	s.version++

	if msg.Outbox != nil {
		s.clients[msg.ClientID] = &client{outbox: msg.Outbox, playerID: rec.PlayerID, playerName: msg.PlayerName}
		s.sendTo(msg.Outbox, Outbound{Event: "messageHistory", Data: chatHistory(history)})
	}

	verb := "joined"
	if engine.ContainsEvent(events, engine.EvtPlayerRejoined) {
		verb = "rejoined"
	}
	s.log.Info("player "+verb, zap.String("player", msg.PlayerName), zap.Bool("ai", rec.IsAI))
	s.broadcast(Outbound{Event: "user_joined", Data: fmt.Sprintf("%s %s the room", msg.PlayerName, verb)})
	s.broadcastState(nil)
	s.announceTurn()
	s.maybeScheduleBot()
}

func (s *Session) handleLeave(msg Leave) {
	name := msg.PlayerName
	if c, ok := s.clients[msg.ClientID]; ok {
		if name == "" {
			name = c.playerName
		}
		delete(s.clients, msg.ClientID)
	}
	if name == "" {
		return
	}
	// Several connections can share one seat (same name); the seat only
	// pauses when the last of them goes.
	for _, c := range s.clients {
		if c.playerName == name {
			return
		}
	}

	_, ns, err := engine.Apply(s.state, engine.Command{Type: engine.CmdLeave, Name: name})
	if err != nil {
		s.log.Debug("leave for unseated player", zap.String("player", name), zap.Error(err))
		return
	}
	s.state = ns
	s.version++
	s.log.Info("player left", zap.String("player", name))
	s.broadcast(Outbound{Event: "user_left", Data: fmt.Sprintf("%s left the room", name)})
	s.broadcastState(nil)
}

func (s *Session) handleChat(msg Chat) {
	var sender chan Outbound
	if c, ok := s.clients[msg.ClientID]; ok {
		sender = c.outbox
	}

	rec, err := s.st.AppendMessage(s.ctx, s.name, msg.Sender, msg.Body)
	if err != nil {
		s.log.Error("chat message write failed", zap.String("sender", msg.Sender), zap.Error(err))
		s.sendTo(sender, errorOutbound(types.CodePersistenceFailure, "could not save message"))
		return
	}
	s.broadcast(Outbound{Event: "message", Data: types.ChatMessage{
		Sender:    rec.Sender,
		Message:   rec.Body,
		Timestamp: rec.CreatedAt,
	}})
}

func (s *Session) handleRoll(clientID, playerID string) {
	var requester chan Outbound
	if c, ok := s.clients[clientID]; ok {
		requester = c.outbox
		if playerID == "" {
			playerID = c.playerID
		}
	}

	seat, ok := engine.SeatByID(s.state, playerID)
	if !ok {
		s.sendTo(requester, errorOutbound(types.CodeNotFound, "player is not seated in this room"))
		return
	}

	// Dice are always sampled here, server-side.
	faces := s.roller.Roll(engine.DiceCount(seat.Chips))
	events, ns, err := engine.Apply(s.state, engine.Command{Type: engine.CmdRoll, PlayerID: playerID, Faces: faces})
	if err != nil {
		s.sendTo(requester, errorOutbound(rollErrorCode(err), err.Error()))
		return
	}

	// Persist before broadcasting. On failure the computed state is dropped:
	// an unsaved state is never shown to anyone.
	if err := s.st.SaveGameState(s.ctx, s.name, chipsByID(ns), ns.Pot, winnerName(ns)); err != nil {
		s.log.Error("state write failed, rolling back turn", zap.String("player", seat.Name), zap.Error(err))
		s.sendTo(requester, errorOutbound(types.CodePersistenceFailure, "could not save game state"))
		return
	}

	s.state = ns
	s.version++
	s.log.Debug("roll resolved",
		zap.String("player", seat.Name),
		zap.Any("faces", faces),
		zap.Int("pot", ns.Pot),
		zap.Bool("finished", engine.ContainsEvent(events, engine.EvtGameFinished)))
	s.broadcastState(faces)
	s.announceTurn()
	s.maybeScheduleBot()
}

func (s *Session) broadcastState(lastRoll []engine.Face) {
	snap := types.SnapshotFrom(s.name, s.version, s.state, lastRoll)
	s.broadcast(Outbound{Event: "gameStateUpdated", Data: snap})
}

func (s *Session) announceTurn() {
	switch engine.DerivePhase(s.state) {
	case engine.PhaseFinished:
		if w, ok := engine.SeatByID(s.state, s.state.WinnerID); ok {
			s.broadcast(Outbound{Event: "current-turn", Data: fmt.Sprintf("%s wins and takes the pot of %d chips!", w.Name, s.state.Pot)})
		}
	case engine.PhaseInProgress:
		if active, ok := engine.ActiveSeat(s.state); ok {
			s.broadcast(Outbound{Event: "current-turn", Data: fmt.Sprintf("It's %s's turn", active.Name)})
		}
	}
}

// maybeScheduleBot arms a delayed roll when the turn lands on an AI seat.
// The fire is re-validated on receipt so a stale timer never rolls for the
// wrong seat.
func (s *Session) maybeScheduleBot() {
	if engine.DerivePhase(s.state) != engine.PhaseInProgress {
		return
	}
	active, ok := engine.ActiveSeat(s.state)
	if !ok || !active.IsAI {
		return
	}
	id := active.PlayerID
	time.AfterFunc(s.botWait, func() {
		select {
		case s.inbox <- botTurn{playerID: id}:
		case <-s.ctx.Done():
		}
	})
}

func (s *Session) broadcast(ob Outbound) {
	for id, c := range s.clients {
		select {
		case c.outbox <- ob:
		default:
			// Slow client: drop it rather than stall the room.
			s.log.Warn("dropping slow client", zap.String("client", id))
			delete(s.clients, id)
		}
	}
}

// sendTo never blocks; outbox channels stay open for the hub's room-list
// broadcasts, so they are only ever abandoned, not closed.
func (s *Session) sendTo(ch chan Outbound, ob Outbound) {
	if ch == nil {
		return
	}
	select {
	case ch <- ob:
	default:
	}
}

func (s *Session) shutdown() {
	clear(s.clients)
	s.cancel()
}

func errorOutbound(code, msg string) Outbound {
	return Outbound{Event: "error", Data: types.ErrorPayload{Code: code, Message: msg}}
}

func rollErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrOutOfTurn):
		return types.CodeOutOfTurn
	case errors.Is(err, engine.ErrPlayerNotFound):
		return types.CodeNotFound
	default:
		return types.CodeInvalidState
	}
}

func chipsByID(s engine.State) map[string]int {
	out := make(map[string]int, len(s.Seats))
	for _, seat := range s.Seats {
		out[seat.PlayerID] = seat.Chips
	}
	return out
}

func winnerName(s engine.State) string {
	if seat, ok := engine.SeatByID(s, s.WinnerID); ok {
		return seat.Name
	}
	return ""
}

func chatHistory(msgs []store.Message) []types.ChatMessage {
	out := make([]types.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, types.ChatMessage{Sender: m.Sender, Message: m.Body, Timestamp: m.CreatedAt})
	}
	return out
}
