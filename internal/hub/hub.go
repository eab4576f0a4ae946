// Package hub is the room registry. A single goroutine owns the map of live
// sessions plus the set of connections watching the room list, so registry
// reads always reflect the latest write.
package hub

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prestonh/lcr-backend/internal/engine"
	"github.com/prestonh/lcr-backend/internal/session"
	"github.com/prestonh/lcr-backend/internal/store"
)

var ErrRoomExists = errors.New("room already exists")
var ErrRoomNotFound = errors.New("room not found")

type HubMsg interface{ isHubMsg() }

type CreateRoom struct {
	Name  string
	Reply chan error
}

type EnsureRoom struct {
	Name  string
	Reply chan EnsureReply
}

type EnsureReply struct {
	Sess *session.Session
	Err  error
}

type GetRoom struct {
	Name  string
	Reply chan *session.Session
}

type RemoveRoom struct {
	Name  string
	Reply chan error
}

type ListRooms struct {
	Reply chan []string
}

// Watch subscribes a connection to availableRooms broadcasts; the current
// list is sent immediately.
type Watch struct {
	ClientID string
	Outbox   chan session.Outbound
}

type Unwatch struct{ ClientID string }

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (Watch) isHubMsg()       {}
func (Unwatch) isHubMsg()     {}
func (ShutdownHub) isHubMsg() {}

// Deps are the collaborators every spawned session shares.
type Deps struct {
	Store    store.Store
	Log      *zap.Logger
	BotDelay time.Duration
}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*session.Session
	watchers map[string]chan session.Outbound
	deps     Deps
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, deps Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*session.Session),
		watchers: make(map[string]chan session.Outbound),
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.hydrate()
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// hydrate brings rooms persisted by an earlier run back into the registry.
func (h *Hub) hydrate() {
	names, err := h.deps.Store.ListRooms(h.ctx)
	if err != nil {
		h.deps.Log.Warn("room hydration failed", zap.Error(err))
		return
	}
	for _, name := range names {
		if _, err := h.spawn(name); err != nil {
			h.deps.Log.Warn("room hydration failed", zap.String("room", name), zap.Error(err))
		}
	}
	if len(names) > 0 {
		h.deps.Log.Info("hydrated rooms", zap.Int("count", len(names)))
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				msg.Reply <- h.create(msg.Name)

			case EnsureRoom:
				if sess := h.rooms[msg.Name]; sess != nil {
					msg.Reply <- EnsureReply{Sess: sess}
					break
				}
				sess, err := h.spawn(msg.Name)
				if err == nil {
					h.broadcastRooms()
				}
				msg.Reply <- EnsureReply{Sess: sess, Err: err}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Name] // may be nil

			case RemoveRoom:
				msg.Reply <- h.remove(msg.Name)

			case ListRooms:
				msg.Reply <- h.names()

			case Watch:
				h.watchers[msg.ClientID] = msg.Outbox
				h.sendRooms(msg.ClientID, msg.Outbox)

			case Unwatch:
				delete(h.watchers, msg.ClientID)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create(name string) error {
	if h.rooms[name] != nil {
		return ErrRoomExists
	}
	if _, err := h.deps.Store.CreateRoom(h.ctx, name); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Persisted by an earlier run but not hydrated; treat as live.
			// The registry changed, so watchers still hear about the room
			// even though the caller is told it already existed.
			if _, serr := h.spawn(name); serr != nil {
				return serr
			}
			h.broadcastRooms()
			return ErrRoomExists
		}
		return err
	}
	if _, err := h.spawn(name); err != nil {
		return err
	}
	h.deps.Log.Info("room created", zap.String("room", name))
	h.broadcastRooms()
	return nil
}

func (h *Hub) remove(name string) error {
	sess := h.rooms[name]
	if sess == nil {
		return ErrRoomNotFound
	}
	if err := h.deps.Store.DeleteRoom(h.ctx, name); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	sess.Inbox() <- session.Shutdown{}
	delete(h.rooms, name)
	h.deps.Log.Info("room removed", zap.String("room", name))
	h.broadcastRooms()
	return nil
}

// spawn starts the session actor for a room, seeding the pot and any decided
// winner from the store so a restarted server resumes where it left off.
func (h *Hub) spawn(name string) (*session.Session, error) {
	rec, err := h.deps.Store.EnsureRoom(h.ctx, name)
	if err != nil {
		return nil, err
	}
	initial := engine.State{Pot: rec.Pot}
	if rec.WinnerName != "" {
		// A decided game stays decided. Reseeding the winner's seat with the
		// winner ID set keeps the session in the finished phase, so rolls are
		// rejected even after everyone rejoins.
		p, err := h.deps.Store.FindOrCreatePlayer(h.ctx, name, rec.WinnerName, uuid.NewString(), engine.InitialChips, false)
		if err != nil {
			return nil, err
		}
		initial.WinnerID = p.PlayerID
		initial.Seats = []engine.Seat{{
			PlayerID: p.PlayerID,
			Name:     rec.WinnerName,
			Chips:    p.Chips,
			IsAI:     p.IsAI,
		}}
	}
	sess := session.New(h.ctx, name, initial, h.deps.Store, h.deps.Log, engine.NewRoller(nil), h.deps.BotDelay)
	h.rooms[name] = sess
	return sess, nil
}

func (h *Hub) names() []string {
	out := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		out = append(out, name)
	}
	return out
}

func (h *Hub) broadcastRooms() {
	names := h.names()
	for id, ch := range h.watchers {
		select {
		case ch <- session.Outbound{Event: "availableRooms", Data: names}:
		default:
			delete(h.watchers, id)
		}
	}
}

func (h *Hub) sendRooms(id string, ch chan session.Outbound) {
	select {
	case ch <- session.Outbound{Event: "availableRooms", Data: h.names()}:
	default:
		delete(h.watchers, id)
	}
}

func (h *Hub) shutdown() {
	for _, sess := range h.rooms {
		sess.Inbox() <- session.Shutdown{}
	}
	clear(h.rooms)
	clear(h.watchers)
	h.cancel()
}
