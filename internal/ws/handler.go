package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prestonh/lcr-backend/internal/hub"
	"github.com/prestonh/lcr-backend/internal/session"
	"github.com/prestonh/lcr-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
)

// Handler upgrades the connection and bridges wire events to the hub and to
// at most one room session at a time.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// The original front-end is served from a different origin.
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &connState{
			id:  uuid.NewString(),
			hub: h,
			out: make(chan session.Outbound, 16),
		}
		c.log = log.With(zap.String("conn", c.id))

		h.Inbox() <- hub.Watch{ClientID: c.id, Outbox: c.out}
		defer func() {
			h.Inbox() <- hub.Unwatch{ClientID: c.id}
			c.leaveRoom("")
		}()

		// Writer goroutine. The outbox channel is never closed (the hub and
		// session both hold it); the writer dies with the request context.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case ob := <-c.out:
					payload, err := json.Marshal(types.ServerMessage{Event: ob.Event, Data: ob.Data})
					if err != nil {
						c.log.Error("marshal outbound", zap.String("event", ob.Event), zap.Error(err))
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		// Reader loop.
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.sendErr(types.CodeBadRequest, "bad json")
				continue
			}
			c.dispatch(cm)
		}
	}
}

type connState struct {
	id  string
	hub *hub.Hub
	out chan session.Outbound
	log *zap.Logger

	cur        *session.Session
	curRoom    string
	playerName string
}

func (c *connState) dispatch(cm types.ClientMessage) {
	switch cm.Event {
	case "createRoom":
		name := cm.Name
		if name == "" {
			name = cm.Room
		}
		if name == "" {
			c.sendErr(types.CodeBadRequest, "createRoom needs a name")
			return
		}
		reply := make(chan error, 1)
		c.hub.Inbox() <- hub.CreateRoom{Name: name, Reply: reply}
		if err := <-reply; err != nil {
			c.sendErr(createErrorCode(err), err.Error())
		}

	case "removeRoom":
		name := cm.Name
		if name == "" {
			name = cm.Room
		}
		reply := make(chan error, 1)
		c.hub.Inbox() <- hub.RemoveRoom{Name: name, Reply: reply}
		if err := <-reply; err != nil {
			c.sendErr(removeErrorCode(err), err.Error())
		}
		if c.curRoom == name {
			c.cur = nil
			c.curRoom = ""
		}

	case "get-available-rooms":
		reply := make(chan []string, 1)
		c.hub.Inbox() <- hub.ListRooms{Reply: reply}
		c.send(session.Outbound{Event: "availableRooms", Data: <-reply})

	case "join-room":
		if cm.Room == "" || cm.PlayerName == "" {
			c.sendErr(types.CodeBadRequest, "join-room needs room and playerName")
			return
		}
		reply := make(chan hub.EnsureReply, 1)
		c.hub.Inbox() <- hub.EnsureRoom{Name: cm.Room, Reply: reply}
		rep := <-reply
		if rep.Err != nil {
			c.sendErr(types.CodePersistenceFailure, rep.Err.Error())
			return
		}
		if cm.IsAI {
			// A bot seat has no connection of its own; the adder's own
			// room binding is left alone.
			rep.Sess.Inbox() <- session.Join{PlayerName: cm.PlayerName, IsAI: true}
			return
		}
		if c.cur != nil && c.curRoom != cm.Room {
			c.leaveRoom("")
		}
		rep.Sess.Inbox() <- session.Join{ClientID: c.id, PlayerName: cm.PlayerName, Outbox: c.out}
		c.cur = rep.Sess
		c.curRoom = cm.Room
		c.playerName = cm.PlayerName

	case "leave-room":
		c.leaveRoom(cm.PlayerName)

	case "message":
		if c.cur == nil {
			c.sendErr(types.CodeNotFound, "join a room before chatting")
			return
		}
		sender := cm.Sender
		if sender == "" {
			sender = c.playerName
		}
		c.cur.Inbox() <- session.Chat{ClientID: c.id, Sender: sender, Body: cm.Message}

	case "playerTurn":
		if c.cur == nil {
			c.sendErr(types.CodeNotFound, "join a room before rolling")
			return
		}
		if len(cm.RollResults) > 0 {
			// Dice come from the server, full stop.
			c.log.Warn("ignoring client-supplied roll results", zap.String("room", c.curRoom))
		}
		c.cur.Inbox() <- session.RollRequest{ClientID: c.id, PlayerID: cm.PlayerID}

	default:
		c.sendErr(types.CodeBadRequest, "unknown event "+cm.Event)
	}
}

func (c *connState) leaveRoom(playerName string) {
	if c.cur == nil {
		return
	}
	if playerName == "" {
		playerName = c.playerName
	}
	c.cur.Inbox() <- session.Leave{ClientID: c.id, PlayerName: playerName}
	c.cur = nil
	c.curRoom = ""
	c.playerName = ""
}

func (c *connState) send(ob session.Outbound) {
	select {
	case c.out <- ob:
	default:
	}
}

func (c *connState) sendErr(code, msg string) {
	c.send(session.Outbound{Event: "error", Data: types.ErrorPayload{Code: code, Message: msg}})
}

func createErrorCode(err error) string {
	if errors.Is(err, hub.ErrRoomExists) {
		return types.CodeAlreadyExists
	}
	return types.CodePersistenceFailure
}

func removeErrorCode(err error) string {
	if errors.Is(err, hub.ErrRoomNotFound) {
		return types.CodeNotFound
	}
	return types.CodePersistenceFailure
}
