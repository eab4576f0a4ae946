// Package store is the persistence collaborator for rooms, players and chat
// history. The session actors are the only writers for game state, so the
// store needs no locking of its own beyond what each implementation uses
// internally.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")
var ErrAlreadyExists = errors.New("record already exists")

type Store interface {
	// CreateRoom fails with ErrAlreadyExists on a name collision.
	CreateRoom(ctx context.Context, name string) (*Room, error)
	// EnsureRoom returns the room, creating it if missing.
	EnsureRoom(ctx context.Context, name string) (*Room, error)
	FindRoom(ctx context.Context, name string) (*Room, error)
	DeleteRoom(ctx context.Context, name string) error
	ListRooms(ctx context.Context) ([]string, error)

	// FindOrCreatePlayer is idempotent by (room, name): an existing record
	// is returned as-is, chips included; otherwise one is created with the
	// given identity and chip count.
	FindOrCreatePlayer(ctx context.Context, room, name, playerID string, chips int, isAI bool) (*Player, error)

	// SaveGameState writes the chip counts (keyed by player ID), pot and
	// winner for a room in one call.
	SaveGameState(ctx context.Context, room string, chips map[string]int, pot int, winnerName string) error

	AppendMessage(ctx context.Context, room, sender, body string) (*Message, error)
	// ListMessages returns the room's chat history ordered by creation time.
	ListMessages(ctx context.Context, room string) ([]Message, error)
}
