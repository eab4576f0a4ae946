package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemory_RoomLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	room, err := m.CreateRoom(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, "lobby", room.Name)

	_, err = m.CreateRoom(ctx, "lobby")
	require.ErrorIs(t, err, ErrAlreadyExists)

	names, err := m.ListRooms(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"lobby"}, names)

	require.NoError(t, m.DeleteRoom(ctx, "lobby"))
	require.ErrorIs(t, m.DeleteRoom(ctx, "lobby"), ErrNotFound)

	_, err = m.FindRoom(ctx, "lobby")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_EnsureRoomIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	a, err := m.EnsureRoom(ctx, "lobby")
	require.NoError(t, err)
	b, err := m.EnsureRoom(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
}

func TestMemory_FindOrCreatePlayerKeepsExistingRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.EnsureRoom(ctx, "lobby")
	require.NoError(t, err)

	p1, err := m.FindOrCreatePlayer(ctx, "lobby", "Alice", "id-1", 3, false)
	require.NoError(t, err)
	require.Equal(t, 3, p1.Chips)

	require.NoError(t, m.SaveGameState(ctx, "lobby", map[string]int{"id-1": 1}, 2, ""))

	// Re-join must not reset chips or identity.
	p2, err := m.FindOrCreatePlayer(ctx, "lobby", "Alice", "id-other", 3, false)
	require.NoError(t, err)
	require.Equal(t, "id-1", p2.PlayerID)
	require.Equal(t, 1, p2.Chips)

	_, err = m.FindOrCreatePlayer(ctx, "nowhere", "Alice", "id-2", 3, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SaveGameState(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.EnsureRoom(ctx, "lobby")
	require.NoError(t, err)
	_, err = m.FindOrCreatePlayer(ctx, "lobby", "Alice", "id-1", 3, false)
	require.NoError(t, err)

	require.NoError(t, m.SaveGameState(ctx, "lobby", map[string]int{"id-1": 0}, 4, "Bob"))

	room, err := m.FindRoom(ctx, "lobby")
	require.NoError(t, err)
	require.Equal(t, 4, room.Pot)
	require.Equal(t, "Bob", room.WinnerName)

	p, err := m.FindOrCreatePlayer(ctx, "lobby", "Alice", "ignored", 3, false)
	require.NoError(t, err)
	require.Equal(t, 0, p.Chips)

	require.ErrorIs(t, m.SaveGameState(ctx, "nowhere", nil, 0, ""), ErrNotFound)
}

func TestMemory_MessagesOrderedByTime(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.EnsureRoom(ctx, "lobby")
	require.NoError(t, err)

	for _, body := range []string{"one", "two", "three"} {
		_, err := m.AppendMessage(ctx, "lobby", "Alice", body)
		require.NoError(t, err)
	}

	msgs, err := m.ListMessages(ctx, "lobby")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Body)
	require.Equal(t, "three", msgs[2].Body)
	require.False(t, msgs[0].CreatedAt.After(msgs[2].CreatedAt))

	_, err = m.AppendMessage(ctx, "nowhere", "Alice", "lost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ForcedFailure(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.EnsureRoom(ctx, "lobby")
	require.NoError(t, err)

	boom := errors.New("db down")
	m.Fail(boom)
	_, err = m.ListRooms(ctx)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, m.SaveGameState(ctx, "lobby", nil, 0, ""), boom)

	m.Fail(nil)
	_, err = m.ListRooms(ctx)
	require.NoError(t, err)
}
