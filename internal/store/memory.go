package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Memory is an in-process Store used by tests and by local runs without a
// DATABASE_URL.
type Memory struct {
	mu     sync.RWMutex
	nextID uint
	rooms  map[string]*memRoom

	// forced, when set, is returned by every operation. Tests use it to
	// exercise the persistence-failure paths.
	forced error
}

type memRoom struct {
	rec      Room
	players  map[string]*Player // by name
	messages []Message
}

func NewMemory() *Memory {
	return &Memory{rooms: make(map[string]*memRoom)}
}

// Fail forces every subsequent operation to return err; pass nil to heal.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = err
}

func (m *Memory) id() uint {
	m.nextID++
	return m.nextID
}

func (m *Memory) CreateRoom(_ context.Context, name string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	if _, exists := m.rooms[name]; exists {
		return nil, ErrAlreadyExists
	}
	r := &memRoom{
		rec:     Room{Model: gorm.Model{ID: m.id(), CreatedAt: time.Now()}, Name: name},
		players: make(map[string]*Player),
	}
	m.rooms[name] = r
	rec := r.rec
	return &rec, nil
}

func (m *Memory) EnsureRoom(ctx context.Context, name string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	if r, exists := m.rooms[name]; exists {
		rec := r.rec
		return &rec, nil
	}
	r := &memRoom{
		rec:     Room{Model: gorm.Model{ID: m.id(), CreatedAt: time.Now()}, Name: name},
		players: make(map[string]*Player),
	}
	m.rooms[name] = r
	rec := r.rec
	return &rec, nil
}

func (m *Memory) FindRoom(_ context.Context, name string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forced != nil {
		return nil, m.forced
	}
	r, exists := m.rooms[name]
	if !exists {
		return nil, ErrNotFound
	}
	rec := r.rec
	return &rec, nil
}

func (m *Memory) DeleteRoom(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	if _, exists := m.rooms[name]; !exists {
		return ErrNotFound
	}
	delete(m.rooms, name)
	return nil
}

func (m *Memory) ListRooms(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forced != nil {
		return nil, m.forced
	}
	names := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) FindOrCreatePlayer(_ context.Context, room, name, playerID string, chips int, isAI bool) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	r, exists := m.rooms[room]
	if !exists {
		return nil, ErrNotFound
	}
	if p, ok := r.players[name]; ok {
		rec := *p
		return &rec, nil
	}
	p := &Player{
		Model:    gorm.Model{ID: m.id(), CreatedAt: time.Now()},
		RoomID:   r.rec.ID,
		Name:     name,
		PlayerID: playerID,
		Chips:    chips,
		IsAI:     isAI,
	}
	r.players[name] = p
	rec := *p
	return &rec, nil
}

func (m *Memory) SaveGameState(_ context.Context, room string, chips map[string]int, pot int, winnerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return m.forced
	}
	r, exists := m.rooms[room]
	if !exists {
		return ErrNotFound
	}
	r.rec.Pot = pot
	r.rec.WinnerName = winnerName
	for _, p := range r.players {
		if c, ok := chips[p.PlayerID]; ok {
			p.Chips = c
		}
	}
	return nil
}

func (m *Memory) AppendMessage(_ context.Context, room, sender, body string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forced != nil {
		return nil, m.forced
	}
	r, exists := m.rooms[room]
	if !exists {
		return nil, ErrNotFound
	}
	msg := Message{
		Model:  gorm.Model{ID: m.id(), CreatedAt: time.Now()},
		RoomID: r.rec.ID,
		Sender: sender,
		Body:   body,
	}
	r.messages = append(r.messages, msg)
	return &msg, nil
}

func (m *Memory) ListMessages(_ context.Context, room string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.forced != nil {
		return nil, m.forced
	}
	r, exists := m.rooms[room]
	if !exists {
		return nil, ErrNotFound
	}
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out, nil
}
