package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres is the production Store, backed by GORM.
type Postgres struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&Room{}, &Player{}, &Message{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) CreateRoom(ctx context.Context, name string) (*Room, error) {
	var room Room
	res := p.db.WithContext(ctx).Where(Room{Name: name}).FirstOrCreate(&room)
	if res.Error != nil {
		return nil, fmt.Errorf("create room %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyExists
	}
	return &room, nil
}

func (p *Postgres) EnsureRoom(ctx context.Context, name string) (*Room, error) {
	var room Room
	res := p.db.WithContext(ctx).Where(Room{Name: name}).FirstOrCreate(&room)
	if res.Error != nil {
		return nil, fmt.Errorf("ensure room %q: %w", name, res.Error)
	}
	return &room, nil
}

func (p *Postgres) FindRoom(ctx context.Context, name string) (*Room, error) {
	var room Room
	err := p.db.WithContext(ctx).Where(Room{Name: name}).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room %q: %w", name, err)
	}
	return &room, nil
}

func (p *Postgres) DeleteRoom(ctx context.Context, name string) error {
	room, err := p.FindRoom(ctx, name)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", room.ID).Delete(&Message{}).Error; err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if err := tx.Where("room_id = ?", room.ID).Delete(&Player{}).Error; err != nil {
			return fmt.Errorf("delete players: %w", err)
		}
		if err := tx.Delete(room).Error; err != nil {
			return fmt.Errorf("delete room %q: %w", name, err)
		}
		return nil
	})
}

func (p *Postgres) ListRooms(ctx context.Context) ([]string, error) {
	var names []string
	if err := p.db.WithContext(ctx).Model(&Room{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return names, nil
}

func (p *Postgres) FindOrCreatePlayer(ctx context.Context, room, name, playerID string, chips int, isAI bool) (*Player, error) {
	rec, err := p.FindRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	var player Player
	res := p.db.WithContext(ctx).
		Where(Player{RoomID: rec.ID, Name: name}).
		Attrs(Player{PlayerID: playerID, Chips: chips, IsAI: isAI}).
		FirstOrCreate(&player)
	if res.Error != nil {
		return nil, fmt.Errorf("find or create player %q in %q: %w", name, room, res.Error)
	}
	return &player, nil
}

func (p *Postgres) SaveGameState(ctx context.Context, room string, chips map[string]int, pot int, winnerName string) error {
	rec, err := p.FindRoom(ctx, room)
	if err != nil {
		return err
	}
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"pot": pot, "winner_name": winnerName}
		if err := tx.Model(rec).Updates(updates).Error; err != nil {
			return fmt.Errorf("save room state %q: %w", room, err)
		}
		for playerID, c := range chips {
			err := tx.Model(&Player{}).
				Where("room_id = ? AND player_id = ?", rec.ID, playerID).
				Update("chips", c).Error
			if err != nil {
				return fmt.Errorf("save chips for %q: %w", playerID, err)
			}
		}
		return nil
	})
}

func (p *Postgres) AppendMessage(ctx context.Context, room, sender, body string) (*Message, error) {
	rec, err := p.FindRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	msg := Message{RoomID: rec.ID, Sender: sender, Body: body}
	if err := p.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("append message in %q: %w", room, err)
	}
	return &msg, nil
}

func (p *Postgres) ListMessages(ctx context.Context, room string) ([]Message, error) {
	rec, err := p.FindRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	err = p.db.WithContext(ctx).
		Where("room_id = ?", rec.ID).
		Order("created_at asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages in %q: %w", room, err)
	}
	return msgs, nil
}
