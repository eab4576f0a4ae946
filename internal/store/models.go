package store

import "gorm.io/gorm"

type Room struct {
	gorm.Model
	Name       string `gorm:"uniqueIndex;not null"`
	Pot        int    `gorm:"not null;default:0"`
	WinnerName string
	Players    []Player  `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Messages   []Message `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

type Player struct {
	gorm.Model
	RoomID uint   `gorm:"index:idx_room_player,unique;not null"`
	Name   string `gorm:"index:idx_room_player,unique;not null"`
	// PlayerID is the stable identity handed to clients; it survives
	// reconnects and server restarts.
	PlayerID string `gorm:"not null"`
	Chips    int    `gorm:"not null"`
	IsAI     bool   `gorm:"not null;default:false"`
}

type Message struct {
	gorm.Model
	RoomID uint   `gorm:"index;not null"`
	Sender string `gorm:"not null"`
	Body   string `gorm:"not null"`
}
