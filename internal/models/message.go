package models

import "time"

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Room      string    `gorm:"size:255;not null;index" json:"room"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string { return "messages" }
