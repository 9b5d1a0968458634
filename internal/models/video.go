package models

import "time"

type Video struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	URL         string    `gorm:"size:512;not null" json:"url"`
	Thumbnail   string    `gorm:"size:512" json:"thumbnail"`
	PricePi     int64     `gorm:"default:0" json:"price_pi"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

func (Video) TableName() string { return "videos" }
