package models

import (
	"time"

	"artisan/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:255" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	AvatarURL    string         `gorm:"size:512" json:"avatar_url"`
	Role         string         `gorm:"size:50;default:'ARTISAN'" json:"role"`
	Bio          string         `gorm:"type:text" json:"bio"`
	PiUID        *string        `gorm:"uniqueIndex;size:255" json:"-"` // nil for email signups
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == domain.RoleAdmin }
