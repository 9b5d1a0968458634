package repository

import (
	"artisan/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(m *models.Message) error {
	return r.db.Create(m).Error
}

// RecentByRoom returns the latest limit messages in chronological order.
func (r *MessageRepository) RecentByRoom(room string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.Message
	err := r.db.Where("room = ?", room).Order("created_at DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
