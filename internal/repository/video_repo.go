package repository

import (
	"artisan/internal/models"

	"gorm.io/gorm"
)

type VideoRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Create(v *models.Video) error {
	return r.db.Create(v).Error
}

func (r *VideoRepository) GetByID(id uint) (*models.Video, error) {
	var v models.Video
	err := r.db.First(&v, id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VideoRepository) List() ([]models.Video, error) {
	var out []models.Video
	err := r.db.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *VideoRepository) Update(v *models.Video) error {
	return r.db.Save(v).Error
}

func (r *VideoRepository) Delete(id uint) error {
	return r.db.Delete(&models.Video{}, id).Error
}
