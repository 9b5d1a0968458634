package models

import (
	"time"

	"artisan/internal/domain"
)

// Payment is the local ledger record reconciled against the Pi platform.
// Rows are never deleted; terminal states are kept for audit and polling.
type Payment struct {
	ID                uint                 `gorm:"primaryKey" json:"id"`
	InternalReference string               `gorm:"size:64;uniqueIndex;not null" json:"internal_reference"`
	ProviderReference *string              `gorm:"size:255;uniqueIndex" json:"provider_reference"` // nil until the provider responds
	UserID            uint                 `gorm:"not null;index" json:"user_id"`
	VideoID           *uint                `gorm:"index" json:"video_id"`
	Amount            int64                `gorm:"not null" json:"amount"`
	Currency          string               `gorm:"size:10;default:'PI'" json:"currency"`
	Status            domain.PaymentStatus `gorm:"size:20;not null;index" json:"status"`
	TxID              *string              `gorm:"size:255" json:"tx_id"` // set on completion
	Memo              string               `gorm:"size:255" json:"memo"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Payment) TableName() string { return "payments" }
