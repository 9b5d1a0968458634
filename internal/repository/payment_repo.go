package repository

import (
	"errors"

	"artisan/internal/domain"
	"artisan/internal/models"

	"gorm.io/gorm"
)

// ErrPendingExists is returned when a user already owns a pending payment.
var ErrPendingExists = errors.New("user already has a pending payment")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// CreateIfNoPending inserts p inside a transaction that re-checks the
// one-pending-payment-per-user rule. The read and write share one
// transaction scope to keep the admission race window small; two creates
// racing past the caller's pre-check can still both land, which is a
// documented limitation rather than a reason for a global lock.
func (r *PaymentRepository) CreateIfNoPending(p *models.Payment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Payment{}).
			Where("user_id = ? AND status = ?", p.UserID, domain.PaymentPending).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPendingExists
		}
		return tx.Create(p).Error
	})
}

func (r *PaymentRepository) HasPending(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).
		Where("user_id = ? AND status = ?", userID, domain.PaymentPending).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentRepository) GetByProviderRef(ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("provider_reference = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByInternalRef(ref string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("internal_reference = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByUser(userID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// Transition applies the conditional status update: a single guarded UPDATE
// that only fires while the row still holds one of the from statuses. It is
// the sole mutation path for payment status, so concurrent callers on the
// same provider reference serialize on the row and at most one write wins.
// Returns true when the transition was applied, false when the row was
// absent or already past the guard.
func (r *PaymentRepository) Transition(providerRef string, from []domain.PaymentStatus, to domain.PaymentStatus, txID *string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if txID != nil {
		updates["tx_id"] = *txID
	}
	res := r.db.Model(&models.Payment{}).
		Where("provider_reference = ? AND status IN ?", providerRef, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
