package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"artisan/config"
	"artisan/internal/domain"
	"artisan/internal/models"
	"artisan/internal/repository"
	"artisan/pkg/pi"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrDuplicatePending = errors.New("a pending payment already exists for this user")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrVideoNotFound    = errors.New("video not found")
	ErrMissingTxID      = errors.New("txid is required in production mode")
	ErrInvalidStatus    = errors.New("unsupported payment status")
	// ErrReconciliationRequired means the provider-side payment exists but
	// the local record could not be written. It must reach an operator.
	ErrReconciliationRequired = errors.New("remote payment created but local record failed; manual reconciliation required")
)

// VideoCatalog is the narrow view of the catalog the payment flow needs.
type VideoCatalog interface {
	GetByID(id uint) (*models.Video, error)
}

// PaymentService reconciles local payment records with the Pi platform.
// Direct approve/complete calls and webhook notifications all converge on
// PaymentRepository.Transition, so whichever path arrives first performs
// the real state change and the other observes a no-op.
type PaymentService struct {
	cfg      *config.PiConfig
	payments *repository.PaymentRepository
	videos   VideoCatalog
	provider pi.Provider
}

func NewPaymentService(cfg *config.PiConfig, payments *repository.PaymentRepository, videos VideoCatalog, provider pi.Provider) *PaymentService {
	return &PaymentService{cfg: cfg, payments: payments, videos: videos, provider: provider}
}

type CreateResult struct {
	InternalReference string `json:"internal_reference"`
	ProviderReference string `json:"provider_reference"`
}

// Create opens a payment on the provider and persists the pending record.
// The duplicate-pending admission runs before the provider call so a
// rejected request costs no remote traffic, then again inside the insert
// transaction to shrink the race window.
func (s *PaymentService) Create(ctx context.Context, userID uint, amount int64, videoID *uint, memo string) (*CreateResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if videoID != nil {
		if _, err := s.videos.GetByID(*videoID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrVideoNotFound
			}
			return nil, err
		}
	}
	pending, err := s.payments.HasPending(userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrDuplicatePending
	}

	internalRef := uuid.New().String()
	metadata := map[string]interface{}{
		"internal_reference": internalRef,
		"user_id":            userID,
	}
	if videoID != nil {
		metadata["video_id"] = *videoID
	}
	remote, err := s.provider.CreatePayment(ctx, pi.CreateRequest{Amount: amount, Memo: memo, Metadata: metadata})
	if err != nil {
		// Nothing was persisted; the caller can simply retry.
		return nil, err
	}

	p := &models.Payment{
		InternalReference: internalRef,
		ProviderReference: &remote.Identifier,
		UserID:            userID,
		VideoID:           videoID,
		Amount:            amount,
		Currency:          domain.CurrencyPi,
		Status:            domain.PaymentPending,
		Memo:              memo,
	}
	if err := s.payments.CreateIfNoPending(p); err != nil {
		if errors.Is(err, repository.ErrPendingExists) {
			log.Printf("[payment] duplicate pending won the race for user=%d; remote payment %s left unreconciled", userID, remote.Identifier)
			return nil, ErrDuplicatePending
		}
		log.Printf("[payment] RECONCILIATION REQUIRED: remote=%s internal=%s user=%d amount=%d err=%v", remote.Identifier, internalRef, userID, amount, err)
		return nil, fmt.Errorf("%w: provider_reference=%s: %v", ErrReconciliationRequired, remote.Identifier, err)
	}
	return &CreateResult{InternalReference: internalRef, ProviderReference: remote.Identifier}, nil
}

// Approve confirms the payment on the provider, then moves pending to
// approved. A record already at approved or beyond makes this a no-op
// success.
func (s *PaymentService) Approve(ctx context.Context, providerRef string) error {
	if _, err := s.lookup(providerRef); err != nil {
		return err
	}
	if err := s.provider.ApprovePayment(ctx, providerRef); err != nil {
		return err
	}
	applied, err := s.payments.Transition(providerRef, domain.PaymentApproved.PriorStatuses(), domain.PaymentApproved, nil)
	if err != nil {
		return err
	}
	if !applied {
		log.Printf("[payment] approve no-op for %s (already approved or later)", providerRef)
	}
	return nil
}

// Complete settles the payment on the provider, then moves pending or
// approved to completed and records the transaction id. Re-invocation after
// completion is a no-op success.
func (s *PaymentService) Complete(ctx context.Context, providerRef, txid string) error {
	if txid == "" && !s.cfg.Sandbox() {
		return ErrMissingTxID
	}
	if _, err := s.lookup(providerRef); err != nil {
		return err
	}
	if err := s.provider.CompletePayment(ctx, providerRef, txid); err != nil {
		return err
	}
	var txp *string
	if txid != "" {
		txp = &txid
	}
	applied, err := s.payments.Transition(providerRef, domain.PaymentCompleted.PriorStatuses(), domain.PaymentCompleted, txp)
	if err != nil {
		return err
	}
	if !applied {
		log.Printf("[payment] complete no-op for %s (already terminal)", providerRef)
	}
	return nil
}

// ApplyWebhookUpdate is the webhook-side convergence point. The caller has
// already verified the signature, so the provider-asserted status is
// trusted within the transition table; anything outside approved, completed
// or failed is rejected.
func (s *PaymentService) ApplyWebhookUpdate(providerRef string, status domain.PaymentStatus, txid string) error {
	from := status.PriorStatuses()
	if len(from) == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var txp *string
	if status == domain.PaymentCompleted && txid != "" {
		txp = &txid
	}
	applied, err := s.payments.Transition(providerRef, from, status, txp)
	if err != nil {
		return err
	}
	if applied {
		log.Printf("[payment] webhook moved %s to %s", providerRef, status)
		return nil
	}
	// No row moved: either the reference is unknown or the record is
	// already at or past the asserted status. The latter is the expected
	// duplicate/out-of-order delivery case.
	if _, err := s.lookup(providerRef); err != nil {
		return err
	}
	log.Printf("[payment] webhook no-op for %s (status=%s already applied or terminal)", providerRef, status)
	return nil
}

// StatusByProviderRef is the read-only polling fallback for delayed webhooks.
func (s *PaymentService) StatusByProviderRef(providerRef string) (*models.Payment, error) {
	return s.lookup(providerRef)
}

func (s *PaymentService) ListByUser(userID uint) ([]models.Payment, error) {
	return s.payments.ListByUser(userID)
}

func (s *PaymentService) lookup(providerRef string) (*models.Payment, error) {
	p, err := s.payments.GetByProviderRef(providerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}
