package repository

import (
	"path/filepath"
	"testing"

	"artisan/internal/domain"
	"artisan/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Video{}, &models.Payment{}, &models.Message{}))
	return db
}

func newPending(userID uint, providerRef, internalRef string) *models.Payment {
	ref := providerRef
	return &models.Payment{
		InternalReference: internalRef,
		ProviderReference: &ref,
		UserID:            userID,
		Amount:            10,
		Currency:          domain.CurrencyPi,
		Status:            domain.PaymentPending,
	}
}

func TestCreateIfNoPending(t *testing.T) {
	repo := NewPaymentRepository(setupDB(t))

	require.NoError(t, repo.CreateIfNoPending(newPending(1, "P1", "I1")))

	err := repo.CreateIfNoPending(newPending(1, "P2", "I2"))
	require.ErrorIs(t, err, ErrPendingExists)

	// other users are unaffected
	require.NoError(t, repo.CreateIfNoPending(newPending(2, "P3", "I3")))

	// once the first payment leaves pending, the user may create again
	applied, err := repo.Transition("P1", domain.PaymentCompleted.PriorStatuses(), domain.PaymentCompleted, nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.NoError(t, repo.CreateIfNoPending(newPending(1, "P4", "I4")))
}

func TestTransitionGuards(t *testing.T) {
	repo := NewPaymentRepository(setupDB(t))
	require.NoError(t, repo.CreateIfNoPending(newPending(1, "P1", "I1")))

	// pending -> approved
	applied, err := repo.Transition("P1", domain.PaymentApproved.PriorStatuses(), domain.PaymentApproved, nil)
	require.NoError(t, err)
	require.True(t, applied)

	// approving again is a no-op, not an error
	applied, err = repo.Transition("P1", domain.PaymentApproved.PriorStatuses(), domain.PaymentApproved, nil)
	require.NoError(t, err)
	require.False(t, applied)

	// approved -> completed records the txid
	txid := "T1"
	applied, err = repo.Transition("P1", domain.PaymentCompleted.PriorStatuses(), domain.PaymentCompleted, &txid)
	require.NoError(t, err)
	require.True(t, applied)

	p, err := repo.GetByProviderRef("P1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
	require.NotNil(t, p.TxID)
	require.Equal(t, "T1", *p.TxID)

	// terminal: nothing moves a completed payment
	applied, err = repo.Transition("P1", domain.PaymentFailed.PriorStatuses(), domain.PaymentFailed, nil)
	require.NoError(t, err)
	require.False(t, applied)
	applied, err = repo.Transition("P1", domain.PaymentApproved.PriorStatuses(), domain.PaymentApproved, nil)
	require.NoError(t, err)
	require.False(t, applied)

	p, err = repo.GetByProviderRef("P1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
}

func TestTransitionUnknownReference(t *testing.T) {
	repo := NewPaymentRepository(setupDB(t))
	applied, err := repo.Transition("missing", domain.PaymentApproved.PriorStatuses(), domain.PaymentApproved, nil)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestTransitionFailedFromApproved(t *testing.T) {
	repo := NewPaymentRepository(setupDB(t))
	require.NoError(t, repo.CreateIfNoPending(newPending(1, "P1", "I1")))

	applied, err := repo.Transition("P1", domain.PaymentApproved.PriorStatuses(), domain.PaymentApproved, nil)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = repo.Transition("P1", domain.PaymentFailed.PriorStatuses(), domain.PaymentFailed, nil)
	require.NoError(t, err)
	require.True(t, applied)

	// failed is terminal
	applied, err = repo.Transition("P1", domain.PaymentCompleted.PriorStatuses(), domain.PaymentCompleted, nil)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestListByUser(t *testing.T) {
	repo := NewPaymentRepository(setupDB(t))
	require.NoError(t, repo.CreateIfNoPending(newPending(1, "P1", "I1")))
	_, err := repo.Transition("P1", domain.PaymentCompleted.PriorStatuses(), domain.PaymentCompleted, nil)
	require.NoError(t, err)
	require.NoError(t, repo.CreateIfNoPending(newPending(1, "P2", "I2")))

	payments, err := repo.ListByUser(1)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	payments, err = repo.ListByUser(2)
	require.NoError(t, err)
	require.Empty(t, payments)
}
