package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"artisan/config"
	"artisan/internal/domain"
	"artisan/internal/models"
	"artisan/internal/repository"
	"artisan/pkg/pi"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeProvider struct {
	mu            sync.Mutex
	identifier    string
	createCalls   int
	approveCalls  int
	completeCalls int
	createErr     error
	approveErr    error
	completeErr   error
	lastMetadata  map[string]interface{}
	lastTxID      string
}

func (f *fakeProvider) CreatePayment(ctx context.Context, req pi.CreateRequest) (*pi.RemotePayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastMetadata = req.Metadata
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := f.identifier
	if id == "" {
		id = fmt.Sprintf("P%d", f.createCalls)
	}
	return &pi.RemotePayment{Identifier: id, Amount: req.Amount, Status: "pending"}, nil
}

func (f *fakeProvider) ApprovePayment(ctx context.Context, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveCalls++
	return f.approveErr
}

func (f *fakeProvider) CompletePayment(ctx context.Context, identifier, txid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastTxID = txid
	return f.completeErr
}

func newTestService(t *testing.T, mode string) (*PaymentService, *repository.PaymentRepository, *repository.VideoRepository, *fakeProvider) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Video{}, &models.Payment{}, &models.Message{}))

	paymentRepo := repository.NewPaymentRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	provider := &fakeProvider{}
	cfg := &config.PiConfig{Mode: mode}
	return NewPaymentService(cfg, paymentRepo, videoRepo, provider), paymentRepo, videoRepo, provider
}

func TestCreate(t *testing.T) {
	svc, repo, videos, provider := newTestService(t, "sandbox")
	require.NoError(t, videos.Create(&models.Video{Title: "bowl turning", URL: "https://example.com/v.mp4", OwnerID: 2}))

	videoID := uint(1)
	res, err := svc.Create(context.Background(), 1, 10, &videoID, "bowl turning")
	require.NoError(t, err)
	require.NotEmpty(t, res.InternalReference)
	require.Equal(t, "P1", res.ProviderReference)
	require.Equal(t, res.InternalReference, provider.lastMetadata["internal_reference"])

	p, err := repo.GetByProviderRef("P1")
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, p.Status)
	require.Equal(t, uint(1), p.UserID)
	require.Equal(t, int64(10), p.Amount)
	require.Equal(t, domain.CurrencyPi, p.Currency)
	require.NotNil(t, p.VideoID)
	require.Nil(t, p.TxID)
}

func TestCreateInvalidAmount(t *testing.T) {
	svc, _, _, provider := newTestService(t, "sandbox")
	_, err := svc.Create(context.Background(), 1, 0, nil, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Create(context.Background(), 1, -5, nil, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Zero(t, provider.createCalls)
}

func TestCreateUnknownVideo(t *testing.T) {
	svc, _, _, provider := newTestService(t, "sandbox")
	videoID := uint(99)
	_, err := svc.Create(context.Background(), 1, 10, &videoID, "")
	require.ErrorIs(t, err, ErrVideoNotFound)
	require.Zero(t, provider.createCalls)
}

func TestCreateDuplicatePending(t *testing.T) {
	svc, _, _, provider := newTestService(t, "sandbox")
	_, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	// Second create is rejected before any provider traffic.
	_, err = svc.Create(context.Background(), 1, 5, nil, "")
	require.ErrorIs(t, err, ErrDuplicatePending)
	require.Equal(t, 1, provider.createCalls)

	// A different user is unaffected.
	_, err = svc.Create(context.Background(), 2, 10, nil, "")
	require.NoError(t, err)
}

func TestCreateProviderFailureLeavesNoRecord(t *testing.T) {
	svc, repo, _, provider := newTestService(t, "sandbox")
	provider.createErr = pi.ErrUnavailable

	_, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.ErrorIs(t, err, pi.ErrUnavailable)

	has, err := repo.HasPending(1)
	require.NoError(t, err)
	require.False(t, has)
}

func TestApprove(t *testing.T) {
	svc, repo, _, provider := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.Approve(context.Background(), res.ProviderReference))
	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentApproved, p.Status)

	// replay: no-op success
	require.NoError(t, svc.Approve(context.Background(), res.ProviderReference))
	require.Equal(t, 2, provider.approveCalls)
	p, err = repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentApproved, p.Status)
}

func TestApproveUnknownReference(t *testing.T) {
	svc, _, _, provider := newTestService(t, "sandbox")
	err := svc.Approve(context.Background(), "missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)
	require.Zero(t, provider.approveCalls)
}

func TestApproveProviderError(t *testing.T) {
	svc, repo, _, provider := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	provider.approveErr = &pi.APIError{StatusCode: 400, Body: "nope"}
	err = svc.Approve(context.Background(), res.ProviderReference)
	require.True(t, pi.IsRejected(err))

	// the failed remote call must not have touched local state
	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, p.Status)
}

func TestCompleteModePolicy(t *testing.T) {
	prod, _, _, provider := newTestService(t, "production")
	res, err := prod.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	err = prod.Complete(context.Background(), res.ProviderReference, "")
	require.ErrorIs(t, err, ErrMissingTxID)
	require.Zero(t, provider.completeCalls)

	require.NoError(t, prod.Complete(context.Background(), res.ProviderReference, "T1"))

	sandbox, repo, _, _ := newTestService(t, "sandbox")
	res, err = sandbox.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)
	require.NoError(t, sandbox.Complete(context.Background(), res.ProviderReference, ""))
	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
	require.Nil(t, p.TxID)
}

func TestCompleteIdempotent(t *testing.T) {
	svc, repo, _, _ := newTestService(t, "production")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.Complete(context.Background(), res.ProviderReference, "T1"))
	require.NoError(t, svc.Complete(context.Background(), res.ProviderReference, "T1"))

	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
	require.Equal(t, "T1", *p.TxID)
}

func TestCompleteSkipsApproved(t *testing.T) {
	svc, repo, _, _ := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	// pending -> completed directly is allowed
	require.NoError(t, svc.Complete(context.Background(), res.ProviderReference, "T1"))
	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
}

func TestWebhookUpdate(t *testing.T) {
	svc, repo, _, _ := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentApproved, ""))
	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentCompleted, "T1"))

	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
	require.Equal(t, "T1", *p.TxID)

	// duplicate delivery: same final state, no error
	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentCompleted, "T1"))
	p, err = repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, "T1", *p.TxID)
}

func TestWebhookFailed(t *testing.T) {
	svc, repo, _, _ := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentFailed, ""))
	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.Status)

	// failed is terminal: a late completed webhook is ignored
	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentCompleted, "T1"))
	p, err = repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentFailed, p.Status)
	require.Nil(t, p.TxID)
}

func TestWebhookInvalidStatus(t *testing.T) {
	svc, _, _, _ := newTestService(t, "sandbox")
	err := svc.ApplyWebhookUpdate("P1", domain.PaymentStatus("refunded"), "")
	require.ErrorIs(t, err, ErrInvalidStatus)
	err = svc.ApplyWebhookUpdate("P1", domain.PaymentPending, "")
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestWebhookUnknownReference(t *testing.T) {
	svc, _, _, _ := newTestService(t, "sandbox")
	err := svc.ApplyWebhookUpdate("missing", domain.PaymentCompleted, "T1")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

// A direct complete call racing the equivalent webhook must produce exactly
// one effective transition and a consistent txid.
func TestCompleteWebhookRaceConverges(t *testing.T) {
	svc, repo, _, _ := newTestService(t, "production")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = svc.Complete(context.Background(), res.ProviderReference, "T1")
	}()
	go func() {
		defer wg.Done()
		errs[1] = svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentCompleted, "T1")
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
	require.NotNil(t, p.TxID)
	require.Equal(t, "T1", *p.TxID)
}

func TestMonotonicAfterCompleted(t *testing.T) {
	svc, repo, _, _ := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)
	require.NoError(t, svc.Complete(context.Background(), res.ProviderReference, "T1"))

	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentApproved, ""))
	require.NoError(t, svc.ApplyWebhookUpdate(res.ProviderReference, domain.PaymentFailed, ""))
	require.NoError(t, svc.Approve(context.Background(), res.ProviderReference))

	p, err := repo.GetByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, p.Status)
	require.Equal(t, "T1", *p.TxID)
}

func TestStatusByProviderRef(t *testing.T) {
	svc, _, _, _ := newTestService(t, "sandbox")
	res, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)

	p, err := svc.StatusByProviderRef(res.ProviderReference)
	require.NoError(t, err)
	require.Equal(t, res.InternalReference, p.InternalReference)

	_, err = svc.StatusByProviderRef("missing")
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestReconciliationRequired(t *testing.T) {
	svc, repo, _, provider := newTestService(t, "sandbox")
	provider.identifier = "P-dup"

	// First create claims the provider reference.
	_, err := svc.Create(context.Background(), 1, 10, nil, "")
	require.NoError(t, err)
	_, err = repo.Transition("P-dup", domain.PaymentCompleted.PriorStatuses(), domain.PaymentCompleted, nil)
	require.NoError(t, err)

	// Second create succeeds remotely but collides on the unique provider
	// reference locally: the remote payment now exists without a record.
	_, err = svc.Create(context.Background(), 2, 10, nil, "")
	require.ErrorIs(t, err, ErrReconciliationRequired)
}

func TestErrorsDoNotWrapEachOther(t *testing.T) {
	require.False(t, errors.Is(ErrDuplicatePending, ErrInvalidAmount))
	require.False(t, errors.Is(ErrReconciliationRequired, ErrPaymentNotFound))
}
