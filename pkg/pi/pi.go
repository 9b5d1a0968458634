package pi

import (
	"context"
	"errors"
	"fmt"
)

// CreateRequest describes a payment to open on the Pi platform.
type CreateRequest struct {
	Amount   int64
	Memo     string
	Metadata map[string]interface{}
}

// RemotePayment is the provider-side view of a payment.
type RemotePayment struct {
	Identifier string `json:"identifier"`
	Amount     int64  `json:"amount"`
	Memo       string `json:"memo"`
	Status     string `json:"status"`
	TxID       string `json:"txid"`
}

// Provider issues outbound calls against the Pi platform API.
type Provider interface {
	CreatePayment(ctx context.Context, req CreateRequest) (*RemotePayment, error)
	ApprovePayment(ctx context.Context, identifier string) error
	CompletePayment(ctx context.Context, identifier, txid string) error
}

// ErrUnavailable wraps timeouts and 5xx responses that persisted through the
// retry budget.
var ErrUnavailable = errors.New("pi: provider unavailable")

// APIError is a non-retryable 4xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pi: api error %d: %s", e.StatusCode, e.Body)
}

// IsRejected reports whether err is a provider-side rejection (4xx).
func IsRejected(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
