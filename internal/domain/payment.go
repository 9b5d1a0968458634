package domain

// PaymentStatus is the lifecycle state of a payment. Transitions only move
// forward: pending -> approved -> completed, with failed reachable from
// pending or approved. completed and failed are terminal.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// PriorStatuses returns the set of statuses a payment may hold immediately
// before moving to s. An empty slice means s is never a valid target.
func (s PaymentStatus) PriorStatuses() []PaymentStatus {
	switch s {
	case PaymentApproved:
		return []PaymentStatus{PaymentPending}
	case PaymentCompleted:
		return []PaymentStatus{PaymentPending, PaymentApproved}
	case PaymentFailed:
		return []PaymentStatus{PaymentPending, PaymentApproved}
	}
	return nil
}

// Terminal reports whether no further transitions are accepted from s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

const (
	RoleArtisan = "ARTISAN"
	RoleAdmin   = "ADMIN"
)

const CurrencyPi = "PI"
