package reservation

import "errors"

var (
	// ErrValidation covers malformed requests: bad time ranges, missing
	// identifiers, start times in the past.
	ErrValidation = errors.New("invalid booking request")

	// ErrNotFound means the referenced space or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the requested interval overlaps a non-cancelled
	// booking, or the space is not available.
	ErrConflict = errors.New("booking conflict")

	// ErrPolicyViolation means the cancellation policy forbids the
	// operation (less than the required notice, or a terminal booking).
	ErrPolicyViolation = errors.New("cancellation policy violation")

	// ErrPaymentGateway means the gateway rejected the payment intent;
	// nothing was persisted.
	ErrPaymentGateway = errors.New("payment gateway rejected the request")

	// ErrPersistence means the booking could not be persisted after a
	// payment intent was already opened. The intent is queued for
	// reconciliation, never silently leaked.
	ErrPersistence = errors.New("booking persistence failed after intent was opened")
)
