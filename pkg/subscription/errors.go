package subscription

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrGateway         = errors.New("billing gateway error")
	ErrIllegalState    = errors.New("operation not allowed in current subscription state")
	ErrIllegalArgument = errors.New("illegal argument")

	ErrOwnerNotFound        = errors.New("billable owner not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	ErrNotInGracePeriod     = errors.New("subscription is not within its grace period")
	ErrNoBillingIdentity    = errors.New("owner has no billing identity")
	ErrNoProductItems       = errors.New("remote subscription has no product items")
	ErrUnknownCurrency      = errors.New("unable to guess symbol for currency")
	ErrInvalidCurrency      = errors.New("invalid currency code")
	ErrInvalidPlanCatalog   = errors.New("invalid plan catalog")
	ErrInvalidEventEnvelope = errors.New("invalid webhook event envelope")

	// ErrNoChange is returned by an UpdateSubscription callback to skip the write.
	ErrNoChange = errors.New("no change")
)

// GatewayError reports a failed provider call. It matches ErrGateway with
// errors.Is.
type GatewayError struct {
	Op         string // gateway operation, e.g. "create_subscription"
	StatusCode int    // HTTP status, 0 for transport failures
	Message    string // provider supplied message
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("billing gateway: %s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("billing gateway: %s: %s", e.Op, msg)
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGateway}
	}
	return []error{ErrGateway, e.Err}
}

// IsNotFound reports whether err means an owner or subscription is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOwnerNotFound) || errors.Is(err, ErrSubscriptionNotFound)
}

// asGatewayError wraps a non-gateway error returned by a gateway
// implementation so callers can always match ErrGateway.
func asGatewayError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}
