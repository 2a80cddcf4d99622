package idempotency

import "errors"

var (
	ErrEmptyKey    = errors.New("idempotency key is empty")
	ErrClaimFailed = errors.New("failed to claim idempotency key")
)
