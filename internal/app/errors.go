package app

import "errors"

// Transfer failure taxonomy. The first six are terminal validation errors:
// they describe the request's own data and are surfaced to the caller
// verbatim. ErrStorageUnavailable is the only retryable kind and is returned
// after the engine has exhausted its internal conflict retries.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrSenderAccountNotFound   = errors.New("sender account not found")
	ErrTransferNotAllowed      = errors.New("fixed-deposit accounts cannot transfer")
	ErrReceiverAccountNotFound = errors.New("receiver account not found")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrDailyLimitExceeded      = errors.New("daily transaction limit exceeded")
	ErrStorageUnavailable      = errors.New("storage unavailable")

	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidDailyLimit  = errors.New("daily limit must not be negative")
)
