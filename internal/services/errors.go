package services

import "errors"

var (
	ErrValidation            = errors.New("validation failed")
	ErrProductNotFound       = errors.New("product not found")
	ErrLocationNotFound      = errors.New("location not found")
	ErrBatchNotFound         = errors.New("batch not found")
	ErrMovementNotFound      = errors.New("movement not found")
	ErrStockCountNotFound    = errors.New("stock count not found")
	ErrAlertNotFound         = errors.New("alert not found")
	ErrInsufficientStock     = errors.New("insufficient available stock")
	ErrIdempotencyConflict   = errors.New("idempotency key reused with a different payload")
	ErrCountAlreadyCompleted = errors.New("stock count already completed")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
)
