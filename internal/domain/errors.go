package domain

import (
	"errors"
	"fmt"
)

// Классы ошибок. Внешний слой сопоставляет их с кодами ответа.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrInternal   = errors.New("internal error")
)

var (
	ErrInvalidAmount   = newError(ErrValidation, "tip amount must be greater than 0, below 1e12, with at most 8 decimal places")
	ErrInvalidCurrency = newError(ErrValidation, "unsupported currency")
	ErrEmptyContent    = newError(ErrValidation, "comment content cannot be empty")
	ErrContentTooLong  = newError(ErrValidation, "comment content is too long")
	ErrEmptyPost       = newError(ErrValidation, "title and body are required")
	ErrEmptyUsername   = newError(ErrValidation, "username is required")
	ErrInvalidBalance  = newError(ErrValidation, "balance must be non-negative, below 1e12, with at most 8 decimal places")
	ErrInvalidMedia    = newError(ErrValidation, "media needs a url and a type of audio, video or image")
	ErrSelfTip         = newError(ErrValidation, "you cannot tip your own comment")

	ErrPostNotFound   = newError(ErrNotFound, "post not found")
	ErrTargetNotFound = newError(ErrNotFound, "comment being replied to not found")
	ErrUserNotFound   = newError(ErrNotFound, "user not found")

	ErrAlreadyTipped       = newError(ErrConflict, "you have already tipped this target")
	ErrInsufficientBalance = newError(ErrConflict, "insufficient balance")
	ErrAlreadySettled      = newError(ErrConflict, "payout for this target is already settled")
	ErrConcurrentUpdate    = newError(ErrConflict, "target is being modified concurrently, try again")
	ErrPostHasPendingTips  = newError(ErrConflict, "post has tips waiting for payout and cannot be deleted")

	ErrNotPostAuthor   = newError(ErrForbidden, "not authorized to delete this post")
	ErrSeedingDisabled = newError(ErrForbidden, "user registration with a starting balance is disabled")
)

// Error - ошибка с классом и сообщением для клиента.
type Error struct {
	Kind error
	Msg  string
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

// Internal оборачивает ошибку хранилища в ErrInternal. Ошибки, у которых уже
// есть класс, возвращаются как есть.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrInternal} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
