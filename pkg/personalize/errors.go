package personalize

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch indicates single mode was requested with no recipients.
	ErrEmptyBatch = errors.New("empty batch: no base recipient to render from")

	// ErrUnknownMode indicates an unsupported binding mode.
	ErrUnknownMode = errors.New("unknown personalization mode")

	// ErrUnknownPolicy indicates an unsupported error policy name.
	ErrUnknownPolicy = errors.New("unknown error policy")
)

// RecipientError reports a render failure for one recipient.
type RecipientError struct {
	Err   error
	Email string
	Index int
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient %d (%s): %v", e.Index, e.Email, e.Err)
}

func (e *RecipientError) Unwrap() error { return e.Err }
