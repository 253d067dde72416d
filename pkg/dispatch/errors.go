package dispatch

import "errors"

var (
	// ErrNoRecipient indicates a payload without an email address.
	ErrNoRecipient = errors.New("email must have at least one recipient")

	// ErrNoSubject indicates no subject was provided.
	ErrNoSubject = errors.New("email must have a subject")

	// ErrNoContent indicates a payload with an empty body.
	ErrNoContent = errors.New("email must have content")

	// ErrSendFailed indicates the sender rejected the email.
	ErrSendFailed = errors.New("failed to send email")

	// ErrNotAttempted marks payloads skipped after an earlier failure.
	ErrNotAttempted = errors.New("not attempted after earlier failure")

	// ErrComposeFailed indicates the email could not be built from the payload.
	ErrComposeFailed = errors.New("failed to compose email")

	// ErrUnknownPolicy indicates an unsupported failure policy name.
	ErrUnknownPolicy = errors.New("unknown dispatch policy")
)
