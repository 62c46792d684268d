package extract

import (
	"errors"
	"fmt"

	"rapport-agent/src/normalize"
)

var (
	ErrNoText       = errors.New("no text found in document")
	ErrUnsupported  = errors.New("unsupported document type")
	ErrUnavailable  = errors.New("extraction service unavailable")
	ErrNotAvailable = errors.New("no extraction service configured")
)

// ExtractionError reports that the external collaborator could not recover text.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Document == "" {
		return fmt.Sprintf("extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("extraction failed for %s: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts input and extraction errors to user-friendly messages.
// Other errors are returned unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var inputErr *normalize.InputError
	if errors.As(err, &inputErr) {
		return &UserError{
			Message: inputErr.Message,
			Hint:    inputErr.Hint,
			Err:     err,
		}
	}

	switch {
	case errors.Is(err, ErrNoText):
		return &UserError{
			Message: "No readable text was found in the uploaded file",
			Hint:    "Make sure the screenshot or PDF shows the conversation clearly, or paste the text instead.",
			Err:     err,
		}
	case errors.Is(err, ErrUnsupported):
		return &UserError{
			Message: "This file type can't be read",
			Hint:    "Supported uploads:\n  - Images (PNG, JPEG, HEIC)\n  - PDF documents\n  - Plain-text chat exports",
			Err:     err,
		}
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrNotAvailable):
		return &UserError{
			Message: "Text extraction is not available right now",
			Hint:    "Try again later, or paste the conversation text directly.",
			Err:     err,
		}
	}

	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return &UserError{
			Message: "Text extraction failed",
			Hint:    "Try again, or paste the conversation text directly.",
			Err:     err,
		}
	}

	return err
}

// UserMessage returns the one-line message shown to an end user, or "" when
// err has no user-facing rendering.
func UserMessage(err error) string {
	var userErr *UserError
	if errors.As(WrapError(err), &userErr) {
		return userErr.Message
	}
	return ""
}
