package normalize

import (
	"errors"
	"fmt"
)

// Sentinel kinds for InputError. Match with errors.Is.
var (
	ErrEmptyInput       = errors.New("empty input")
	ErrAmbiguousParties = errors.New("ambiguous parties")
	ErrSizeExceeded     = errors.New("size exceeded")
)

// InputError is a terminal problem with the submitted conversation.
// Message and Hint are written for the person who submitted it.
type InputError struct {
	Kind    error
	Message string
	Hint    string
}

func (e *InputError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + "\n\nHint: " + e.Hint
}

func (e *InputError) Unwrap() error {
	return e.Kind
}

// UserMessage returns the text shown to the submitter.
func (e *InputError) UserMessage() string {
	return e.Message
}

func emptyInputError(hint string) *InputError {
	return &InputError{
		Kind:    ErrEmptyInput,
		Message: "No messages found in the conversation",
		Hint:    hint,
	}
}

func sizeExceededError(size, limit int64) *InputError {
	return &InputError{
		Kind:    ErrSizeExceeded,
		Message: fmt.Sprintf("Conversation is too large (%s, limit %s)", humanBytes(size), humanBytes(limit)),
		Hint:    "Split the export into smaller date ranges and analyze them separately.",
	}
}

func ambiguousPartiesError(a, b, third string) *InputError {
	return &InputError{
		Kind:    ErrAmbiguousParties,
		Message: fmt.Sprintf("Found more than two senders (%q, %q, %q)", a, b, third),
		Hint:    "Only two-person conversations are supported. Set both names so that alternate sender labels can be matched.",
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// CheckSize returns an InputError when size exceeds limit. A non-positive
// limit means DefaultMaxBytes.
func CheckSize(size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if size > limit {
		return sizeExceededError(size, limit)
	}
	return nil
}
