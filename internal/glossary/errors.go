package glossary

import (
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/finiti-glossary/internal/model"
)

// Kind classifies an operation failure for the HTTP boundary.
type Kind int

const (
	KindValidation Kind = iota + 1 // bad input, 400
	KindNotFound                   // missing term or version, 404
	KindUnexpected                 // storage or infrastructure failure, 500
)

// Error is returned by every engine operation that fails.  Message is safe
// to show to the caller.  Err carries the real cause for logging and is
// never rendered.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, treating foreign errors as unexpected.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnexpected
}

func validationErr(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func notFoundErr(op, msg string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg}
}

var unexpectedMessages = map[string]string{
	"create":  "An unexpected server error occurred during term creation.",
	"publish": "An unexpected server error occurred during publishing.",
	"update":  "An unexpected server error occurred during term update.",
	"archive": "An unexpected server error occurred during archive operation.",
	"restore": "An unexpected server error occurred during restore operation.",
	"delete":  "An unexpected server error occurred during deletion.",
	"history": "An unexpected server error occurred during history retrieval.",
	"list":    "An unexpected server error occurred during data retrieval.",
}

func unexpectedErr(op string, cause error) error {
	msg, ok := unexpectedMessages[op]
	if !ok {
		msg = "An unexpected server error occurred."
	}
	return &Error{Kind: KindUnexpected, Op: op, Message: msg, Err: cause}
}

// Result is the body of a successful (or softly failed) mutation.
// Applied is false when the operation left the store untouched: an
// identical restore, publishing an already published term, or a write
// that persisted nothing.
type Result struct {
	Message  string            `json:"message"`
	Restored *bool             `json:"restored,omitempty"`
	StableID *uuid.UUID        `json:"stableId,omitempty"`
	Term     *model.ActiveTerm `json:"term,omitempty"`
	Applied  bool              `json:"-"`
}
