package domain

import "errors"

var (
	ErrInvalidName   = errors.New("name is required")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrSameAccount   = errors.New("source and destination are the same account")

	ErrAccountNotFound     = errors.New("account not found")
	ErrSourceNotFound      = errors.New("source account not found")
	ErrDestinationNotFound = errors.New("destination account not found")

	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateKey is returned by stores when a key or uid is taken.
	ErrDuplicateKey = errors.New("duplicate account key or uid")
	// ErrConflict means account creation kept colliding and gave up.
	ErrConflict = errors.New("could not allocate a unique account key")
)

// Kind groups errors by how callers should react to them.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

var codes = []struct {
	err  error
	code string
	kind Kind
}{
	{ErrInvalidName, "INVALID_NAME", KindValidation},
	{ErrInvalidAmount, "INVALID_AMOUNT", KindValidation},
	{ErrSameAccount, "SAME_ACCOUNT", KindValidation},
	{ErrSourceNotFound, "SOURCE_NOT_FOUND", KindNotFound},
	{ErrDestinationNotFound, "DESTINATION_NOT_FOUND", KindNotFound},
	{ErrAccountNotFound, "ACCOUNT_NOT_FOUND", KindNotFound},
	{ErrInsufficientFunds, "INSUFFICIENT_FUNDS", KindInsufficientFunds},
	{ErrDuplicateKey, "CONFLICT", KindConflict},
	{ErrConflict, "CONFLICT", KindConflict},
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.kind
		}
	}
	return KindInternal
}

// CodeOf returns the stable outcome code for err.
func CodeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "INTERNAL"
}
