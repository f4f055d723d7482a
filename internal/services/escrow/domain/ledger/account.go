package ledger

import "strings"

// AccountID identifies a principal supplied by the identity provider.
type AccountID string

// NewAccountID trims surrounding whitespace from value.
func NewAccountID(value string) AccountID {
	return AccountID(strings.TrimSpace(value))
}

// IsZero reports whether the identity is missing.
func (a AccountID) IsZero() bool {
	return a == ""
}

// String returns the raw identity.
func (a AccountID) String() string {
	return string(a)
}
