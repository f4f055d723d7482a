// Package ledger defines the value types every escrow component agrees on:
// amounts of the native value unit, account identities and timestamps.
package ledger

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Amount is a count of indivisible minor units of the native value.
type Amount uint64

// MaxAmount is the largest representable amount.
const MaxAmount = Amount(math.MaxUint64)

// Add returns a+b, clamped at MaxAmount.
func (a Amount) Add(b Amount) Amount {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return MaxAmount
	}
	return Amount(sum)
}

// Sub returns a-b, clamped at zero.
func (a Amount) Sub(b Amount) Amount {
	diff, borrow := bits.Sub64(uint64(a), uint64(b), 0)
	if borrow != 0 {
		return 0
	}
	return Amount(diff)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a == 0
}

// String renders the amount in base 10.
func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// ParseAmount parses a base-10 amount. Surrounding whitespace is ignored.
func ParseAmount(value string) (Amount, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("parse amount: empty value")
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return Amount(n), nil
}

// MarshalText encodes the amount as a decimal string so JSON clients never
// lose precision above 2^53.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes a decimal string.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
