package ledger

import (
	"math"
	"time"
)

// Timestamp is a point in time in nanoseconds since the Unix epoch.
type Timestamp int64

const nanosPerSecond = int64(time.Second)

// FromTime converts t to a Timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixNano())
}

// Time converts the timestamp back to a UTC time.
func (t Timestamp) Time() time.Time {
	return time.Unix(0, int64(t)).UTC()
}

// AddSeconds returns t advanced by seconds, clamped at the largest
// representable timestamp. Negative inputs are treated as zero.
func (t Timestamp) AddSeconds(seconds int64) Timestamp {
	if seconds <= 0 {
		return t
	}
	if seconds > math.MaxInt64/nanosPerSecond {
		return Timestamp(math.MaxInt64)
	}
	delta := seconds * nanosPerSecond
	if int64(t) > math.MaxInt64-delta {
		return Timestamp(math.MaxInt64)
	}
	return t + Timestamp(delta)
}

// After reports whether t is strictly later than other.
func (t Timestamp) After(other Timestamp) bool {
	return t > other
}

// Before reports whether t is strictly earlier than other.
func (t Timestamp) Before(other Timestamp) bool {
	return t < other
}
