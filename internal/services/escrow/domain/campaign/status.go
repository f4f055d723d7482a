package campaign

import "strings"

// Status describes the campaign lifecycle label used by domain decisions.
type Status string

const (
	StatusUnspecified Status = ""
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
)

// ParseStatus canonicalizes stored or user-supplied status labels.
func ParseStatus(value string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "ACTIVE", "CAMPAIGN_STATUS_ACTIVE":
		return StatusActive, true
	case "COMPLETED", "CAMPAIGN_STATUS_COMPLETED":
		return StatusCompleted, true
	default:
		return StatusUnspecified, false
	}
}

// IsStatusTransitionAllowed reports whether a status transition is permitted.
// Completion is terminal.
func IsStatusTransitionAllowed(from, to Status) bool {
	return from == StatusActive && to == StatusCompleted
}
