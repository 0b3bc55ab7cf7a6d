// Package item provides the planning item model for planview.
package item

// Status represents the lifecycle state of a planning item.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInPlanning Status = "in-planning"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	// StatusArchived is an orthogonal side-state: excluded from the ordered
	// scale and from propagation.
	StatusArchived Status = "archived"
)

// ValidStatuses returns all valid status values, in scale order,
// with archived last.
func ValidStatuses() []Status {
	return []Status{
		StatusNotStarted, StatusInPlanning, StatusReady,
		StatusInProgress, StatusBlocked, StatusCompleted,
		StatusArchived,
	}
}

// IsValidStatus returns true if the status is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusNotStarted, StatusInPlanning, StatusReady,
		StatusInProgress, StatusBlocked, StatusCompleted, StatusArchived:
		return true
	default:
		return false
	}
}

// Rank returns the position of a status on the ordered scale
// not-started < in-planning < ready < in-progress < blocked < completed.
// Archived and unknown statuses return -1.
func (s Status) Rank() int {
	switch s {
	case StatusNotStarted:
		return 0
	case StatusInPlanning:
		return 1
	case StatusReady:
		return 2
	case StatusInProgress:
		return 3
	case StatusBlocked:
		return 4
	case StatusCompleted:
		return 5
	default:
		return -1
	}
}

// Label returns a human-readable label for a status.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not Started"
	case StatusInPlanning:
		return "In Planning"
	case StatusReady:
		return "Ready"
	case StatusInProgress:
		return "In Progress"
	case StatusBlocked:
		return "Blocked"
	case StatusCompleted:
		return "Completed"
	case StatusArchived:
		return "Archived"
	default:
		return string(s)
	}
}
