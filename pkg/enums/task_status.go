package enums

import "fmt"

// TaskStatus tracks a chore through approval and payment.
type TaskStatus string

const (
	TaskStatusAssigned        TaskStatus = "ASSIGNED"
	TaskStatusPendingApproval TaskStatus = "PENDING_APPROVAL"
	TaskStatusPaid            TaskStatus = "PAID"
	TaskStatusRejected        TaskStatus = "REJECTED"
	TaskStatusDeleted         TaskStatus = "DELETED"
)

var validTaskStatuses = []TaskStatus{
	TaskStatusAssigned,
	TaskStatusPendingApproval,
	TaskStatusPaid,
	TaskStatusRejected,
	TaskStatusDeleted,
}

// String implements fmt.Stringer.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TaskStatus.
func (s TaskStatus) IsValid() bool {
	for _, candidate := range validTaskStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusPaid || s == TaskStatusDeleted
}

// ParseTaskStatus converts raw input into a TaskStatus.
func ParseTaskStatus(value string) (TaskStatus, error) {
	for _, candidate := range validTaskStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task status %q", value)
}
