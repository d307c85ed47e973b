package enums

import "fmt"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeEarning           TransactionType = "EARNING"
	TransactionTypeAdvance           TransactionType = "ADVANCE"
	TransactionTypeAdjustment        TransactionType = "ADJUSTMENT"
	TransactionTypeWithdrawalRequest TransactionType = "WITHDRAWAL_REQUEST"
	TransactionTypeGoalAllocation    TransactionType = "GOAL_ALLOCATION"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeEarning,
	TransactionTypeAdvance,
	TransactionTypeAdjustment,
	TransactionTypeWithdrawalRequest,
	TransactionTypeGoalAllocation,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionStatus tracks settlement of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPaid     TransactionStatus = "PAID"
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusRejected TransactionStatus = "REJECTED"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPaid,
	TransactionStatusPending,
	TransactionStatusRejected,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
