package enums

import "testing"

func TestParseTransactionType(t *testing.T) {
	got, err := ParseTransactionType("GOAL_ALLOCATION")
	if err != nil || got != TransactionTypeGoalAllocation {
		t.Fatalf("unexpected parse result %q err=%v", got, err)
	}
	if _, err := ParseTransactionType("earning"); err == nil {
		t.Fatal("expected lowercase type to be rejected")
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusPaid, TaskStatusDeleted} {
		if !s.IsTerminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	for _, s := range []TaskStatus{TaskStatusAssigned, TaskStatusPendingApproval, TaskStatusRejected} {
		if s.IsTerminal() {
			t.Fatalf("expected %s non-terminal", s)
		}
	}
}

func TestParseMemberRole(t *testing.T) {
	if _, err := ParseMemberRole("owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
	role, err := ParseMemberRole("child")
	if err != nil || role != MemberRoleChild {
		t.Fatalf("unexpected role %q err=%v", role, err)
	}
}

func TestOutboxEnumsValid(t *testing.T) {
	if !EventTaskPaid.IsValid() || !AggregateLedgerTransaction.IsValid() {
		t.Fatal("expected ledger outbox enums to be valid")
	}
	if OutboxEventType("order_created").IsValid() {
		t.Fatal("unexpected event type accepted")
	}
	if !OutboxDLQReasonNonRetryable.IsValid() {
		t.Fatal("expected dlq reason valid")
	}
}
