package tasks

import (
	"fmt"

	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
)

// allowedTransitions lists the moves this package may make. PAID is absent
// on purpose: only a ledger task payment sets it.
var allowedTransitions = map[enums.TaskStatus][]enums.TaskStatus{
	enums.TaskStatusAssigned:        {enums.TaskStatusPendingApproval, enums.TaskStatusDeleted},
	enums.TaskStatusPendingApproval: {enums.TaskStatusRejected, enums.TaskStatusDeleted},
	enums.TaskStatusRejected:        {enums.TaskStatusPendingApproval, enums.TaskStatusDeleted},
}

func checkTransition(from, to enums.TaskStatus) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("task is %s", from))
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move task from %s to %s", from, to))
}
