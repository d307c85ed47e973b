package tasks

import (
	"time"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
)

// TaskDTO exposes a chore in API responses.
type TaskDTO struct {
	HouseholdID string           `json:"householdId"`
	ID          string           `json:"id"`
	AssigneeID  *string          `json:"assigneeId,omitempty"`
	Title       string           `json:"title"`
	Description *string          `json:"description,omitempty"`
	ValueCents  int64            `json:"valueCents"`
	Status      enums.TaskStatus `json:"status"`
	PaidAt      *time.Time       `json:"paidAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// TaskPage is a cursor-paginated list of tasks, newest first.
type TaskPage struct {
	Tasks      []TaskDTO `json:"tasks"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

// FromModel maps the persisted task into a DTO.
func FromModel(m *models.Task) *TaskDTO {
	if m == nil {
		return nil
	}
	return &TaskDTO{
		HouseholdID: m.HouseholdID,
		ID:          m.ID,
		AssigneeID:  m.AssigneeID,
		Title:       m.Title,
		Description: m.Description,
		ValueCents:  m.ValueCents,
		Status:      m.Status,
		PaidAt:      m.PaidAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
