package tasks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/pagination"
)

// Repository handles task persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to task operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new task row.
func (r *Repository) Create(ctx context.Context, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	return r.db.WithContext(ctx).Create(task).Error
}

// FindByID loads a task scoped to its household.
func (r *Repository) FindByID(ctx context.Context, householdID, taskID string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Where("household_id = ? AND id = ?", householdID, taskID).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListParams filters a household task listing.
type ListParams struct {
	HouseholdID string
	AssigneeID  string
	Limit       int
	Cursor      *pagination.Cursor
}

// List returns non-deleted tasks, newest first.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Task, error) {
	query := r.db.WithContext(ctx).
		Where("household_id = ? AND status <> ?", params.HouseholdID, enums.TaskStatusDeleted)
	if params.AssigneeID != "" {
		query = query.Where("assignee_id = ?", params.AssigneeID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", params.Cursor.CreatedAt, params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Task
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus moves a task from one status to another. It reports false
// when the task was no longer in from.
func (r *Repository) UpdateStatus(ctx context.Context, householdID, taskID string, from, to enums.TaskStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("household_id = ? AND id = ? AND status = ?", householdID, taskID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
