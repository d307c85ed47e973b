package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/pagination"
)

type taskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, householdID, taskID string) (*models.Task, error)
	List(ctx context.Context, params ListParams) ([]models.Task, error)
	UpdateStatus(ctx context.Context, householdID, taskID string, from, to enums.TaskStatus, at time.Time) (bool, error)
}

type profileFinder interface {
	FindByID(ctx context.Context, householdID, profileID string) (*models.Profile, error)
}

// Service exposes chore operations. Payment is not one of them; the ledger
// marks tasks PAID.
type Service interface {
	Create(ctx context.Context, input CreateTaskInput) (*TaskDTO, error)
	Get(ctx context.Context, householdID, taskID string) (*TaskDTO, error)
	List(ctx context.Context, params ListTasksParams) (*TaskPage, error)
	Submit(ctx context.Context, input SubmitTaskInput) (*TaskDTO, error)
	Reject(ctx context.Context, householdID, taskID string) (*TaskDTO, error)
	Delete(ctx context.Context, householdID, taskID string) error
}

// CreateTaskInput captures a new chore assigned to a profile.
type CreateTaskInput struct {
	HouseholdID string
	AssigneeID  string
	Title       string
	Description *string
	ValueCents  int64
}

// ListTasksParams filters a task listing.
type ListTasksParams struct {
	HouseholdID string
	AssigneeID  string
	Limit       int
	Cursor      string
}

// SubmitTaskInput marks a chore done. ActorProfileID, when set, must be the
// assignee.
type SubmitTaskInput struct {
	HouseholdID    string
	TaskID         string
	ActorProfileID string
}

type service struct {
	repo     taskRepository
	profiles profileFinder
	now      func() time.Time
}

// NewService builds a task service.
func NewService(repo taskRepository, profiles profileFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("task repository required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{repo: repo, profiles: profiles, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateTaskInput) (*TaskDTO, error) {
	householdID := strings.TrimSpace(input.HouseholdID)
	assigneeID := strings.TrimSpace(input.AssigneeID)
	title := strings.TrimSpace(input.Title)
	switch {
	case householdID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId is required")
	case assigneeID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assigneeId is required")
	case title == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case input.ValueCents < 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valueCents cannot be negative")
	}

	if _, err := s.profiles.FindByID(ctx, householdID, assigneeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignee not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignee")
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	task := &models.Task{
		HouseholdID: householdID,
		ID:          uuid.NewString(),
		AssigneeID:  &assigneeID,
		Title:       title,
		Description: input.Description,
		ValueCents:  input.ValueCents,
		Status:      enums.TaskStatusAssigned,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create task")
	}
	return FromModel(task), nil
}

func (s *service) Get(ctx context.Context, householdID, taskID string) (*TaskDTO, error) {
	task, err := s.load(ctx, householdID, taskID)
	if err != nil {
		return nil, err
	}
	return FromModel(task), nil
}

func (s *service) List(ctx context.Context, params ListTasksParams) (*TaskPage, error) {
	householdID := strings.TrimSpace(params.HouseholdID)
	if householdID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId is required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, ListParams{
		HouseholdID: householdID,
		AssigneeID:  strings.TrimSpace(params.AssigneeID),
		Limit:       pagination.LimitWithBuffer(params.Limit),
		Cursor:      cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tasks")
	}

	page := &TaskPage{Tasks: make([]TaskDTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for i := range rows {
		page.Tasks = append(page.Tasks, *FromModel(&rows[i]))
	}
	return page, nil
}

func (s *service) Submit(ctx context.Context, input SubmitTaskInput) (*TaskDTO, error) {
	task, err := s.load(ctx, input.HouseholdID, input.TaskID)
	if err != nil {
		return nil, err
	}
	actor := strings.TrimSpace(input.ActorProfileID)
	if actor != "" && (task.AssigneeID == nil || *task.AssigneeID != actor) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "task is assigned to another profile")
	}
	return s.transition(ctx, task, enums.TaskStatusPendingApproval)
}

func (s *service) Reject(ctx context.Context, householdID, taskID string) (*TaskDTO, error) {
	task, err := s.load(ctx, householdID, taskID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, task, enums.TaskStatusRejected)
}

func (s *service) Delete(ctx context.Context, householdID, taskID string) error {
	task, err := s.load(ctx, householdID, taskID)
	if err != nil {
		return err
	}
	_, err = s.transition(ctx, task, enums.TaskStatusDeleted)
	return err
}

func (s *service) transition(ctx context.Context, task *models.Task, to enums.TaskStatus) (*TaskDTO, error) {
	if err := checkTransition(task.Status, to); err != nil {
		return nil, err
	}
	at := s.now().UTC().Truncate(time.Microsecond)
	ok, err := s.repo.UpdateStatus(ctx, task.HouseholdID, task.ID, task.Status, to, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update task status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "task changed concurrently")
	}
	task.Status = to
	task.UpdatedAt = at
	return FromModel(task), nil
}

func (s *service) load(ctx context.Context, householdID, taskID string) (*models.Task, error) {
	householdID = strings.TrimSpace(householdID)
	taskID = strings.TrimSpace(taskID)
	if householdID == "" || taskID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId and taskId are required")
	}
	task, err := s.repo.FindByID(ctx, householdID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task")
	}
	if task.Status == enums.TaskStatusDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task not found")
	}
	return task, nil
}
