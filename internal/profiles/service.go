package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chorepay-backend/pkg/errors"
	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

type txRunner interface {
	WithRetryTx(ctx context.Context, opts db.RetryOptions, fn func(tx *gorm.DB) error) error
}

// Service exposes profile operations. Balances are read-only here.
type Service interface {
	Create(ctx context.Context, input CreateProfileInput) (*ProfileDTO, error)
	Get(ctx context.Context, householdID, profileID string) (*ProfileDTO, error)
	List(ctx context.Context, householdID string) ([]ProfileDTO, error)
	AddGoal(ctx context.Context, input AddGoalInput) (*ProfileDTO, error)
}

// CreateProfileInput captures a new child profile. ID is generated when empty.
type CreateProfileInput struct {
	HouseholdID string
	ID          string
	DisplayName string
}

// AddGoalInput appends a savings goal to a profile.
type AddGoalInput struct {
	HouseholdID       string
	ProfileID         string
	Name              string
	TargetAmountCents int64
}

type service struct {
	repo  *Repository
	tx    txRunner
	retry db.RetryOptions
	now   func() time.Time
}

// NewService builds a profile service.
func NewService(repo *Repository, tx txRunner, retry db.RetryOptions) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, retry: retry, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateProfileInput) (*ProfileDTO, error) {
	householdID := strings.TrimSpace(input.HouseholdID)
	name := strings.TrimSpace(input.DisplayName)
	if householdID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "displayName is required")
	}
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}

	profile := CreateProfileDTO{HouseholdID: householdID, ID: id, DisplayName: name}.ToModel(s.now().UTC())
	if err := s.repo.Create(ctx, profile); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "profile already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
	}
	return FromModel(profile), nil
}

func (s *service) Get(ctx context.Context, householdID, profileID string) (*ProfileDTO, error) {
	profile, err := s.load(ctx, s.repo, householdID, profileID)
	if err != nil {
		return nil, err
	}
	return FromModel(profile), nil
}

func (s *service) List(ctx context.Context, householdID string) ([]ProfileDTO, error) {
	householdID = strings.TrimSpace(householdID)
	if householdID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId is required")
	}
	rows, err := s.repo.ListByHousehold(ctx, householdID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list profiles")
	}
	out := make([]ProfileDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) AddGoal(ctx context.Context, input AddGoalInput) (*ProfileDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "goal name is required")
	}
	if input.TargetAmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "targetAmountCents must be greater than zero")
	}

	var updated *models.Profile
	err := s.tx.WithRetryTx(ctx, s.retry, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		profile, err := s.load(ctx, repo, input.HouseholdID, input.ProfileID)
		if err != nil {
			return err
		}

		goals := append(profile.Goals.Clone(), types.Goal{
			ID:                uuid.NewString(),
			Name:              name,
			TargetAmountCents: input.TargetAmountCents,
		})
		at := s.now().UTC()
		if err := repo.UpdateGoals(ctx, profile.HouseholdID, profile.ID, profile.Version, goals, at); err != nil {
			return err
		}
		profile.Goals = goals
		profile.Version++
		profile.UpdatedAt = at
		updated = profile
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if errors.Is(err, db.ErrRetriesExhausted) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreConflict, err, "profile changed concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add goal")
	}
	return FromModel(updated), nil
}

func (s *service) load(ctx context.Context, repo *Repository, householdID, profileID string) (*models.Profile, error) {
	householdID = strings.TrimSpace(householdID)
	profileID = strings.TrimSpace(profileID)
	if householdID == "" || profileID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "householdId and profileId are required")
	}
	profile, err := repo.FindByID(ctx, householdID, profileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return profile, nil
}
