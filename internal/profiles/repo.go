package profiles

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

// Repository handles profile persistence. It never writes balance columns;
// those belong to the ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to profile operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create persists a new profile row.
func (r *Repository) Create(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile is required")
	}
	return r.db.WithContext(ctx).Create(profile).Error
}

// FindByID loads a profile scoped to its household.
func (r *Repository) FindByID(ctx context.Context, householdID, profileID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).
		Where("household_id = ? AND id = ?", householdID, profileID).
		First(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListByHousehold returns every profile in a household ordered by name.
func (r *Repository) ListByHousehold(ctx context.Context, householdID string) ([]models.Profile, error) {
	var rows []models.Profile
	if err := r.db.WithContext(ctx).
		Where("household_id = ?", householdID).
		Order("display_name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateGoals replaces the goal list when the profile is still at
// expectedVersion and bumps the version.
func (r *Repository) UpdateGoals(ctx context.Context, householdID, profileID string, expectedVersion int64, goals types.GoalList, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("household_id = ? AND id = ? AND version = ?", householdID, profileID, expectedVersion).
		Updates(map[string]any{
			"goals":      goals,
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrTxConflict
	}
	return nil
}
