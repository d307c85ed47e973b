package profiles

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

// ProfileDTO exposes a child profile in API responses.
type ProfileDTO struct {
	HouseholdID  string       `json:"householdId"`
	ID           string       `json:"id"`
	DisplayName  string       `json:"displayName"`
	BalanceCents int64        `json:"balanceCents"`
	Balance      string       `json:"balance"`
	Goals        []types.Goal `json:"goals"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// CreateProfileDTO holds creation-time data for a new profile.
type CreateProfileDTO struct {
	HouseholdID string
	ID          string
	DisplayName string
}

// ToModel builds a profile with a zero balance and no goals.
func (d CreateProfileDTO) ToModel(now time.Time) *models.Profile {
	zero := int64(0)
	dollars := decimal.Zero
	return &models.Profile{
		HouseholdID:  d.HouseholdID,
		ID:           d.ID,
		DisplayName:  d.DisplayName,
		BalanceCents: &zero,
		Balance:      &dollars,
		Goals:        types.GoalList{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// FromModel maps the persisted profile into a DTO.
func FromModel(m *models.Profile) *ProfileDTO {
	if m == nil {
		return nil
	}

	var cents int64
	switch {
	case m.BalanceCents != nil:
		cents = *m.BalanceCents
	case m.Balance != nil:
		cents = m.Balance.Shift(2).Round(0).IntPart()
	}

	goals := []types.Goal(m.Goals.Clone())
	if goals == nil {
		goals = []types.Goal{}
	}

	return &ProfileDTO{
		HouseholdID:  m.HouseholdID,
		ID:           m.ID,
		DisplayName:  m.DisplayName,
		BalanceCents: cents,
		Balance:      decimal.New(cents, -2).StringFixed(2),
		Goals:        goals,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
