package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Goal is a savings target owned by a profile. CurrentAmountCents only grows
// through ledger goal allocations.
type Goal struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TargetAmountCents  int64  `json:"targetAmountCents"`
	CurrentAmountCents int64  `json:"currentAmountCents"`
}

// GoalList is the ordered goals column of profiles, stored as JSON.
type GoalList []Goal

// Find returns the index of the goal with id, or -1.
func (g GoalList) Find(id string) int {
	for i := range g {
		if g[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a copy that can be mutated without touching g.
func (g GoalList) Clone() GoalList {
	if g == nil {
		return nil
	}
	out := make(GoalList, len(g))
	copy(out, g)
	return out
}

func (g GoalList) Value() (driver.Value, error) {
	if g == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]Goal(g))
	if err != nil {
		return nil, fmt.Errorf("goals: marshal: %w", err)
	}
	return string(raw), nil
}

func (g *GoalList) Scan(value interface{}) error {
	if value == nil {
		*g = GoalList{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("goals: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*g = GoalList{}
		return nil
	}

	var goals []Goal
	if err := json.Unmarshal(raw, &goals); err != nil {
		return fmt.Errorf("goals: unmarshal: %w", err)
	}
	*g = goals
	return nil
}
