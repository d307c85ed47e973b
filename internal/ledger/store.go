package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
	"github.com/angelmondragon/chorepay-backend/pkg/pagination"
	"github.com/angelmondragon/chorepay-backend/pkg/types"
)

// Repository is the only code path allowed to write profile balances or
// ledger_transactions rows. Finders return nil, nil when the row is absent.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProfile(ctx context.Context, householdID, profileID string) (*models.Profile, error)
	FindTask(ctx context.Context, householdID, profileID, taskID string) (*models.Task, error)
	FindTransaction(ctx context.Context, householdID, transactionID string) (*models.LedgerTransaction, error)
	ListTransactions(ctx context.Context, householdID, profileID string, limit int, cursor *pagination.Cursor) ([]models.LedgerTransaction, error)

	UpdateBalance(ctx context.Context, householdID, profileID string, expectedVersion, balanceCents int64, goals types.GoalList, at time.Time) error
	InsertTransaction(ctx context.Context, entry *models.LedgerTransaction) error
	MarkTaskPaid(ctx context.Context, householdID, taskID string, paidAt time.Time) error
	SettleTransaction(ctx context.Context, householdID string, settlement Settlement) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProfile(ctx context.Context, householdID, profileID string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND id = ?", householdID, profileID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// FindTask looks the task up scoped to the assignee first and then across
// the household.
func (r *repository) FindTask(ctx context.Context, householdID, profileID, taskID string) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND id = ? AND assignee_id = ?", householdID, taskID, profileID).
		First(&task).Error
	if err == nil {
		return &task, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// TODO(ledger): drop the household-wide fallback once legacy tasks without an assignee are backfilled.
	err = r.db.WithContext(ctx).
		Where("household_id = ? AND id = ?", householdID, taskID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repository) FindTransaction(ctx context.Context, householdID, transactionID string) (*models.LedgerTransaction, error) {
	var entry models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("household_id = ? AND id = ?", householdID, transactionID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListTransactions(ctx context.Context, householdID, profileID string, limit int, cursor *pagination.Cursor) ([]models.LedgerTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("household_id = ? AND profile_id = ?", householdID, profileID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.LedgerTransaction
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateBalance is a compare-and-swap on the profile version.
func (r *repository) UpdateBalance(ctx context.Context, householdID, profileID string, expectedVersion, balanceCents int64, goals types.GoalList, at time.Time) error {
	updates := map[string]any{
		"balance_cents": balanceCents,
		"balance":       dollars(balanceCents),
		"version":       gorm.Expr("version + 1"),
		"updated_at":    at,
	}
	if goals != nil {
		updates["goals"] = goals
	}

	res := r.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("household_id = ? AND id = ? AND version = ?", householdID, profileID, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrTxConflict
	}
	return nil
}

func (r *repository) InsertTransaction(ctx context.Context, entry *models.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) MarkTaskPaid(ctx context.Context, householdID, taskID string, paidAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("household_id = ? AND id = ? AND status <> ?", householdID, taskID, enums.TaskStatusPaid).
		Updates(map[string]any{
			"status":     enums.TaskStatusPaid,
			"paid_at":    paidAt,
			"updated_at": paidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrTxConflict
	}
	return nil
}

func (r *repository) SettleTransaction(ctx context.Context, householdID string, settlement Settlement) error {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerTransaction{}).
		Where("household_id = ? AND id = ? AND status = ?", householdID, settlement.TransactionID, enums.TransactionStatusPending).
		Updates(map[string]any{
			"status":              settlement.Status,
			"balance_after_cents": settlement.BalanceAfterCents,
			"balance_after":       dollars(settlement.BalanceAfterCents),
			"updated_at":          settlement.At,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return db.ErrTxConflict
	}
	return nil
}
