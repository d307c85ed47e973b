package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chorepay-backend/pkg/db/models"
	"github.com/angelmondragon/chorepay-backend/pkg/enums"
)

const defaultAuditLimit = 500

// AuditRepository serves read-only sweeps across every household.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// ListStalePendingWithdrawals returns withdrawal requests still PENDING that
// were created before cutoff, oldest first.
func (r *AuditRepository) ListStalePendingWithdrawals(ctx context.Context, cutoff time.Time, limit int) ([]models.LedgerTransaction, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	var rows []models.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ?", enums.TransactionTypeWithdrawalRequest, enums.TransactionStatusPending).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
