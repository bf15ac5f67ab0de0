package mysql

import (
	"context"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/db"
)

// movementRepository 是 domain.MovementRepository 的 GORM 实现。
// 流水只插入，没有 update 或 delete 路径。
type movementRepository struct {
	db *db.DB
}

// NewMovementRepository 创建流水仓储
func NewMovementRepository(d *db.DB) domain.MovementRepository {
	return &movementRepository{db: d}
}

// Append 追加一条流水
func (r *movementRepository) Append(ctx context.Context, movement *domain.Movement) error {
	if err := session(ctx, r.db).Create(movement).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}

// ListByAccount 按条件查询账户流水，新流水在前
func (r *movementRepository) ListByAccount(ctx context.Context, accountID string, filter domain.MovementFilter) ([]*domain.Movement, error) {
	s := session(ctx, r.db).Where("account_id = ?", accountID)
	if filter.Kind != "" {
		s = s.Where("kind = ?", filter.Kind)
	}
	if filter.Currency != "" {
		s = s.Where("currency = ?", filter.Currency)
	}
	if filter.From != nil {
		s = s.Where("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		s = s.Where("occurred_at < ?", *filter.To)
	}

	var movements []*domain.Movement
	err := s.Order("occurred_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&movements).Error
	if err != nil {
		return nil, translateErr(err, domain.ErrStorageFailure)
	}
	return movements, nil
}

// GetByCode 按流水码查询
func (r *movementRepository) GetByCode(ctx context.Context, code string) (*domain.Movement, error) {
	var movement domain.Movement
	if err := session(ctx, r.db).Where("code = ?", code).First(&movement).Error; err != nil {
		return nil, translateErr(err, domain.ErrRequestNotFound)
	}
	return &movement, nil
}
