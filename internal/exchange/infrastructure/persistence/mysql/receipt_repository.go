package mysql

import (
	"context"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/db"
)

// receiptRepository 是 domain.ReceiptRepository 的 GORM 实现
type receiptRepository struct {
	db *db.DB
}

// NewReceiptRepository 创建凭证仓储
func NewReceiptRepository(d *db.DB) domain.ReceiptRepository {
	return &receiptRepository{db: d}
}

// Create 写入凭证
func (r *receiptRepository) Create(ctx context.Context, receipt *domain.Receipt) error {
	if err := session(ctx, r.db).Create(receipt).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}

// GetByReceiptID 按凭证 ID 查询
func (r *receiptRepository) GetByReceiptID(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	if err := session(ctx, r.db).Where("receipt_id = ?", receiptID).First(&receipt).Error; err != nil {
		return nil, translateErr(err, domain.ErrReceiptNotFound)
	}
	return &receipt, nil
}

// GetBySerial 按凭证编号查询
func (r *receiptRepository) GetBySerial(ctx context.Context, serial string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	if err := session(ctx, r.db).Where("serial = ?", serial).First(&receipt).Error; err != nil {
		return nil, translateErr(err, domain.ErrReceiptNotFound)
	}
	return &receipt, nil
}

// GetByVerificationCode 按短验证码查询
func (r *receiptRepository) GetByVerificationCode(ctx context.Context, code string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	if err := session(ctx, r.db).Where("verification_code = ?", code).First(&receipt).Error; err != nil {
		return nil, translateErr(err, domain.ErrReceiptNotFound)
	}
	return &receipt, nil
}

// ListByAccount 查询账户凭证，新凭证在前
func (r *receiptRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Receipt, error) {
	var receipts []*domain.Receipt
	err := session(ctx, r.db).
		Where("account_id = ?", accountID).
		Order("issued_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&receipts).Error
	if err != nil {
		return nil, translateErr(err, domain.ErrStorageFailure)
	}
	return receipts, nil
}

// Annul 置作废标志
func (r *receiptRepository) Annul(ctx context.Context, receiptID string) error {
	result := session(ctx, r.db).
		Model(&domain.Receipt{}).
		Where("receipt_id = ?", receiptID).
		Update("annulled", true)
	if result.Error != nil {
		return translateErr(result.Error, domain.ErrReceiptNotFound)
	}
	if result.RowsAffected == 0 {
		return domain.ErrReceiptNotFound
	}
	return nil
}
