package mysql

import (
	"context"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/db"
)

// quoteRepository 是 domain.QuoteRepository 的 GORM 实现
type quoteRepository struct {
	db *db.DB
}

// NewQuoteRepository 创建行情仓储
func NewQuoteRepository(d *db.DB) domain.QuoteRepository {
	return &quoteRepository{db: d}
}

// Latest 返回币种最新一条报价
func (r *quoteRepository) Latest(ctx context.Context, currency domain.Currency) (*domain.Quote, error) {
	var quote domain.Quote
	err := session(ctx, r.db).
		Where("currency = ?", currency).
		Order("as_of DESC, id DESC").
		First(&quote).Error
	if err != nil {
		return nil, translateErr(err, domain.ErrQuoteUnavailable)
	}
	return &quote, nil
}

// Save 追加一条新报价
func (r *quoteRepository) Save(ctx context.Context, quote *domain.Quote) error {
	if err := session(ctx, r.db).Create(quote).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}
