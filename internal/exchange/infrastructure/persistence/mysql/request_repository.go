package mysql

import (
	"context"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/db"
)

// depositRequestRepository 是 domain.DepositRequestRepository 的 GORM 实现
type depositRequestRepository struct {
	db *db.DB
}

// NewDepositRequestRepository 创建充值请求仓储
func NewDepositRequestRepository(d *db.DB) domain.DepositRequestRepository {
	return &depositRequestRepository{db: d}
}

func (r *depositRequestRepository) Create(ctx context.Context, request *domain.DepositRequest) error {
	if err := session(ctx, r.db).Create(request).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}

func (r *depositRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.DepositRequest, error) {
	var request domain.DepositRequest
	if err := session(ctx, r.db).Where("request_id = ?", requestID).First(&request).Error; err != nil {
		return nil, translateErr(err, domain.ErrRequestNotFound)
	}
	return &request, nil
}

func (r *depositRequestRepository) Save(ctx context.Context, request *domain.DepositRequest) error {
	if err := session(ctx, r.db).Save(request).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}

func (r *depositRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.DepositRequest, error) {
	var requests []*domain.DepositRequest
	err := session(ctx, r.db).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, translateErr(err, domain.ErrStorageFailure)
	}
	return requests, nil
}

// withdrawalRequestRepository 是 domain.WithdrawalRequestRepository 的 GORM 实现
type withdrawalRequestRepository struct {
	db *db.DB
}

// NewWithdrawalRequestRepository 创建提现请求仓储
func NewWithdrawalRequestRepository(d *db.DB) domain.WithdrawalRequestRepository {
	return &withdrawalRequestRepository{db: d}
}

func (r *withdrawalRequestRepository) Create(ctx context.Context, request *domain.WithdrawalRequest) error {
	if err := session(ctx, r.db).Create(request).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}

func (r *withdrawalRequestRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.WithdrawalRequest, error) {
	var request domain.WithdrawalRequest
	if err := session(ctx, r.db).Where("request_id = ?", requestID).First(&request).Error; err != nil {
		return nil, translateErr(err, domain.ErrRequestNotFound)
	}
	return &request, nil
}

func (r *withdrawalRequestRepository) Save(ctx context.Context, request *domain.WithdrawalRequest) error {
	if err := session(ctx, r.db).Save(request).Error; err != nil {
		return translateErr(err, domain.ErrStorageFailure)
	}
	return nil
}

func (r *withdrawalRequestRepository) ListByStatus(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.WithdrawalRequest, error) {
	var requests []*domain.WithdrawalRequest
	err := session(ctx, r.db).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	if err != nil {
		return nil, translateErr(err, domain.ErrStorageFailure)
	}
	return requests, nil
}
