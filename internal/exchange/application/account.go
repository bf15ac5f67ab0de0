package application

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// AccountService 账户服务
type AccountService struct {
	store    domain.Store
	accounts domain.AccountRepository
	logger   *slog.Logger
}

// NewAccountService 创建账户服务
func NewAccountService(store domain.Store, accounts domain.AccountRepository, logger *slog.Logger) *AccountService {
	return &AccountService{store: store, accounts: accounts, logger: logger}
}

// CreateAccount 为用户开立账户，所有币种余额为零
func (s *AccountService) CreateAccount(ctx context.Context, userID string) (*domain.Account, error) {
	account := domain.NewAccount(uuid.New().String(), userID)
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		return s.accounts.Create(txCtx, account)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "account created", "account_id", account.AccountID, "user_id", userID)
	return account, nil
}

// GetAccount 按账户 ID 查询
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.GetByAccountID(ctx, accountID)
}

// GetAccountByUser 按用户 ID 查询
func (s *AccountService) GetAccountByUser(ctx context.Context, userID string) (*domain.Account, error) {
	return s.accounts.GetByUserID(ctx, userID)
}
