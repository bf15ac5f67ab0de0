package mysql

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/db"
)

// accountRepository 是 domain.AccountRepository 的 GORM 实现
type accountRepository struct {
	db *db.DB
}

// NewAccountRepository 创建账户仓储
func NewAccountRepository(d *db.DB) domain.AccountRepository {
	return &accountRepository{db: d}
}

// Create 写入账户及零余额行
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	s := session(ctx, r.db)
	if err := s.Create(account).Error; err != nil {
		return translateErr(err, domain.ErrAccountNotFound)
	}
	for currency, amount := range account.Balances {
		row := &domain.AccountBalance{
			AccountID: account.AccountID,
			Currency:  currency,
			Amount:    amount,
		}
		if err := s.Create(row).Error; err != nil {
			return translateErr(err, domain.ErrAccountNotFound)
		}
	}
	return nil
}

// GetByAccountID 只读装载账户与余额
func (r *accountRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.load(ctx, "account_id = ?", accountID, false)
}

// GetByUserID 只读装载账户与余额
func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	return r.load(ctx, "user_id = ?", userID, false)
}

// GetForUpdate 加排他锁装载账户与余额，锁持有到事务结束
func (r *accountRepository) GetForUpdate(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.load(ctx, "account_id = ?", accountID, true)
}

func (r *accountRepository) load(ctx context.Context, query string, arg string, forUpdate bool) (*domain.Account, error) {
	s := session(ctx, r.db)
	if forUpdate {
		s = s.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var account domain.Account
	if err := s.Where(query, arg).First(&account).Error; err != nil {
		return nil, translateErr(err, domain.ErrAccountNotFound)
	}

	var rows []domain.AccountBalance
	if err := s.Where("account_id = ?", account.AccountID).Find(&rows).Error; err != nil {
		return nil, translateErr(err, domain.ErrAccountNotFound)
	}
	account.Balances = make(map[domain.Currency]decimal.Decimal, len(rows))
	for _, row := range rows {
		account.Balances[row.Currency] = row.Amount
	}
	return &account, nil
}

// SaveBalances 写回余额行
func (r *accountRepository) SaveBalances(ctx context.Context, account *domain.Account) error {
	s := session(ctx, r.db)
	for currency, amount := range account.Balances {
		err := s.Model(&domain.AccountBalance{}).
			Where("account_id = ? AND currency = ?", account.AccountID, currency).
			Update("amount", amount).Error
		if err != nil {
			return translateErr(err, domain.ErrAccountNotFound)
		}
	}
	return nil
}
