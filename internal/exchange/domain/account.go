package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account 账户聚合根
// 每个用户一个账户，持有按币种划分的非负余额。
// 余额只能在持有账户排他锁的结算事务内修改，展示层只读。
type Account struct {
	gorm.Model
	// 账户 ID（业务主键），全局唯一
	AccountID string `gorm:"column:account_id;type:varchar(36);uniqueIndex;not null" json:"account_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(36);uniqueIndex;not null" json:"user_id"`
	// 按币种划分的余额，由仓储从 account_balances 行装载
	Balances map[Currency]decimal.Decimal `gorm:"-" json:"balances"`
}

// TableName 表名
func (Account) TableName() string {
	return "accounts"
}

// AccountBalance 账户单币种余额行
type AccountBalance struct {
	gorm.Model
	AccountID string          `gorm:"column:account_id;type:varchar(36);uniqueIndex:uk_account_currency;not null" json:"account_id"`
	Currency  Currency        `gorm:"column:currency;type:varchar(10);uniqueIndex:uk_account_currency;not null" json:"currency"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(20,2);default:0;not null" json:"amount"`
}

// TableName 表名
func (AccountBalance) TableName() string {
	return "account_balances"
}

// NewAccount 创建账户，所有支持币种的余额初始化为零
func NewAccount(accountID, userID string) *Account {
	balances := make(map[Currency]decimal.Decimal, len(SupportedCurrencies))
	for _, c := range SupportedCurrencies {
		balances[c] = decimal.Zero
	}
	return &Account{
		AccountID: accountID,
		UserID:    userID,
		Balances:  balances,
	}
}

// Balance 返回指定币种的余额，未知币种返回错误
func (a *Account) Balance(currency Currency) (decimal.Decimal, error) {
	amount, ok := a.Balances[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return amount, nil
}

// SetBalance 写入指定币种余额；负值被 ErrNegativeBalance 拒绝
func (a *Account) SetBalance(currency Currency, value decimal.Decimal) error {
	if _, ok := a.Balances[currency]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	if value.IsNegative() {
		return fmt.Errorf("%w: %s %s", ErrNegativeBalance, value, currency)
	}
	a.Balances[currency] = Quantize(value)
	return nil
}

// Credit 入账，返回变更前后的余额
func (a *Account) Credit(currency Currency, amount decimal.Decimal) (before, after decimal.Decimal, err error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	before, err = a.Balance(currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	after = Quantize(before.Add(amount))
	if err := a.SetBalance(currency, after); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return before, after, nil
}

// Debit 出账，余额不足返回 ErrInsufficientFunds，返回变更前后的余额
func (a *Account) Debit(currency Currency, amount decimal.Decimal) (before, after decimal.Decimal, err error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}
	before, err = a.Balance(currency)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if before.LessThan(amount) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s balance %s, requested %s", ErrInsufficientFunds, currency, before, amount)
	}
	after = Quantize(before.Sub(amount))
	if err := a.SetBalance(currency, after); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return before, after, nil
}
