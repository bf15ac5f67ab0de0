package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementKind 流水类型
type MovementKind string

const (
	MovementKindDeposit    MovementKind = "deposit"
	MovementKindWithdrawal MovementKind = "withdrawal"
	MovementKindTrade      MovementKind = "trade"
	MovementKindAdjustment MovementKind = "adjustment"
)

// Movement 余额流水
// 只追加的审计记录：一经创建永不更新或删除。
// 金额带符号：正数为入账，负数为出账。恒有 balance_after = balance_before + amount。
type Movement struct {
	gorm.Model
	// 流水码（业务主键），随机全局唯一，可对外暴露
	Code string `gorm:"column:code;type:varchar(36);uniqueIndex;not null" json:"code"`
	// 归属账户
	AccountID string `gorm:"column:account_id;type:varchar(36);index;not null" json:"account_id"`
	// 流水类型
	Kind MovementKind `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	// 币种
	Currency Currency `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	// 带符号金额
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	// 变更前余额
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:decimal(20,2);not null" json:"balance_before"`
	// 变更后余额
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:decimal(20,2);not null" json:"balance_after"`
	// 描述
	Description string `gorm:"column:description;type:varchar(512)" json:"description"`
	// 责任操作员，空表示系统自动发起
	OperatorID *string `gorm:"column:operator_id;type:varchar(36)" json:"operator_id"`
	// 审计时间戳
	OccurredAt time.Time `gorm:"column:occurred_at;not null" json:"occurred_at"`
}

// TableName 表名
func (Movement) TableName() string {
	return "movements"
}

// NewMovement 创建流水并校验余额一致性
func NewMovement(accountID string, kind MovementKind, currency Currency, amount, before, after decimal.Decimal, description string, operatorID *string) (*Movement, error) {
	if !before.Add(amount).Equal(after) {
		return nil, fmt.Errorf("%w: before %s + amount %s != after %s", ErrMovementImbalance, before, amount, after)
	}
	return &Movement{
		Code:          uuid.New().String(),
		AccountID:     accountID,
		Kind:          kind,
		Currency:      currency,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		OperatorID:    operatorID,
		OccurredAt:    time.Now(),
	}, nil
}
