package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quote 行情
// 外部供给的买入/卖出报价对，结算核心只读。
// 结算总是使用操作时刻最新的一条行情，不做时效性检查。
type Quote struct {
	gorm.Model
	// 币种（相对 ARS 计价）
	Currency Currency `gorm:"column:currency;type:varchar(10);index;not null" json:"currency"`
	// 买入价（平台买入该币种支付的 ARS）
	Buy decimal.Decimal `gorm:"column:buy;type:decimal(20,2);not null" json:"buy"`
	// 卖出价（平台卖出该币种收取的 ARS）
	Sell decimal.Decimal `gorm:"column:sell;type:decimal(20,2);not null" json:"sell"`
	// 报价时间
	AsOf time.Time `gorm:"column:as_of;index;not null" json:"as_of"`
}

// TableName 表名
func (Quote) TableName() string {
	return "quotes"
}
