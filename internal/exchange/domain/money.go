// 包 domain 兑换与结算服务的领域模型
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency 币种代码
type Currency string

const (
	CurrencyARS  Currency = "ARS"
	CurrencyUSD  Currency = "USD"
	CurrencyUSDT Currency = "USDT"
)

// SupportedCurrencies 当前支持的币种集合
var SupportedCurrencies = []Currency{CurrencyARS, CurrencyUSD, CurrencyUSDT}

// ParseCurrency 解析币种代码，未知代码返回错误而不是静默兜底
func ParseCurrency(code string) (Currency, error) {
	c := Currency(code)
	for _, s := range SupportedCurrencies {
		if c == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

// Quantize 将金额截断到 2 位小数（向零取整，绝不进位）。
// 所有余额写入和凭证快照中的金额都必须先经过该函数。
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(2)
}

// FeeFactor 根据基点手续费计算净额系数：1 - bps/10000
func FeeFactor(feeBps int64) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(decimal.NewFromInt(feeBps).Div(decimal.NewFromInt(10000)))
}
