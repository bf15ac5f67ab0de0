package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReceiptKind 凭证操作类型
type ReceiptKind string

const (
	ReceiptKindDepositARS     ReceiptKind = "deposit_ars"
	ReceiptKindDepositUSD     ReceiptKind = "deposit_usd"
	ReceiptKindDepositUSDT    ReceiptKind = "deposit_usdt"
	ReceiptKindWithdrawalARS  ReceiptKind = "withdrawal_ars"
	ReceiptKindWithdrawalUSD  ReceiptKind = "withdrawal_usd"
	ReceiptKindWithdrawalUSDT ReceiptKind = "withdrawal_usdt"
	ReceiptKindPurchaseUSD    ReceiptKind = "purchase_usd"
	ReceiptKindPurchaseUSDT   ReceiptKind = "purchase_usdt"
	ReceiptKindSaleUSDARS     ReceiptKind = "sale_usd_ars"
	ReceiptKindSaleUSDTARS    ReceiptKind = "sale_usdt_ars"
	ReceiptKindSwapUSDUSDT    ReceiptKind = "swap_usd_usdt"
	ReceiptKindSwapUSDTUSD    ReceiptKind = "swap_usdt_usd"
)

// DepositReceiptKind 返回币种对应的充值凭证类型
func DepositReceiptKind(c Currency) ReceiptKind {
	return ReceiptKind("deposit_" + strings.ToLower(string(c)))
}

// WithdrawalReceiptKind 返回币种对应的提现凭证类型
func WithdrawalReceiptKind(c Currency) ReceiptKind {
	return ReceiptKind("withdrawal_" + strings.ToLower(string(c)))
}

// PurchaseReceiptKind 返回目标币种对应的购汇凭证类型
func PurchaseReceiptKind(target Currency) ReceiptKind {
	return ReceiptKind("purchase_" + strings.ToLower(string(target)))
}

// SaleReceiptKind 返回源币种对应的结汇凭证类型
func SaleReceiptKind(source Currency) ReceiptKind {
	return ReceiptKind("sale_" + strings.ToLower(string(source)) + "_ars")
}

// SwapReceiptKind 返回 swap 凭证类型
func SwapReceiptKind(source, target Currency) ReceiptKind {
	return ReceiptKind("swap_" + strings.ToLower(string(source)) + "_" + strings.ToLower(string(target)))
}

// Snapshot 凭证冻结快照：渲染时打印的全部字段。
// 金额一律为已格式化的字符串，入库后不再变动。
type Snapshot struct {
	// 标题
	Title string `json:"title"`
	// 状态文案
	State string `json:"state"`
	// 借记金额
	DebitedAmount string `json:"debited_amount"`
	// 手续费合计，空表示无手续费行
	FeeAmount string `json:"fee_amount,omitempty"`
	// 源金额
	SourceAmount string `json:"source_amount"`
	// 汇率/通道说明
	Rate string `json:"rate"`
	// 目标金额
	DestinationAmount string `json:"destination_amount"`
	// 客户信息块
	Client ClientBlock `json:"client"`
	// 运营主体信息块
	Company CompanyBlock `json:"company"`
	// 链上信息块（仅加密货币出入金）
	OnChain *OnChainBlock `json:"onchain,omitempty"`
}

// ClientBlock 凭证上打印的客户信息
type ClientBlock struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	Address  string `json:"address"`
}

// CompanyBlock 凭证上打印的运营主体信息
type CompanyBlock struct {
	Name           string `json:"name"`
	TaxID          string `json:"tax_id"`
	Address        string `json:"address"`
	Contact        string `json:"contact"`
	RegulatoryNote string `json:"regulatory_note"`
}

// OnChainBlock 链上交易信息
type OnChainBlock struct {
	Network            string `json:"network"`
	SourceAddress      string `json:"source_address"`
	DestinationAddress string `json:"destination_address"`
	TxID               string `json:"txid"`
	Timestamp          string `json:"timestamp"`
}

// Receipt 操作凭证
// 每个已结算操作发行一张；除作废标志外不可变。
// DocumentSHA256 恒等于持久化文档字节的 SHA-256：哈希在最终渲染之后计算，
// 且绝不出现在渲染输入里（避免自引用）。
type Receipt struct {
	gorm.Model
	// 凭证 ID（业务主键），随机全局唯一
	ReceiptID string `gorm:"column:receipt_id;type:varchar(36);uniqueIndex;not null" json:"receipt_id"`
	// 人类可读编号，如 BOL-20260828-3FA9C2D1
	Serial string `gorm:"column:serial;type:varchar(40);uniqueIndex;not null" json:"serial"`
	// 归属账户
	AccountID string `gorm:"column:account_id;type:varchar(36);index;not null" json:"account_id"`
	// 操作类型
	Kind ReceiptKind `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	// 关联流水码，可空
	MovementCode *string `gorm:"column:movement_code;type:varchar(36)" json:"movement_code"`
	// 冻结快照（JSON）
	SnapshotJSON string `gorm:"column:snapshot;type:json;not null" json:"snapshot"`
	// 渲染文档存储路径
	DocumentPath string `gorm:"column:document_path;type:varchar(255);not null" json:"document_path"`
	// 渲染文档的 SHA-256（大写十六进制）
	DocumentSHA256 string `gorm:"column:document_sha256;type:char(64);not null" json:"document_sha256"`
	// 短验证码，唯一，可人工输入
	VerificationCode string `gorm:"column:verification_code;type:varchar(64);uniqueIndex;not null" json:"verification_code"`
	// 发行时间
	IssuedAt time.Time `gorm:"column:issued_at;index;not null" json:"issued_at"`
	// 是否作废
	Annulled bool `gorm:"column:annulled;default:false;not null" json:"annulled"`

	// 链上信息冗余列（避免查询时解析 JSON）
	Network            string `gorm:"column:network;type:varchar(32)" json:"network,omitempty"`
	SourceAddress      string `gorm:"column:source_address;type:varchar(255)" json:"source_address,omitempty"`
	DestinationAddress string `gorm:"column:destination_address;type:varchar(255)" json:"destination_address,omitempty"`
	TxID               string `gorm:"column:txid;type:varchar(255)" json:"txid,omitempty"`
}

// TableName 表名
func (Receipt) TableName() string {
	return "receipts"
}

// NewReceiptSerial 生成凭证编号：日期 + 8 位随机十六进制后缀
func NewReceiptSerial(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("BOL-%s-%s", now.Format("20060102"), suffix)
}

// NewVerificationCode 生成短验证码：8 位大写十六进制，便于打印和人工录入
func NewVerificationCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
