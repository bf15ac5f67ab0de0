package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RequestStatus 出入金请求状态
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "PENDING"
	RequestStatusApproved RequestStatus = "APPROVED"
	RequestStatusSettled  RequestStatus = "SETTLED"
	RequestStatusRejected RequestStatus = "REJECTED"
)

// CanApprove 是否允许审核通过
func (s RequestStatus) CanApprove() bool {
	return s == RequestStatusPending
}

// CanSettle 是否允许结算
func (s RequestStatus) CanSettle() bool {
	return s == RequestStatusPending || s == RequestStatusApproved
}

// CanReject 是否允许驳回
func (s RequestStatus) CanReject() bool {
	return s == RequestStatusPending || s == RequestStatusApproved
}

// DepositChannel 充值通道
type DepositChannel string

const (
	DepositChannelBank   DepositChannel = "BANK"
	DepositChannelCrypto DepositChannel = "CRYPTO"
)

// DepositRequest 充值请求
// 资金只在结算时入账；请求本身不改变余额。
type DepositRequest struct {
	gorm.Model
	RequestID string          `gorm:"column:request_id;type:varchar(36);uniqueIndex;not null" json:"request_id"`
	AccountID string          `gorm:"column:account_id;type:varchar(36);index;not null" json:"account_id"`
	Currency  Currency        `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Channel   DepositChannel  `gorm:"column:channel;type:varchar(16);not null" json:"channel"`
	Status    RequestStatus   `gorm:"column:status;type:varchar(16);index;not null" json:"status"`

	// 银行通道：转账回单号
	VoucherRef string `gorm:"column:voucher_ref;type:varchar(128)" json:"voucher_ref,omitempty"`
	// 加密通道：网络与链上交易哈希
	Network string `gorm:"column:network;type:varchar(32)" json:"network,omitempty"`
	TxID    string `gorm:"column:txid;type:varchar(255)" json:"txid,omitempty"`

	// 审核/结算操作员
	OperatorID *string `gorm:"column:operator_id;type:varchar(36)" json:"operator_id,omitempty"`
	// 驳回原因
	RejectReason string `gorm:"column:reject_reason;type:varchar(255)" json:"reject_reason,omitempty"`
	// 发行凭证 ID，结算后回填
	ReceiptID *string    `gorm:"column:receipt_id;type:varchar(36)" json:"receipt_id,omitempty"`
	SettledAt *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
}

// TableName 表名
func (DepositRequest) TableName() string {
	return "deposit_requests"
}

// NewDepositRequest 创建充值请求
func NewDepositRequest(accountID string, currency Currency, amount decimal.Decimal, channel DepositChannel) (*DepositRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	return &DepositRequest{
		RequestID: uuid.New().String(),
		AccountID: accountID,
		Currency:  currency,
		Amount:    Quantize(amount),
		Channel:   channel,
		Status:    RequestStatusPending,
	}, nil
}

// WithdrawalRequest 提现请求
// 创建时即从余额扣减预留（记 ReservationCode 流水）；
// 结算只发凭证，驳回通过调整流水回补余额。
type WithdrawalRequest struct {
	gorm.Model
	RequestID string          `gorm:"column:request_id;type:varchar(36);uniqueIndex;not null" json:"request_id"`
	AccountID string          `gorm:"column:account_id;type:varchar(36);index;not null" json:"account_id"`
	Currency  Currency        `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Status    RequestStatus   `gorm:"column:status;type:varchar(16);index;not null" json:"status"`

	// 银行出金目标
	Alias    string `gorm:"column:alias;type:varchar(64)" json:"alias,omitempty"`
	CBU      string `gorm:"column:cbu;type:varchar(32)" json:"cbu,omitempty"`
	BankName string `gorm:"column:bank_name;type:varchar(64)" json:"bank_name,omitempty"`
	// 链上出金目标
	WalletAddress string `gorm:"column:wallet_address;type:varchar(255)" json:"wallet_address,omitempty"`
	Network       string `gorm:"column:network;type:varchar(32)" json:"network,omitempty"`
	TxID          string `gorm:"column:txid;type:varchar(255)" json:"txid,omitempty"`

	// 创建时扣减预留产生的流水码
	ReservationCode string  `gorm:"column:reservation_code;type:varchar(36);not null" json:"reservation_code"`
	OperatorID      *string `gorm:"column:operator_id;type:varchar(36)" json:"operator_id,omitempty"`
	RejectReason    string  `gorm:"column:reject_reason;type:varchar(255)" json:"reject_reason,omitempty"`
	ReceiptID       *string `gorm:"column:receipt_id;type:varchar(36)" json:"receipt_id,omitempty"`
	SettledAt       *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
}

// TableName 表名
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

// NewWithdrawalRequest 创建提现请求（不含预留扣减，扣减由应用层在事务内完成）
func NewWithdrawalRequest(accountID string, currency Currency, amount decimal.Decimal) (*WithdrawalRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	return &WithdrawalRequest{
		RequestID: uuid.New().String(),
		AccountID: accountID,
		Currency:  currency,
		Amount:    Quantize(amount),
		Status:    RequestStatusPending,
	}, nil
}
