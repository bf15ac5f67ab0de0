package domain

import (
	"context"
	"time"
)

// Store 事务边界
// fn 内通过 txCtx 取得的仓库操作在同一事务中执行，fn 返回错误则整体回滚。
type Store interface {
	Transaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// AccountRepository 账户仓库
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByAccountID(ctx context.Context, accountID string) (*Account, error)
	GetByUserID(ctx context.Context, userID string) (*Account, error)
	// GetForUpdate 加排他锁读取账户及其余额行，锁持有到事务结束。
	// 获取锁超时返回 ErrLockTimeout。
	GetForUpdate(ctx context.Context, accountID string) (*Account, error)
	// SaveBalances 写回余额行，仅在持锁事务内调用。
	SaveBalances(ctx context.Context, account *Account) error
}

// MovementFilter 流水查询条件
type MovementFilter struct {
	Kind     MovementKind
	Currency Currency
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// MovementRepository 流水仓库，只追加
type MovementRepository interface {
	Append(ctx context.Context, movement *Movement) error
	ListByAccount(ctx context.Context, accountID string, filter MovementFilter) ([]*Movement, error)
	GetByCode(ctx context.Context, code string) (*Movement, error)
}

// QuoteRepository 汇率仓库
type QuoteRepository interface {
	// Latest 返回币种最新一条报价，无报价返回 ErrQuoteUnavailable。
	Latest(ctx context.Context, currency Currency) (*Quote, error)
	Save(ctx context.Context, quote *Quote) error
}

// ReceiptRepository 凭证仓库
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *Receipt) error
	GetByReceiptID(ctx context.Context, receiptID string) (*Receipt, error)
	// GetBySerial 按凭证编号（BOL-...）查询，编号唯一
	GetBySerial(ctx context.Context, serial string) (*Receipt, error)
	GetByVerificationCode(ctx context.Context, code string) (*Receipt, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Receipt, error)
	// Annul 置作废标志，只置位不清除。
	Annul(ctx context.Context, receiptID string) error
}

// DepositRequestRepository 充值请求仓库
type DepositRequestRepository interface {
	Create(ctx context.Context, request *DepositRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*DepositRequest, error)
	Save(ctx context.Context, request *DepositRequest) error
	ListByStatus(ctx context.Context, status RequestStatus, limit, offset int) ([]*DepositRequest, error)
}

// WithdrawalRequestRepository 提现请求仓库
type WithdrawalRequestRepository interface {
	Create(ctx context.Context, request *WithdrawalRequest) error
	GetByRequestID(ctx context.Context, requestID string) (*WithdrawalRequest, error)
	Save(ctx context.Context, request *WithdrawalRequest) error
	ListByStatus(ctx context.Context, status RequestStatus, limit, offset int) ([]*WithdrawalRequest, error)
}

// RenderInput 文档渲染输入
// 只含快照与寻址信息，绝不含文档哈希。
type RenderInput struct {
	Serial           string
	Kind             ReceiptKind
	IssuedAt         time.Time
	Snapshot         *Snapshot
	VerificationCode string
	VerificationURL  string
}

// DocumentRenderer 凭证文档渲染器
type DocumentRenderer interface {
	// Render 渲染凭证文档字节，失败返回 ErrRenderFailure。
	Render(ctx context.Context, input *RenderInput) ([]byte, error)
}

// DocumentStore 凭证文档存储
type DocumentStore interface {
	// Write 原样保存渲染字节，返回存储路径。
	Write(ctx context.Context, serial string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// Notification 业务通知
type Notification struct {
	Event     string    `json:"event"`
	AccountID string    `json:"account_id"`
	ReceiptID string    `json:"receipt_id,omitempty"`
	Serial    string    `json:"serial,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier 通知发送，失败不影响主流程
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}
