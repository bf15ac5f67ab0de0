package domain

import "errors"

// 结算核心的错误分类。校验类错误（金额、余额、行情）在任何状态变更前返回，
// 不产生副作用；渲染与存储错误使整个结算事务回滚。
var (
	// ErrInvalidAmount 请求金额非正或无法解析
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidRequest 请求缺少必填字段或字段取值非法
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInsufficientFunds 余额不足
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrQuoteUnavailable 所需币种没有可用行情
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrNegativeBalance 存储层兜底：余额写入值为负。校验正确时不应出现
	ErrNegativeBalance = errors.New("negative balance")
	// ErrRenderFailure 凭证渲染失败，整个结算事务必须回滚
	ErrRenderFailure = errors.New("render failure")
	// ErrStorageFailure 持久化失败
	ErrStorageFailure = errors.New("storage failure")
	// ErrLockTimeout 账户排他锁获取超时，调用方可重试
	ErrLockTimeout = errors.New("lock timeout")
	// ErrUnknownCurrency 不支持的币种代码
	ErrUnknownCurrency = errors.New("unknown currency")
	// ErrMovementImbalance 流水不满足 after = before + amount
	ErrMovementImbalance = errors.New("movement imbalance")
	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("account not found")
	// ErrReceiptNotFound 凭证不存在
	ErrReceiptNotFound = errors.New("receipt not found")
	// ErrRequestNotFound 充值/提现请求不存在
	ErrRequestNotFound = errors.New("request not found")
	// ErrInvalidTransition 请求状态机不允许该迁移
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden 仅凭证归属账户或操作员可访问
	ErrForbidden = errors.New("forbidden")
)

// Retryable 判断错误是否可由调用方重试
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}
