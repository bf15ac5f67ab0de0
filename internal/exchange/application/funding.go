package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/metrics"
	"github.com/cambiosur/exchange/pkg/utils"
)

// FundingService 出入金服务
// 充值在结算时入账；提现在创建时扣减预留，驳回时调整回补。
type FundingService struct {
	store       domain.Store
	accounts    domain.AccountRepository
	movements   domain.MovementRepository
	deposits    domain.DepositRequestRepository
	withdrawals domain.WithdrawalRequestRepository
	issuer      *ReceiptIssuer
	notifier    domain.Notifier
	settings    Settings
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewFundingService 创建出入金服务
func NewFundingService(
	store domain.Store,
	accounts domain.AccountRepository,
	movements domain.MovementRepository,
	deposits domain.DepositRequestRepository,
	withdrawals domain.WithdrawalRequestRepository,
	issuer *ReceiptIssuer,
	notifier domain.Notifier,
	settings Settings,
	m *metrics.Metrics,
	logger *slog.Logger,
) *FundingService {
	return &FundingService{
		store:       store,
		accounts:    accounts,
		movements:   movements,
		deposits:    deposits,
		withdrawals: withdrawals,
		issuer:      issuer,
		notifier:    notifier,
		settings:    settings,
		metrics:     m,
		logger:      logger,
	}
}

// CreateDepositCommand 创建充值请求命令
type CreateDepositCommand struct {
	AccountID string
	Currency  domain.Currency
	Amount    decimal.Decimal
	Channel   domain.DepositChannel
	// 银行通道
	VoucherRef string
	// 加密通道
	Network string
	TxID    string
}

// CreateDeposit 创建充值请求。余额不变，待运营结算后入账。
func (s *FundingService) CreateDeposit(ctx context.Context, cmd CreateDepositCommand) (*domain.DepositRequest, error) {
	if _, err := s.accounts.GetByAccountID(ctx, cmd.AccountID); err != nil {
		return nil, err
	}
	switch cmd.Channel {
	case domain.DepositChannelBank:
		if cmd.VoucherRef == "" {
			return nil, fmt.Errorf("%w: bank deposit requires voucher_ref", domain.ErrInvalidRequest)
		}
	case domain.DepositChannelCrypto:
		if cmd.Network == "" || cmd.TxID == "" {
			return nil, fmt.Errorf("%w: crypto deposit requires network and txid", domain.ErrInvalidRequest)
		}
	default:
		return nil, fmt.Errorf("%w: unknown deposit channel %q", domain.ErrInvalidRequest, cmd.Channel)
	}

	request, err := domain.NewDepositRequest(cmd.AccountID, cmd.Currency, cmd.Amount, cmd.Channel)
	if err != nil {
		return nil, err
	}
	request.VoucherRef = cmd.VoucherRef
	request.Network = cmd.Network
	request.TxID = cmd.TxID

	if err := s.deposits.Create(ctx, request); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
	s.logger.InfoContext(ctx, "deposit request created",
		"request_id", request.RequestID, "account_id", cmd.AccountID, "currency", cmd.Currency, "amount", request.Amount)
	return request, nil
}

// ApproveDeposit 运营审核通过充值请求
func (s *FundingService) ApproveDeposit(ctx context.Context, requestID, operatorID string) (*domain.DepositRequest, error) {
	var request *domain.DepositRequest
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.deposits.GetByRequestID(txCtx, requestID)
		if err != nil {
			return err
		}
		if !request.Status.CanApprove() {
			return fmt.Errorf("%w: deposit %s is %s", domain.ErrInvalidTransition, requestID, request.Status)
		}
		request.Status = domain.RequestStatusApproved
		request.OperatorID = &operatorID
		return s.deposits.Save(txCtx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// SettleDepositCommand 结算充值命令
type SettleDepositCommand struct {
	RequestID  string
	OperatorID string
	// 加密通道入账地址（平台侧）
	DestinationAddress string
	// 客户打印信息
	ClientName string
	ClientDoc  string
	ClientAddr string
}

// SettleDeposit 结算充值：入账、落流水、发凭证，单事务完成
func (s *FundingService) SettleDeposit(ctx context.Context, cmd SettleDepositCommand) (*SettlementResult, error) {
	var result *SettlementResult
	err := s.inTx(ctx, func(txCtx context.Context) error {
		request, err := s.deposits.GetByRequestID(txCtx, cmd.RequestID)
		if err != nil {
			return err
		}
		if !request.Status.CanSettle() {
			return fmt.Errorf("%w: deposit %s is %s", domain.ErrInvalidTransition, cmd.RequestID, request.Status)
		}
		account, err := s.accounts.GetForUpdate(txCtx, request.AccountID)
		if err != nil {
			return err
		}

		before, after, err := account.Credit(request.Currency, request.Amount)
		if err != nil {
			return err
		}
		movement, err := domain.NewMovement(account.AccountID, domain.MovementKindDeposit, request.Currency,
			request.Amount, before, after,
			fmt.Sprintf("deposit via %s, request %s", request.Channel, request.RequestID), &cmd.OperatorID)
		if err != nil {
			return err
		}
		if err := s.movements.Append(txCtx, movement); err != nil {
			return err
		}
		if err := s.accounts.SaveBalances(txCtx, account); err != nil {
			return err
		}

		snapshot := &domain.Snapshot{
			Title:             fmt.Sprintf("DEPÓSITO DE %s", request.Currency),
			State:             "ACREDITADO",
			SourceAmount:      formatAmount(request.Amount, request.Currency),
			Rate:              depositChannelLabel(request),
			DestinationAmount: formatAmount(request.Amount, request.Currency),
			Client:            domain.ClientBlock{Name: cmd.ClientName, Document: cmd.ClientDoc, Address: cmd.ClientAddr},
			Company:           s.settings.Company,
		}
		issue := &IssueCommand{
			AccountID:    request.AccountID,
			Kind:         domain.DepositReceiptKind(request.Currency),
			MovementCode: &movement.Code,
			Snapshot:     snapshot,
		}
		if request.Channel == domain.DepositChannelCrypto {
			snapshot.OnChain = &domain.OnChainBlock{
				Network:            request.Network,
				DestinationAddress: cmd.DestinationAddress,
				TxID:               request.TxID,
				Timestamp:          time.Now().Format(time.RFC3339),
			}
			issue.Network = request.Network
			issue.DestinationAddress = cmd.DestinationAddress
			issue.TxID = request.TxID
		}
		receipt, err := s.issuer.Issue(txCtx, issue)
		if err != nil {
			return err
		}

		now := time.Now()
		request.Status = domain.RequestStatusSettled
		request.OperatorID = &cmd.OperatorID
		request.ReceiptID = &receipt.ReceiptID
		request.SettledAt = &now
		if err := s.deposits.Save(txCtx, request); err != nil {
			return err
		}

		result = &SettlementResult{Receipt: receipt, Credited: request.Amount}
		return nil
	})
	s.observe(ctx, "deposit", err)
	if err != nil {
		return nil, err
	}
	s.notifyReceipt(ctx, "deposit.settled", result)
	return result, nil
}

// RejectDeposit 驳回充值请求，余额不变
func (s *FundingService) RejectDeposit(ctx context.Context, requestID, operatorID, reason string) (*domain.DepositRequest, error) {
	var request *domain.DepositRequest
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.deposits.GetByRequestID(txCtx, requestID)
		if err != nil {
			return err
		}
		if !request.Status.CanReject() {
			return fmt.Errorf("%w: deposit %s is %s", domain.ErrInvalidTransition, requestID, request.Status)
		}
		request.Status = domain.RequestStatusRejected
		request.OperatorID = &operatorID
		request.RejectReason = reason
		return s.deposits.Save(txCtx, request)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "deposit request rejected", "request_id", requestID, "reason", reason)
	return request, nil
}

// CreateWithdrawalCommand 创建提现请求命令
type CreateWithdrawalCommand struct {
	AccountID string
	Currency  domain.Currency
	Amount    decimal.Decimal
	// 银行出金目标
	Alias    string
	CBU      string
	BankName string
	// 链上出金目标
	WalletAddress string
	Network       string
}

// CreateWithdrawal 创建提现请求并立即扣减预留。
// 余额不足时请求不创建，无任何副作用。
func (s *FundingService) CreateWithdrawal(ctx context.Context, cmd CreateWithdrawalCommand) (*domain.WithdrawalRequest, error) {
	if cmd.Currency == domain.CurrencyARS {
		if cmd.Alias == "" && cmd.CBU == "" {
			return nil, fmt.Errorf("%w: ars withdrawal requires alias or cbu", domain.ErrInvalidRequest)
		}
	} else if cmd.WalletAddress == "" || cmd.Network == "" {
		return nil, fmt.Errorf("%w: crypto withdrawal requires wallet_address and network", domain.ErrInvalidRequest)
	}

	request, err := domain.NewWithdrawalRequest(cmd.AccountID, cmd.Currency, cmd.Amount)
	if err != nil {
		return nil, err
	}
	request.Alias = cmd.Alias
	request.CBU = cmd.CBU
	request.BankName = cmd.BankName
	request.WalletAddress = cmd.WalletAddress
	request.Network = cmd.Network

	err = s.inTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.GetForUpdate(txCtx, cmd.AccountID)
		if err != nil {
			return err
		}
		before, after, err := account.Debit(request.Currency, request.Amount)
		if err != nil {
			return err
		}
		movement, err := domain.NewMovement(account.AccountID, domain.MovementKindWithdrawal, request.Currency,
			request.Amount.Neg(), before, after,
			fmt.Sprintf("withdrawal reservation, request %s", request.RequestID), nil)
		if err != nil {
			return err
		}
		if err := s.movements.Append(txCtx, movement); err != nil {
			return err
		}
		request.ReservationCode = movement.Code
		if err := s.withdrawals.Create(txCtx, request); err != nil {
			return err
		}
		return s.accounts.SaveBalances(txCtx, account)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "withdrawal request created",
		"request_id", request.RequestID, "account_id", cmd.AccountID, "currency", cmd.Currency, "amount", request.Amount)
	return request, nil
}

// ApproveWithdrawal 运营审核通过提现请求
func (s *FundingService) ApproveWithdrawal(ctx context.Context, requestID, operatorID string) (*domain.WithdrawalRequest, error) {
	var request *domain.WithdrawalRequest
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.withdrawals.GetByRequestID(txCtx, requestID)
		if err != nil {
			return err
		}
		if !request.Status.CanApprove() {
			return fmt.Errorf("%w: withdrawal %s is %s", domain.ErrInvalidTransition, requestID, request.Status)
		}
		request.Status = domain.RequestStatusApproved
		request.OperatorID = &operatorID
		return s.withdrawals.Save(txCtx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// SettleWithdrawalCommand 结算提现命令
type SettleWithdrawalCommand struct {
	RequestID  string
	OperatorID string
	// 链上出金的交易哈希与平台出金地址
	TxID          string
	SourceAddress string
	// 客户打印信息
	ClientName string
	ClientDoc  string
	ClientAddr string
}

// SettleWithdrawal 结算提现：资金已在创建时扣减，这里只发凭证并关闭请求
func (s *FundingService) SettleWithdrawal(ctx context.Context, cmd SettleWithdrawalCommand) (*SettlementResult, error) {
	var result *SettlementResult
	err := s.inTx(ctx, func(txCtx context.Context) error {
		request, err := s.withdrawals.GetByRequestID(txCtx, cmd.RequestID)
		if err != nil {
			return err
		}
		if !request.Status.CanSettle() {
			return fmt.Errorf("%w: withdrawal %s is %s", domain.ErrInvalidTransition, cmd.RequestID, request.Status)
		}

		snapshot := &domain.Snapshot{
			Title:             fmt.Sprintf("RETIRO DE %s", request.Currency),
			State:             "ENVIADO",
			DebitedAmount:     formatAmount(request.Amount, request.Currency),
			SourceAmount:      formatAmount(request.Amount, request.Currency),
			Rate:              withdrawalTargetLabel(request),
			DestinationAmount: formatAmount(request.Amount, request.Currency),
			Client:            domain.ClientBlock{Name: cmd.ClientName, Document: cmd.ClientDoc, Address: cmd.ClientAddr},
			Company:           s.settings.Company,
		}
		issue := &IssueCommand{
			AccountID:    request.AccountID,
			Kind:         domain.WithdrawalReceiptKind(request.Currency),
			MovementCode: &request.ReservationCode,
			Snapshot:     snapshot,
		}
		if request.WalletAddress != "" {
			snapshot.OnChain = &domain.OnChainBlock{
				Network:            request.Network,
				SourceAddress:      cmd.SourceAddress,
				DestinationAddress: request.WalletAddress,
				TxID:               cmd.TxID,
				Timestamp:          time.Now().Format(time.RFC3339),
			}
			issue.Network = request.Network
			issue.SourceAddress = cmd.SourceAddress
			issue.DestinationAddress = request.WalletAddress
			issue.TxID = cmd.TxID
		}
		receipt, err := s.issuer.Issue(txCtx, issue)
		if err != nil {
			return err
		}

		now := time.Now()
		request.Status = domain.RequestStatusSettled
		request.OperatorID = &cmd.OperatorID
		request.TxID = cmd.TxID
		request.ReceiptID = &receipt.ReceiptID
		request.SettledAt = &now
		if err := s.withdrawals.Save(txCtx, request); err != nil {
			return err
		}

		result = &SettlementResult{Receipt: receipt, Debited: request.Amount}
		return nil
	})
	s.observe(ctx, "withdrawal", err)
	if err != nil {
		return nil, err
	}
	s.notifyReceipt(ctx, "withdrawal.settled", result)
	return result, nil
}

// RejectWithdrawal 驳回提现请求并以调整流水回补预留金额
func (s *FundingService) RejectWithdrawal(ctx context.Context, requestID, operatorID, reason string) (*domain.WithdrawalRequest, error) {
	var request *domain.WithdrawalRequest
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		request, err = s.withdrawals.GetByRequestID(txCtx, requestID)
		if err != nil {
			return err
		}
		if !request.Status.CanReject() {
			return fmt.Errorf("%w: withdrawal %s is %s", domain.ErrInvalidTransition, requestID, request.Status)
		}
		account, err := s.accounts.GetForUpdate(txCtx, request.AccountID)
		if err != nil {
			return err
		}

		before, after, err := account.Credit(request.Currency, request.Amount)
		if err != nil {
			return err
		}
		movement, err := domain.NewMovement(account.AccountID, domain.MovementKindAdjustment, request.Currency,
			request.Amount, before, after,
			fmt.Sprintf("withdrawal rejected, reversal of %s", request.ReservationCode), &operatorID)
		if err != nil {
			return err
		}
		if err := s.movements.Append(txCtx, movement); err != nil {
			return err
		}
		if err := s.accounts.SaveBalances(txCtx, account); err != nil {
			return err
		}

		request.Status = domain.RequestStatusRejected
		request.OperatorID = &operatorID
		request.RejectReason = reason
		return s.withdrawals.Save(txCtx, request)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "withdrawal request rejected", "request_id", requestID, "reason", reason)
	return request, nil
}

// inTx 执行出入金事务，锁超时重试，其余错误立即返回
func (s *FundingService) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	var last error
	_ = utils.Retry(lockRetries, lockRetryDelay, func() error {
		last = s.store.Transaction(ctx, fn)
		if domain.Retryable(last) {
			s.logger.WarnContext(ctx, "funding transaction retry", "error", last)
			return last
		}
		return nil
	})
	return last
}

// observe 记录结算指标
func (s *FundingService) observe(ctx context.Context, kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.logger.ErrorContext(ctx, "funding settlement failed", "kind", kind, "error", err)
	}
	s.metrics.SettlementsTotal.WithLabelValues(kind, outcome).Inc()
}

// notifyReceipt 发送凭证通知，失败只记日志
func (s *FundingService) notifyReceipt(ctx context.Context, event string, result *SettlementResult) {
	if s.notifier == nil || result == nil {
		return
	}
	amount := result.Credited
	if amount.IsZero() {
		amount = result.Debited
	}
	n := &domain.Notification{
		Event:     event,
		AccountID: result.Receipt.AccountID,
		ReceiptID: result.Receipt.ReceiptID,
		Serial:    result.Receipt.Serial,
		Kind:      string(result.Receipt.Kind),
		Amount:    amount.StringFixed(2),
		At:        time.Now(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "notification failed", "event", event, "error", err)
	}
}

func depositChannelLabel(r *domain.DepositRequest) string {
	if r.Channel == domain.DepositChannelCrypto {
		return fmt.Sprintf("Red %s", r.Network)
	}
	return fmt.Sprintf("Transferencia bancaria, comprobante %s", r.VoucherRef)
}

func withdrawalTargetLabel(r *domain.WithdrawalRequest) string {
	if r.WalletAddress != "" {
		return fmt.Sprintf("Red %s a %s", r.Network, r.WalletAddress)
	}
	target := r.Alias
	if target == "" {
		target = r.CBU
	}
	if r.BankName != "" {
		return fmt.Sprintf("%s (%s)", target, r.BankName)
	}
	return target
}
