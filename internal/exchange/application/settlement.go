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

// 账户锁冲突时的事务重试参数
const (
	lockRetries    = 3
	lockRetryDelay = 50 * time.Millisecond
)

// Settings 结算业务参数，由配置装载
type Settings struct {
	SiteURL    string
	SwapFeeBps int64
	// swap 的固定兑换率（USD 与 USDT 之间），通常为 1.00
	SwapRate decimal.Decimal
	Company  domain.CompanyBlock
}

// SettlementService 结算服务
// 每个操作都是一个持有账户排他锁的原子事务：
// 余额变动、流水追加、凭证发行要么全部生效，要么全部不生效。
type SettlementService struct {
	store     domain.Store
	accounts  domain.AccountRepository
	movements domain.MovementRepository
	quotes    domain.QuoteRepository
	issuer    *ReceiptIssuer
	notifier  domain.Notifier
	settings  Settings
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSettlementService 创建结算服务
func NewSettlementService(
	store domain.Store,
	accounts domain.AccountRepository,
	movements domain.MovementRepository,
	quotes domain.QuoteRepository,
	issuer *ReceiptIssuer,
	notifier domain.Notifier,
	settings Settings,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		store:     store,
		accounts:  accounts,
		movements: movements,
		quotes:    quotes,
		issuer:    issuer,
		notifier:  notifier,
		settings:  settings,
		metrics:   m,
		logger:    logger,
	}
}

// SettlementResult 结算结果
type SettlementResult struct {
	Receipt  *domain.Receipt
	Debited  decimal.Decimal
	Credited decimal.Decimal
	Rate     decimal.Decimal
	Fee      decimal.Decimal
}

// PurchaseCommand 购汇命令：花费 ARS 买入 USD 或 USDT
type PurchaseCommand struct {
	AccountID  string
	Target     domain.Currency
	SpendARS   decimal.Decimal
	ClientName string
	ClientDoc  string
	ClientAddr string
}

// Purchase 购汇：按目标币种最新卖出价结算。
// 到账额 = Quantize(支出 ARS / 卖出价)。
func (s *SettlementService) Purchase(ctx context.Context, cmd PurchaseCommand) (*SettlementResult, error) {
	if cmd.SpendARS.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if cmd.Target != domain.CurrencyUSD && cmd.Target != domain.CurrencyUSDT {
		return nil, fmt.Errorf("%w: purchase target %q", domain.ErrUnknownCurrency, cmd.Target)
	}
	spend := domain.Quantize(cmd.SpendARS)

	var result *SettlementResult
	err := s.inTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.GetForUpdate(txCtx, cmd.AccountID)
		if err != nil {
			return err
		}
		quote, err := s.quotes.Latest(txCtx, cmd.Target)
		if err != nil {
			return err
		}
		if quote.Sell.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: non-positive sell quote for %s", domain.ErrQuoteUnavailable, cmd.Target)
		}
		received := domain.Quantize(spend.Div(quote.Sell))
		if received.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: spend %s ARS yields zero %s", domain.ErrInvalidAmount, spend, cmd.Target)
		}

		debitMov, err := s.applyDebit(txCtx, account, domain.MovementKindTrade, domain.CurrencyARS, spend,
			fmt.Sprintf("purchase %s %s at %s", received, cmd.Target, quote.Sell), nil)
		if err != nil {
			return err
		}
		creditMov, err := s.applyCredit(txCtx, account, domain.MovementKindTrade, cmd.Target, received,
			fmt.Sprintf("purchase settled, ref %s", debitMov.Code), nil)
		if err != nil {
			return err
		}
		if err := s.accounts.SaveBalances(txCtx, account); err != nil {
			return err
		}

		snapshot := s.tradeSnapshot(cmd.ClientName, cmd.ClientDoc, cmd.ClientAddr,
			fmt.Sprintf("COMPRA DE %s", cmd.Target),
			spend, domain.CurrencyARS,
			received, cmd.Target,
			fmt.Sprintf("1 %s = %s ARS", cmd.Target, quote.Sell.StringFixed(2)),
			decimal.Zero)
		receipt, err := s.issuer.Issue(txCtx, &IssueCommand{
			AccountID:    cmd.AccountID,
			Kind:         domain.PurchaseReceiptKind(cmd.Target),
			MovementCode: &creditMov.Code,
			Snapshot:     snapshot,
		})
		if err != nil {
			return err
		}

		result = &SettlementResult{Receipt: receipt, Debited: spend, Credited: received, Rate: quote.Sell}
		return nil
	})
	s.observe(ctx, "purchase", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "purchase.settled", cmd.AccountID, result.Receipt, result.Credited, cmd.Target)
	return result, nil
}

// SaleCommand 结汇命令：卖出 USD 或 USDT 换回 ARS
type SaleCommand struct {
	AccountID  string
	Source     domain.Currency
	Amount     decimal.Decimal
	ClientName string
	ClientDoc  string
	ClientAddr string
}

// Sale 结汇：按源币种最新买入价结算。
// 到账额 = Quantize(卖出量 × 买入价)。
func (s *SettlementService) Sale(ctx context.Context, cmd SaleCommand) (*SettlementResult, error) {
	if cmd.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	if cmd.Source != domain.CurrencyUSD && cmd.Source != domain.CurrencyUSDT {
		return nil, fmt.Errorf("%w: sale source %q", domain.ErrUnknownCurrency, cmd.Source)
	}
	amount := domain.Quantize(cmd.Amount)

	var result *SettlementResult
	err := s.inTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.GetForUpdate(txCtx, cmd.AccountID)
		if err != nil {
			return err
		}
		quote, err := s.quotes.Latest(txCtx, cmd.Source)
		if err != nil {
			return err
		}
		if quote.Buy.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: non-positive buy quote for %s", domain.ErrQuoteUnavailable, cmd.Source)
		}
		received := domain.Quantize(amount.Mul(quote.Buy))
		if received.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: sale of %s %s yields zero ARS", domain.ErrInvalidAmount, amount, cmd.Source)
		}

		debitMov, err := s.applyDebit(txCtx, account, domain.MovementKindTrade, cmd.Source, amount,
			fmt.Sprintf("sale for %s ARS at %s", received, quote.Buy), nil)
		if err != nil {
			return err
		}
		creditMov, err := s.applyCredit(txCtx, account, domain.MovementKindTrade, domain.CurrencyARS, received,
			fmt.Sprintf("sale settled, ref %s", debitMov.Code), nil)
		if err != nil {
			return err
		}
		if err := s.accounts.SaveBalances(txCtx, account); err != nil {
			return err
		}

		snapshot := s.tradeSnapshot(cmd.ClientName, cmd.ClientDoc, cmd.ClientAddr,
			fmt.Sprintf("VENTA DE %s", cmd.Source),
			amount, cmd.Source,
			received, domain.CurrencyARS,
			fmt.Sprintf("1 %s = %s ARS", cmd.Source, quote.Buy.StringFixed(2)),
			decimal.Zero)
		receipt, err := s.issuer.Issue(txCtx, &IssueCommand{
			AccountID:    cmd.AccountID,
			Kind:         domain.SaleReceiptKind(cmd.Source),
			MovementCode: &creditMov.Code,
			Snapshot:     snapshot,
		})
		if err != nil {
			return err
		}

		result = &SettlementResult{Receipt: receipt, Debited: amount, Credited: received, Rate: quote.Buy}
		return nil
	})
	s.observe(ctx, "sale", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "sale.settled", cmd.AccountID, result.Receipt, result.Credited, domain.CurrencyARS)
	return result, nil
}

// SwapCommand USD 与 USDT 互换命令
type SwapCommand struct {
	AccountID  string
	Source     domain.Currency
	Target     domain.Currency
	Amount     decimal.Decimal
	ClientName string
	ClientDoc  string
	ClientAddr string
}

// Swap USD⇄USDT 互换，按固定兑换率收取基点手续费。
// 到账额 = Quantize(毛额 × (1 - feeBps/10000))，毛额 = 量 × 兑换率。
func (s *SettlementService) Swap(ctx context.Context, cmd SwapCommand) (*SettlementResult, error) {
	if cmd.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	valid := (cmd.Source == domain.CurrencyUSD && cmd.Target == domain.CurrencyUSDT) ||
		(cmd.Source == domain.CurrencyUSDT && cmd.Target == domain.CurrencyUSD)
	if !valid {
		return nil, fmt.Errorf("%w: swap pair %s/%s", domain.ErrUnknownCurrency, cmd.Source, cmd.Target)
	}
	amount := domain.Quantize(cmd.Amount)

	gross := amount.Mul(s.settings.SwapRate)
	net := domain.Quantize(gross.Mul(domain.FeeFactor(s.settings.SwapFeeBps)))
	fee := domain.Quantize(gross).Sub(net)
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: swap of %s %s yields zero %s", domain.ErrInvalidAmount, amount, cmd.Source, cmd.Target)
	}

	var result *SettlementResult
	err := s.inTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.GetForUpdate(txCtx, cmd.AccountID)
		if err != nil {
			return err
		}

		debitMov, err := s.applyDebit(txCtx, account, domain.MovementKindTrade, cmd.Source, amount,
			fmt.Sprintf("swap to %s %s, fee %s", net, cmd.Target, fee), nil)
		if err != nil {
			return err
		}
		creditMov, err := s.applyCredit(txCtx, account, domain.MovementKindTrade, cmd.Target, net,
			fmt.Sprintf("swap settled, ref %s", debitMov.Code), nil)
		if err != nil {
			return err
		}
		if err := s.accounts.SaveBalances(txCtx, account); err != nil {
			return err
		}

		snapshot := s.tradeSnapshot(cmd.ClientName, cmd.ClientDoc, cmd.ClientAddr,
			fmt.Sprintf("CONVERSIÓN %s A %s", cmd.Source, cmd.Target),
			amount, cmd.Source,
			net, cmd.Target,
			fmt.Sprintf("1 %s = %s %s", cmd.Source, s.settings.SwapRate.StringFixed(2), cmd.Target),
			fee)
		receipt, err := s.issuer.Issue(txCtx, &IssueCommand{
			AccountID:    cmd.AccountID,
			Kind:         domain.SwapReceiptKind(cmd.Source, cmd.Target),
			MovementCode: &creditMov.Code,
			Snapshot:     snapshot,
		})
		if err != nil {
			return err
		}

		result = &SettlementResult{Receipt: receipt, Debited: amount, Credited: net, Rate: s.settings.SwapRate, Fee: fee}
		return nil
	})
	s.observe(ctx, "swap", err)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "swap.settled", cmd.AccountID, result.Receipt, result.Credited, cmd.Target)
	return result, nil
}

// inTx 执行结算事务，锁超时重试，其余错误立即返回
func (s *SettlementService) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	var last error
	_ = utils.Retry(lockRetries, lockRetryDelay, func() error {
		last = s.store.Transaction(ctx, fn)
		if domain.Retryable(last) {
			s.logger.WarnContext(ctx, "settlement transaction retry", "error", last)
			return last
		}
		return nil
	})
	return last
}

// applyDebit 出账并落流水
func (s *SettlementService) applyDebit(ctx context.Context, account *domain.Account, kind domain.MovementKind,
	currency domain.Currency, amount decimal.Decimal, description string, operatorID *string) (*domain.Movement, error) {
	before, after, err := account.Debit(currency, amount)
	if err != nil {
		return nil, err
	}
	movement, err := domain.NewMovement(account.AccountID, kind, currency, amount.Neg(), before, after, description, operatorID)
	if err != nil {
		return nil, err
	}
	if err := s.movements.Append(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// applyCredit 入账并落流水
func (s *SettlementService) applyCredit(ctx context.Context, account *domain.Account, kind domain.MovementKind,
	currency domain.Currency, amount decimal.Decimal, description string, operatorID *string) (*domain.Movement, error) {
	before, after, err := account.Credit(currency, amount)
	if err != nil {
		return nil, err
	}
	movement, err := domain.NewMovement(account.AccountID, kind, currency, amount, before, after, description, operatorID)
	if err != nil {
		return nil, err
	}
	if err := s.movements.Append(ctx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// tradeSnapshot 组装交易类凭证快照
func (s *SettlementService) tradeSnapshot(name, doc, addr, title string,
	debited decimal.Decimal, debitedCcy domain.Currency,
	credited decimal.Decimal, creditedCcy domain.Currency,
	rate string, fee decimal.Decimal) *domain.Snapshot {
	snapshot := &domain.Snapshot{
		Title:             title,
		State:             "COMPLETADA",
		DebitedAmount:     formatAmount(debited, debitedCcy),
		SourceAmount:      formatAmount(debited, debitedCcy),
		Rate:              rate,
		DestinationAmount: formatAmount(credited, creditedCcy),
		Client:            domain.ClientBlock{Name: name, Document: doc, Address: addr},
		Company:           s.settings.Company,
	}
	if fee.IsPositive() {
		snapshot.FeeAmount = formatAmount(fee, creditedCcy)
	}
	return snapshot
}

// observe 记录结算指标
func (s *SettlementService) observe(ctx context.Context, kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		s.logger.ErrorContext(ctx, "settlement failed", "kind", kind, "error", err)
	}
	s.metrics.SettlementsTotal.WithLabelValues(kind, outcome).Inc()
}

// notify 发送业务通知，失败只记日志
func (s *SettlementService) notify(ctx context.Context, event, accountID string, receipt *domain.Receipt,
	amount decimal.Decimal, currency domain.Currency) {
	if s.notifier == nil {
		return
	}
	n := &domain.Notification{
		Event:     event,
		AccountID: accountID,
		ReceiptID: receipt.ReceiptID,
		Serial:    receipt.Serial,
		Kind:      string(receipt.Kind),
		Amount:    amount.StringFixed(2),
		Currency:  string(currency),
		At:        time.Now(),
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "notification failed", "event", event, "error", err)
	}
}

// formatAmount 凭证上打印的金额格式
func formatAmount(amount decimal.Decimal, currency domain.Currency) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), currency)
}
