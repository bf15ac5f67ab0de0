package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// AdminService 运营侧维护操作：行情、手工调整、凭证作废
type AdminService struct {
	store     domain.Store
	accounts  domain.AccountRepository
	movements domain.MovementRepository
	quotes    domain.QuoteRepository
	receipts  domain.ReceiptRepository
	logger    *slog.Logger
}

// NewAdminService 创建运营服务
func NewAdminService(
	store domain.Store,
	accounts domain.AccountRepository,
	movements domain.MovementRepository,
	quotes domain.QuoteRepository,
	receipts domain.ReceiptRepository,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		store:     store,
		accounts:  accounts,
		movements: movements,
		quotes:    quotes,
		receipts:  receipts,
		logger:    logger,
	}
}

// SaveQuoteCommand 发布行情命令
type SaveQuoteCommand struct {
	Currency domain.Currency
	Buy      decimal.Decimal
	Sell     decimal.Decimal
}

// SaveQuote 发布一条新行情，即刻成为该币种的最新报价
func (s *AdminService) SaveQuote(ctx context.Context, cmd SaveQuoteCommand) (*domain.Quote, error) {
	if cmd.Currency == domain.CurrencyARS {
		return nil, fmt.Errorf("%w: quotes are priced in ARS", domain.ErrUnknownCurrency)
	}
	if cmd.Buy.LessThanOrEqual(decimal.Zero) || cmd.Sell.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: quote must be positive", domain.ErrInvalidAmount)
	}
	quote := &domain.Quote{
		Currency: cmd.Currency,
		Buy:      domain.Quantize(cmd.Buy),
		Sell:     domain.Quantize(cmd.Sell),
		AsOf:     time.Now(),
	}
	if err := s.quotes.Save(ctx, quote); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "quote published",
		"currency", cmd.Currency, "buy", quote.Buy, "sell", quote.Sell)
	return quote, nil
}

// AdjustCommand 手工调整命令，金额带符号
type AdjustCommand struct {
	AccountID  string
	Currency   domain.Currency
	Delta      decimal.Decimal
	OperatorID string
	Reason     string
}

// Adjust 手工调整余额，生成调整类流水。
// 出账方向同样受余额不足约束。
func (s *AdminService) Adjust(ctx context.Context, cmd AdjustCommand) (*domain.Movement, error) {
	if cmd.Delta.IsZero() {
		return nil, domain.ErrInvalidAmount
	}
	if cmd.Reason == "" {
		return nil, fmt.Errorf("%w: adjustment requires a reason", domain.ErrInvalidAmount)
	}
	delta := domain.Quantize(cmd.Delta)
	if delta.IsZero() {
		return nil, domain.ErrInvalidAmount
	}

	var movement *domain.Movement
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.GetForUpdate(txCtx, cmd.AccountID)
		if err != nil {
			return err
		}
		var before, after decimal.Decimal
		if delta.IsPositive() {
			before, after, err = account.Credit(cmd.Currency, delta)
		} else {
			before, after, err = account.Debit(cmd.Currency, delta.Neg())
		}
		if err != nil {
			return err
		}
		movement, err = domain.NewMovement(account.AccountID, domain.MovementKindAdjustment, cmd.Currency,
			delta, before, after, cmd.Reason, &cmd.OperatorID)
		if err != nil {
			return err
		}
		if err := s.movements.Append(txCtx, movement); err != nil {
			return err
		}
		return s.accounts.SaveBalances(txCtx, account)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "balance adjusted",
		"account_id", cmd.AccountID, "currency", cmd.Currency, "delta", cmd.Delta, "operator_id", cmd.OperatorID)
	return movement, nil
}

// AnnulReceipt 作废凭证。只置位，凭证与其文档保持不变以供审计
func (s *AdminService) AnnulReceipt(ctx context.Context, receiptID, operatorID string) error {
	err := s.store.Transaction(ctx, func(txCtx context.Context) error {
		receipt, err := s.receipts.GetByReceiptID(txCtx, receiptID)
		if err != nil {
			return err
		}
		if receipt.Annulled {
			return nil
		}
		return s.receipts.Annul(txCtx, receiptID)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "receipt annulled", "receipt_id", receiptID, "operator_id", operatorID)
	return nil
}
