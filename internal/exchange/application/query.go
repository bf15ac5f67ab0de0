package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cambiosur/exchange/internal/exchange/domain"
)

// QueryService 只读查询：余额、流水、凭证与文档下载
type QueryService struct {
	accounts  domain.AccountRepository
	movements domain.MovementRepository
	receipts  domain.ReceiptRepository
	documents domain.DocumentStore
	logger    *slog.Logger
}

// NewQueryService 创建查询服务
func NewQueryService(
	accounts domain.AccountRepository,
	movements domain.MovementRepository,
	receipts domain.ReceiptRepository,
	documents domain.DocumentStore,
	logger *slog.Logger,
) *QueryService {
	return &QueryService{
		accounts:  accounts,
		movements: movements,
		receipts:  receipts,
		documents: documents,
		logger:    logger,
	}
}

// Balances 查询账户全部币种余额
func (s *QueryService) Balances(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.GetByAccountID(ctx, accountID)
}

// Movements 按条件查询账户流水
func (s *QueryService) Movements(ctx context.Context, accountID string, filter domain.MovementFilter) ([]*domain.Movement, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.movements.ListByAccount(ctx, accountID, filter)
}

// MovementsCSV 导出账户流水为 CSV
func (s *QueryService) MovementsCSV(ctx context.Context, accountID string, filter domain.MovementFilter) ([]byte, error) {
	filter.Limit = 10000
	filter.Offset = 0
	movements, err := s.movements.ListByAccount(ctx, accountID, filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"code", "kind", "currency", "amount", "balance_before", "balance_after", "description", "operator_id", "occurred_at"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, m := range movements {
		operator := ""
		if m.OperatorID != nil {
			operator = *m.OperatorID
		}
		record := []string{
			m.Code,
			string(m.Kind),
			string(m.Currency),
			m.Amount.StringFixed(2),
			m.BalanceBefore.StringFixed(2),
			m.BalanceAfter.StringFixed(2),
			m.Description,
			operator,
			m.OccurredAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Receipts 查询账户凭证列表
func (s *QueryService) Receipts(ctx context.Context, accountID string, limit, offset int) ([]*domain.Receipt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.receipts.ListByAccount(ctx, accountID, limit, offset)
}

// Receipt 按凭证 ID 或编号（BOL-...）查询，校验归属
func (s *QueryService) Receipt(ctx context.Context, accountID, ref string) (*domain.Receipt, error) {
	var (
		receipt *domain.Receipt
		err     error
	)
	if strings.HasPrefix(ref, "BOL-") {
		receipt, err = s.receipts.GetBySerial(ctx, ref)
	} else {
		receipt, err = s.receipts.GetByReceiptID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if accountID != "" && receipt.AccountID != accountID {
		return nil, fmt.Errorf("%w: receipt %s", domain.ErrForbidden, ref)
	}
	return receipt, nil
}

// ReceiptDocument 下载凭证文档原始字节，ref 为凭证 ID 或编号
func (s *QueryService) ReceiptDocument(ctx context.Context, accountID, ref string) (*domain.Receipt, []byte, error) {
	receipt, err := s.Receipt(ctx, accountID, ref)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.documents.Read(ctx, receipt.DocumentPath)
	if err != nil {
		s.logger.ErrorContext(ctx, "receipt document read failed",
			"receipt", ref, "path", receipt.DocumentPath, "error", err)
		return nil, nil, domain.ErrStorageFailure
	}
	return receipt, data, nil
}
