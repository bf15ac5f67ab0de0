package application

import (
	"context"
	"log/slog"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/metrics"
	"github.com/cambiosur/exchange/pkg/utils"
)

// VerificationResult 凭证验证结果
type VerificationResult struct {
	Receipt *domain.Receipt `json:"receipt"`
	// 发行时冻结的打印快照（解析后）
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
	// 对当前存储文档重新计算的哈希
	ComputedSHA256 string `json:"computed_sha256"`
	// 重算哈希是否与发行时哈希一致
	Matches bool `json:"matches"`
	// 凭证是否被作废
	Annulled bool `json:"annulled"`
}

// VerificationService 凭证验证服务
// 只读：读取存储文档重算哈希并与发行时哈希比对，绝不改写任何状态。
// 验证可重复执行，结果只随文档内容变化。
type VerificationService struct {
	receipts  domain.ReceiptRepository
	documents domain.DocumentStore
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewVerificationService 创建验证服务
func NewVerificationService(receipts domain.ReceiptRepository, documents domain.DocumentStore,
	m *metrics.Metrics, logger *slog.Logger) *VerificationService {
	return &VerificationService{receipts: receipts, documents: documents, metrics: m, logger: logger}
}

// VerifyBySerial 按凭证编号（BOL-...）验证
func (s *VerificationService) VerifyBySerial(ctx context.Context, serial string) (*VerificationResult, error) {
	receipt, err := s.receipts.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, receipt)
}

// VerifyByCode 按短验证码验证（人工录入的替代入口）
func (s *VerificationService) VerifyByCode(ctx context.Context, code string) (*VerificationResult, error) {
	receipt, err := s.receipts.GetByVerificationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, receipt)
}

// VerifyByReceiptID 按凭证 ID 验证
func (s *VerificationService) VerifyByReceiptID(ctx context.Context, receiptID string) (*VerificationResult, error) {
	receipt, err := s.receipts.GetByReceiptID(ctx, receiptID)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, receipt)
}

func (s *VerificationService) verify(ctx context.Context, receipt *domain.Receipt) (*VerificationResult, error) {
	data, err := s.documents.Read(ctx, receipt.DocumentPath)
	if err != nil {
		s.logger.ErrorContext(ctx, "receipt document read failed",
			"serial", receipt.Serial, "path", receipt.DocumentPath, "error", err)
		return nil, domain.ErrStorageFailure
	}

	computed := utils.SHA256Hex(data)
	matches := computed == receipt.DocumentSHA256
	if !matches {
		s.metrics.VerificationFailuresTotal.Inc()
		s.logger.WarnContext(ctx, "receipt hash mismatch",
			"serial", receipt.Serial, "stored", receipt.DocumentSHA256, "computed", computed)
	}

	result := &VerificationResult{
		Receipt:        receipt,
		ComputedSHA256: computed,
		Matches:        matches,
		Annulled:       receipt.Annulled,
	}
	var snapshot domain.Snapshot
	if err := utils.FromJSON(receipt.SnapshotJSON, &snapshot); err == nil {
		result.Snapshot = &snapshot
	}
	return result, nil
}
