// Package application 兑换与结算服务的应用层：命令编排与查询。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/metrics"
	"github.com/cambiosur/exchange/pkg/utils"
)

// IssueCommand 凭证发行命令
type IssueCommand struct {
	AccountID    string
	Kind         domain.ReceiptKind
	MovementCode *string
	Snapshot     *domain.Snapshot
	// 链上冗余字段，银行类操作留空
	Network            string
	SourceAddress      string
	DestinationAddress string
	TxID               string
}

// ReceiptIssuer 凭证发行器
// 发行流程：生成编号与验证码，渲染一次文档，对持久化字节算哈希，落库。
// 哈希绝不参与渲染输入，渲染失败使整个发行失败。
type ReceiptIssuer struct {
	receipts  domain.ReceiptRepository
	renderer  domain.DocumentRenderer
	documents domain.DocumentStore
	siteURL   string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewReceiptIssuer 创建凭证发行器
func NewReceiptIssuer(
	receipts domain.ReceiptRepository,
	renderer domain.DocumentRenderer,
	documents domain.DocumentStore,
	siteURL string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ReceiptIssuer {
	return &ReceiptIssuer{
		receipts:  receipts,
		renderer:  renderer,
		documents: documents,
		siteURL:   siteURL,
		metrics:   m,
		logger:    logger,
	}
}

// VerificationURL 拼接公开验证地址：路径为凭证编号，验证码作为查询参数
func (i *ReceiptIssuer) VerificationURL(serial, code string) string {
	return fmt.Sprintf("%s/verificar/%s?codigo=%s", i.siteURL, serial, code)
}

// Issue 在当前事务内发行一张凭证。
// 必须在持有账户锁的结算事务内调用，任一步失败整体回滚。
func (i *ReceiptIssuer) Issue(ctx context.Context, cmd *IssueCommand) (*domain.Receipt, error) {
	now := time.Now()
	serial := domain.NewReceiptSerial(now)
	code := domain.NewVerificationCode()

	rendered, err := i.renderer.Render(ctx, &domain.RenderInput{
		Serial:           serial,
		Kind:             cmd.Kind,
		IssuedAt:         now,
		Snapshot:         cmd.Snapshot,
		VerificationCode: code,
		VerificationURL:  i.VerificationURL(serial, code),
	})
	if err != nil {
		i.logger.ErrorContext(ctx, "receipt render failed", "serial", serial, "kind", cmd.Kind, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailure, err)
	}

	path, err := i.documents.Write(ctx, serial, rendered)
	if err != nil {
		i.logger.ErrorContext(ctx, "receipt document write failed", "serial", serial, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	receipt := &domain.Receipt{
		ReceiptID:          uuid.New().String(),
		Serial:             serial,
		AccountID:          cmd.AccountID,
		Kind:               cmd.Kind,
		MovementCode:       cmd.MovementCode,
		SnapshotJSON:       utils.ToJSON(cmd.Snapshot),
		DocumentPath:       path,
		DocumentSHA256:     utils.SHA256Hex(rendered),
		VerificationCode:   code,
		IssuedAt:           now,
		Network:            cmd.Network,
		SourceAddress:      cmd.SourceAddress,
		DestinationAddress: cmd.DestinationAddress,
		TxID:               cmd.TxID,
	}
	if err := i.receipts.Create(ctx, receipt); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	i.metrics.ReceiptsIssuedTotal.Inc()
	i.logger.InfoContext(ctx, "receipt issued",
		"serial", serial, "kind", cmd.Kind, "account_id", cmd.AccountID, "sha256", receipt.DocumentSHA256)
	return receipt, nil
}
