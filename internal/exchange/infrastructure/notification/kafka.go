// Package notification 业务通知投递。
package notification

import (
	"context"
	"log/slog"

	"github.com/cambiosur/exchange/internal/exchange/domain"
	"github.com/cambiosur/exchange/pkg/mq"
)

// KafkaNotifier 将业务通知投递到 Kafka，实现 domain.Notifier。
// 投递失败只向上返回错误，由调用方决定是否降级。
type KafkaNotifier struct {
	producer *mq.KafkaProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaNotifier 创建通知投递器
func NewKafkaNotifier(producer *mq.KafkaProducer, topic string, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}
}

// Notify 按账户分区投递通知
func (n *KafkaNotifier) Notify(ctx context.Context, notification *domain.Notification) error {
	if err := n.producer.SendMessage(ctx, n.topic, notification.AccountID, notification); err != nil {
		return err
	}
	n.logger.DebugContext(ctx, "notification published",
		"event", notification.Event, "account_id", notification.AccountID, "serial", notification.Serial)
	return nil
}
