package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
	"github.com/wyfcoding/optionsanalytics/pkg/logger"
	"github.com/wyfcoding/optionsanalytics/pkg/mq"
	"github.com/wyfcoding/optionsanalytics/pkg/utils"
)

// OutboxMessage 消息队列
type OutboxMessage struct {
	ID        string    `gorm:"type:uuid;primary_key"`
	EventID   string    `gorm:"type:uuid;index"`
	EventType string    `gorm:"type:varchar(100);index"`
	Payload   string    `gorm:"type:text"`
	Status    string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "optionsrisk_outbox_messages"
}

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式。
// 事件先落库，由后台中继投递到 Kafka，保证与业务写入同库提交。
type OutboxEventPublisher struct {
	db       *gorm.DB
	producer *mq.KafkaProducer
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(db *gorm.DB, producer *mq.KafkaProducer) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: db, producer: producer}
}

// PublishMarginComputed 发布保证金计算完成事件
func (p *OutboxEventPublisher) PublishMarginComputed(event domain.MarginComputedEvent) error {
	return p.publishEvent(domain.MarginComputedEventType, event)
}

// PublishRiskAlertGenerated 发布风险建议触发事件
func (p *OutboxEventPublisher) PublishRiskAlertGenerated(event domain.RiskAlertGeneratedEvent) error {
	return p.publishEvent(domain.RiskAlertGeneratedEventType, event)
}

// publishEvent 通用事件发布方法
func (p *OutboxEventPublisher) publishEvent(eventType string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	message := OutboxMessage{
		ID:        uuid.NewString(),
		EventID:   uuid.NewString(),
		EventType: eventType,
		Payload:   string(eventData),
		Status:    "pending",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	return p.db.Create(&message).Error
}

// ProcessOutboxMessages 处理待处理的消息，按事件类型投递到同名 Kafka 主题
func (p *OutboxEventPublisher) ProcessOutboxMessages(ctx context.Context, batchSize int) error {
	var messages []OutboxMessage

	if err := p.db.WithContext(ctx).
		Where("status = ?", "pending").
		Order("created_at ASC").
		Limit(batchSize).
		Find(&messages).Error; err != nil {
		return err
	}

	for _, message := range messages {
		if p.producer != nil {
			err := utils.RetryWithBackoff(3, 100*time.Millisecond, time.Second, func() error {
				return p.producer.SendMessage(ctx, message.EventType, message.EventID,
					json.RawMessage(message.Payload))
			})
			if err != nil {
				logger.Error(ctx, "Failed to relay outbox message",
					"event_id", message.EventID,
					"event_type", message.EventType,
					"error", err,
				)
				continue
			}
		}

		if err := p.db.WithContext(ctx).Model(&message).Update("status", "sent").Error; err != nil {
			return err
		}
	}

	return nil
}

// StartRelay 启动 Outbox 中继循环，直到上下文取消
func (p *OutboxEventPublisher) StartRelay(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.ProcessOutboxMessages(ctx, batchSize); err != nil {
				logger.Error(ctx, "Outbox relay iteration failed", "error", err)
			}
		}
	}
}

// CleanupProcessedMessages 清理已处理的消息
func (p *OutboxEventPublisher) CleanupProcessedMessages(ctx context.Context, before time.Time) error {
	return p.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", "sent", before).
		Delete(&OutboxMessage{}).Error
}
