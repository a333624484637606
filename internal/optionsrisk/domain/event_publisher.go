package domain

// EventPublisher 领域事件发布接口，由 infrastructure 层实现。
type EventPublisher interface {
	PublishMarginComputed(event MarginComputedEvent) error
	PublishRiskAlertGenerated(event RiskAlertGeneratedEvent) error
}
