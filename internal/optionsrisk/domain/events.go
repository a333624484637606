package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// 事件主题
const (
	MarginComputedEventType     = "optionsrisk.margin.computed"
	RiskAlertGeneratedEventType = "optionsrisk.alert.generated"
)

// MarginComputedEvent 组合保证金计算完成事件。
type MarginComputedEvent struct {
	AccountID    string          `json:"account_id"`
	TotalMargin  decimal.Decimal `json:"total_margin"`
	Strategies   int             `json:"strategies"`
	Warnings     int             `json:"warnings"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// RiskAlertGeneratedEvent 风险建议触发事件。
type RiskAlertGeneratedEvent struct {
	AccountID   string    `json:"account_id"`
	Rule        string    `json:"rule"`
	Action      string    `json:"action"`
	Message     string    `json:"message"`
	GeneratedAt time.Time `json:"generated_at"`
}
