package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarginSnapshot 保证金计算留痕。策略对象本身不持久化，
// 只保留汇总结果用于审计与历史查询。
type MarginSnapshot struct {
	ID           string
	AccountID    string
	TotalMargin  decimal.Decimal
	Strategies   int
	Warnings     []string
	ByUnderlying map[string]decimal.Decimal
	CalculatedAt time.Time
}

// MarginSnapshotRepository 保证金快照仓储。
type MarginSnapshotRepository interface {
	Save(ctx context.Context, snapshot *MarginSnapshot) error
	GetLatestByAccount(ctx context.Context, accountID string) (*MarginSnapshot, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*MarginSnapshot, error)
}
