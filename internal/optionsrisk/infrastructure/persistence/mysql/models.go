package mysql

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
	"gorm.io/gorm"
)

// MarginSnapshotModel MySQL 保证金快照表映射。
// 警告与分标的小计为不定长集合，序列化为 JSON 存储。
type MarginSnapshotModel struct {
	gorm.Model
	ID           string          `gorm:"primaryKey;type:varchar(36);column:id"`
	AccountID    string          `gorm:"column:account_id;type:varchar(36);index;not null"`
	TotalMargin  decimal.Decimal `gorm:"column:total_margin;type:decimal(20,8);not null"`
	Strategies   int             `gorm:"column:strategies;type:int;not null"`
	Warnings     string          `gorm:"column:warnings;type:text"`
	ByUnderlying string          `gorm:"column:by_underlying;type:text"`
}

func (MarginSnapshotModel) TableName() string { return "margin_snapshots" }

// --- mapping helpers ---

func toMarginSnapshotModel(s *domain.MarginSnapshot) (*MarginSnapshotModel, error) {
	warnings, err := json.Marshal(s.Warnings)
	if err != nil {
		return nil, err
	}
	byUnderlying, err := json.Marshal(s.ByUnderlying)
	if err != nil {
		return nil, err
	}
	model := &MarginSnapshotModel{
		ID:           s.ID,
		AccountID:    s.AccountID,
		TotalMargin:  s.TotalMargin,
		Strategies:   s.Strategies,
		Warnings:     string(warnings),
		ByUnderlying: string(byUnderlying),
	}
	model.CreatedAt = s.CalculatedAt
	return model, nil
}

func toMarginSnapshot(m *MarginSnapshotModel) (*domain.MarginSnapshot, error) {
	var warnings []string
	if m.Warnings != "" {
		if err := json.Unmarshal([]byte(m.Warnings), &warnings); err != nil {
			return nil, err
		}
	}
	var byUnderlying map[string]decimal.Decimal
	if m.ByUnderlying != "" {
		if err := json.Unmarshal([]byte(m.ByUnderlying), &byUnderlying); err != nil {
			return nil, err
		}
	}
	return &domain.MarginSnapshot{
		ID:           m.ID,
		AccountID:    m.AccountID,
		TotalMargin:  m.TotalMargin,
		Strategies:   m.Strategies,
		Warnings:     warnings,
		ByUnderlying: byUnderlying,
		CalculatedAt: m.CreatedAt,
	}, nil
}
