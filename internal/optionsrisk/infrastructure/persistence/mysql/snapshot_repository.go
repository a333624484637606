package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/optionsanalytics/internal/optionsrisk/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

type marginSnapshotRepository struct {
	db *gorm.DB
}

// NewMarginSnapshotRepository 创建并返回一个新的 MarginSnapshotRepository 实例。
func NewMarginSnapshotRepository(db *gorm.DB) domain.MarginSnapshotRepository {
	return &marginSnapshotRepository{db: db}
}

func (r *marginSnapshotRepository) Save(ctx context.Context, snapshot *domain.MarginSnapshot) error {
	if snapshot == nil {
		return nil
	}
	model, err := toMarginSnapshotModel(snapshot)
	if err != nil {
		return err
	}
	return r.getDB(ctx).WithContext(ctx).Create(model).Error
}

func (r *marginSnapshotRepository) GetLatestByAccount(ctx context.Context, accountID string) (*domain.MarginSnapshot, error) {
	var model MarginSnapshotModel
	err := r.getDB(ctx).WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toMarginSnapshot(&model)
}

func (r *marginSnapshotRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.MarginSnapshot, error) {
	var models []*MarginSnapshotModel
	err := r.getDB(ctx).WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	snapshots := make([]*domain.MarginSnapshot, 0, len(models))
	for _, m := range models {
		s, err := toMarginSnapshot(m)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

func (r *marginSnapshotRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok {
		return tx
	}
	return r.db
}
