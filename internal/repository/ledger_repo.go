package repository

import (
	"context"
	"errors"
	"time"

	"ticketwallet/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	return r.conn(tx).WithContext(ctx).Create(entry).Error
}

// GetByID 不存在时返回 nil, nil
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *LedgerRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *LedgerRepository) ListAll(ctx context.Context) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Order("timestamp DESC").
		Find(&entries).Error
	return entries, err
}

func (r *LedgerRepository) ListByAccountID(ctx context.Context, accountID int64) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("timestamp DESC").
		Find(&entries).Error
	return entries, err
}

func (r *LedgerRepository) ListByStatus(ctx context.Context, status string) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("timestamp DESC").
		Find(&entries).Error
	return entries, err
}

// DeleteByID 返回是否删除了记录
func (r *LedgerRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.LedgerEntry{})
	return result.RowsAffected > 0, result.Error
}

// UpdateStatus 无条件覆盖状态，返回记录是否存在
func (r *LedgerRepository) UpdateStatus(ctx context.Context, id string, status string) (bool, error) {
	exists, err := r.ExistsByID(ctx, id)
	if err != nil || !exists {
		return false, err
	}

	err = r.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return false, err
	}
	return true, nil
}

// FinalizePending 仅当记录仍为 PENDING 时改为目标状态
// 返回 false 表示记录已被其他流程（如超时清理）处理
func (r *LedgerRepository) FinalizePending(ctx context.Context, tx *gorm.DB, id string, status, description string) (bool, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("id = ? AND status = ?", id, model.EntryStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"description": description,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListStalePending 查询 before 之前创建仍为 PENDING 的流水
func (r *LedgerRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("status = ? AND timestamp < ?", model.EntryStatusPending, before).
		Order("timestamp ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
