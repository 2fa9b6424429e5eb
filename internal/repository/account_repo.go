package repository

import (
	"context"
	"errors"

	"ticketwallet/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Save 插入或整体更新账户
func (r *AccountRepository) Save(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return r.conn(tx).WithContext(ctx).Save(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Increase 余额增加 amount
func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DeductIfSufficient 条件扣减，余额不足时不修改并返回 false
// 判断与扣减在同一条 UPDATE 内完成，并发下余额也不会为负
func (r *AccountRepository) DeductIfSufficient(ctx context.Context, tx *gorm.DB, id int64, amount int64) (bool, error) {
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetOrCreate 不存在则以余额 0 创建，并发创建时依赖主键冲突忽略
func (r *AccountRepository) GetOrCreate(ctx context.Context, id int64) (*model.Account, bool, error) {
	account, err := r.GetByID(ctx, nil, id)
	if err == nil {
		return account, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&model.Account{ID: id, Balance: 0})
	if result.Error != nil {
		return nil, false, result.Error
	}

	account, err = r.GetByID(ctx, nil, id)
	if err != nil {
		return nil, false, err
	}
	return account, result.RowsAffected == 1, nil
}
