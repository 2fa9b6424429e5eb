package model

import (
	"time"
)

// Account 用户钱包账户
// ID 与认证系统中的用户ID一致，注册时以余额 0 创建
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"` // 可用余额（整数单位，不可为负）
	Version   int       `gorm:"not null;default:0" json:"version"` // 每次余额变动 +1
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
