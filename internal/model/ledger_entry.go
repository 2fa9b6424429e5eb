package model

import (
	"time"
)

const (
	EntryTypeTopUp          = "TOP_UP"
	EntryTypeTicketPurchase = "TICKET_PURCHASE"
)

const (
	EntryStatusSuccess = "SUCCESS"
	EntryStatusFailed  = "FAILED"
	EntryStatusPending = "PENDING"
)

// NoEventID 查票失败时无法确定所属活动
const NoEventID = "N/A"

// IsValidEntryStatus 校验状态取值
func IsValidEntryStatus(status string) bool {
	switch status {
	case EntryStatusSuccess, EntryStatusFailed, EntryStatusPending:
		return true
	}
	return false
}

// LedgerEntry 账本流水
// 每次充值或购票尝试（无论成功失败）恰好写入一条
//
// Amount 始终为正数，方向由 Type 决定。
// 除管理员强制置为 FAILED 外不再修改。
type LedgerEntry struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AccountID   int64     `gorm:"index;not null" json:"account_id"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	Status      string    `gorm:"type:varchar(20);index;not null" json:"status"`
	Description string    `gorm:"type:varchar(512)" json:"description"`
	EventID     string    `gorm:"type:varchar(64)" json:"event_id,omitempty"`
	TicketID    int64     `gorm:"not null;default:0" json:"ticket_id,omitempty"`
	TopUpType   string    `gorm:"type:varchar(20)" json:"top_up_type,omitempty"` // FIXED / CUSTOM，仅充值
	Timestamp   time.Time `gorm:"index;not null" json:"timestamp"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
