package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WalletActive    = 1
	WalletSuspended = 2
)

// Wallet holds the two spendable buckets of a user. Rows are only mutated
// through the ledger package and never deleted.
type Wallet struct {
	ID             int             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId         int             `gorm:"column:user_id;not null;uniqueIndex:idx_wallet_user" json:"user_id"`
	Username       string          `gorm:"column:username;size:255;not null" json:"username"`
	Currency       string          `gorm:"column:currency;size:10;not null" json:"currency"`
	RealBalance    decimal.Decimal `gorm:"column:real_balance;type:decimal(20,2);not null;default:0.00" json:"real_balance"`
	BonusBalance   decimal.Decimal `gorm:"column:bonus_balance;type:decimal(20,2);not null;default:0.00" json:"bonus_balance"`
	PendingBalance decimal.Decimal `gorm:"column:pending_balance;type:decimal(20,2);not null;default:0.00" json:"pending_balance"`
	Version        int             `gorm:"column:version;not null;default:1" json:"-"`
	Status         int             `gorm:"column:status;default:1" json:"status"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// Total is the spendable amount across both buckets.
func (w Wallet) Total() decimal.Decimal {
	return w.RealBalance.Add(w.BonusBalance)
}
