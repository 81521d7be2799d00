package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TrxBetPlaced  TransactionType = "bet_placed"
	TrxBetWon     TransactionType = "bet_won"
	TrxBetRefund  TransactionType = "bet_refund"
	TrxAdjustment TransactionType = "adjustment"
	TrxDeposit    TransactionType = "deposit"
	TrxWithdrawal TransactionType = "withdrawal"
	TrxTransfer   TransactionType = "transfer"
	TrxBonus      TransactionType = "bonus"
)

// Debits reports whether a transaction of this type lowers the wallet total.
func (t TransactionType) Debits() bool {
	return t == TrxBetPlaced || t == TrxWithdrawal
}

const (
	BalanceReal  = "real"
	BalanceBonus = "bonus"
)

const (
	ReferenceBet    = "bet"
	ReferenceWallet = "wallet"
)

const (
	TrxStatusPending = 0
	TrxStatusSuccess = 1
	TrxStatusFailed  = 2
)

// Transaction is an insert-only audit row. BalanceBefore and BalanceAfter
// are totals across both wallet buckets.
type Transaction struct {
	ID            int             `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"column:transaction_no;size:64;not null;index" json:"transaction_no"`
	WalletId      int             `gorm:"column:wallet_id;not null;index" json:"wallet_id"`
	UserId        int             `gorm:"column:user_id;not null;index:idx_trx_user_created" json:"user_id"`
	Type          TransactionType `gorm:"column:type;size:30;not null;index" json:"type"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:decimal(20,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"column:balance_after;type:decimal(20,2);not null" json:"balance_after"`
	BalanceType   string          `gorm:"column:balance_type;size:10;not null;default:real" json:"balance_type"`
	ReferenceType string          `gorm:"column:reference_type;size:30;index:idx_trx_reference" json:"reference_type"`
	ReferenceId   int             `gorm:"column:reference_id;index:idx_trx_reference" json:"reference_id"`
	Status        int             `gorm:"column:status;default:1" json:"status"`
	Description   string          `gorm:"column:description;type:text" json:"description"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime;index:idx_trx_user_created" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
