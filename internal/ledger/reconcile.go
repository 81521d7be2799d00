package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"betting-service/internal/models"
)

// Reconciliation compares a wallet with the transaction trail that built it.
type Reconciliation struct {
	UserId      int             `json:"user_id"`
	WalletTotal decimal.Decimal `json:"wallet_total"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
	// Breaks lists transaction ids whose before/after do not match the
	// amount or do not chain from the previous row.
	Breaks   []int `json:"breaks"`
	Balanced bool  `json:"balanced"`
}

func (s *Store) Reconcile(ctx context.Context, userID int) (*Reconciliation, error) {
	wallet, err := s.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	var trail []models.Transaction
	if err := s.DB.WithContext(ctx).
		Where("wallet_id = ? AND status = ?", wallet.ID, models.TrxStatusSuccess).
		Order("id asc").
		Find(&trail).Error; err != nil {
		return nil, err
	}

	r := &Reconciliation{
		UserId:      userID,
		WalletTotal: wallet.Total(),
		LedgerTotal: decimal.Zero,
		Breaks:      []int{},
	}
	running := decimal.Zero
	for _, trx := range trail {
		signed := signedAmount(trx)
		if !trx.BalanceAfter.Sub(trx.BalanceBefore).Equal(signed) || !trx.BalanceBefore.Equal(running) {
			r.Breaks = append(r.Breaks, trx.ID)
		}
		running = running.Add(signed)
	}
	r.LedgerTotal = running
	r.Balanced = len(r.Breaks) == 0 && running.Equal(r.WalletTotal)
	return r, nil
}

// signedAmount is the effect of trx on the wallet total. Adjustments go
// either way so their direction is read from the row itself.
func signedAmount(trx models.Transaction) decimal.Decimal {
	if trx.Type.Debits() {
		return trx.Amount.Neg()
	}
	if trx.Type == models.TrxAdjustment && trx.BalanceAfter.LessThan(trx.BalanceBefore) {
		return trx.Amount.Neg()
	}
	return trx.Amount
}
