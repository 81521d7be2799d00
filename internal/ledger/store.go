package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"betting-service/internal/models"
	"betting-service/pkg/common"
)

// Store owns every write to wallets and transactions. Mutating functions
// take the caller's transaction so bet rows and ledger rows commit together.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Entry describes the audit row written alongside a balance change.
type Entry struct {
	Type          models.TransactionType
	BalanceType   string
	ReferenceType string
	ReferenceId   int
	Description   string
}

func (s *Store) GetWallet(ctx context.Context, userID int) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockWallet reads the wallet row with SELECT ... FOR UPDATE.
func LockWallet(tx *gorm.DB, userID int) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Debit removes a from the wallet and records the audit row.
func Debit(tx *gorm.DB, w *models.Wallet, a Allocation, e Entry) (*models.Transaction, error) {
	if err := ValidateAmount(a.Total()); err != nil {
		return nil, err
	}
	if a.Real.IsNegative() || a.Bonus.IsNegative() {
		return nil, ErrInvalidAmount
	}
	real := w.RealBalance.Sub(a.Real)
	bonus := w.BonusBalance.Sub(a.Bonus)
	if real.IsNegative() || bonus.IsNegative() {
		return nil, ErrInsufficientFunds
	}
	return apply(tx, w, real, bonus, a.Total(), e)
}

// Credit adds a to the wallet and records the audit row.
func Credit(tx *gorm.DB, w *models.Wallet, a Allocation, e Entry) (*models.Transaction, error) {
	if err := ValidateAmount(a.Total()); err != nil {
		return nil, err
	}
	if a.Real.IsNegative() || a.Bonus.IsNegative() {
		return nil, ErrInvalidAmount
	}
	return apply(tx, w, w.RealBalance.Add(a.Real), w.BonusBalance.Add(a.Bonus), a.Total(), e)
}

// apply writes the new balances guarded by the version read earlier in the
// same transaction, then inserts the transaction row.
func apply(tx *gorm.DB, w *models.Wallet, real, bonus, amount decimal.Decimal, e Entry) (*models.Transaction, error) {
	if real.IsNegative() || bonus.IsNegative() {
		return nil, ErrNegativeBalance
	}
	before := w.Total()

	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND version = ?", w.ID, w.Version).
		Updates(map[string]interface{}{
			"real_balance":  real,
			"bonus_balance": bonus,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update wallet %d: %w", w.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentUpdate
	}
	w.RealBalance = real
	w.BonusBalance = bonus
	w.Version++

	balanceType := e.BalanceType
	if balanceType == "" {
		balanceType = models.BalanceReal
	}
	trx := models.Transaction{
		TransactionNo: common.GenerateTrxNo(),
		WalletId:      w.ID,
		UserId:        w.UserId,
		Type:          e.Type,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  w.Total(),
		BalanceType:   balanceType,
		ReferenceType: e.ReferenceType,
		ReferenceId:   e.ReferenceId,
		Status:        models.TrxStatusSuccess,
		Description:   e.Description,
	}
	if err := tx.Create(&trx).Error; err != nil {
		return nil, fmt.Errorf("record %s transaction: %w", e.Type, err)
	}
	return &trx, nil
}

type CreateWalletInput struct {
	UserId   int
	Username string
	Currency string
	Real     decimal.Decimal
	Bonus    decimal.Decimal
}

// CreateWallet opens an empty wallet and books any opening funds as
// deposit and bonus transactions so the audit trail starts at zero.
func (s *Store) CreateWallet(ctx context.Context, in CreateWalletInput) (*models.Wallet, error) {
	if in.Real.IsNegative() || in.Bonus.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if in.Currency == "" {
		in.Currency = "NGN"
	}

	var wallet models.Wallet
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Wallet{}).Where("user_id = ?", in.UserId).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrWalletExists
		}

		wallet = models.Wallet{
			UserId:   in.UserId,
			Username: in.Username,
			Currency: in.Currency,
			Version:  1,
			Status:   models.WalletActive,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}

		if in.Real.IsPositive() {
			if _, err := Credit(tx, &wallet, Allocation{Real: in.Real, Bonus: decimal.Zero}, Entry{
				Type:          models.TrxDeposit,
				BalanceType:   models.BalanceReal,
				ReferenceType: models.ReferenceWallet,
				ReferenceId:   wallet.ID,
				Description:   "Initial Balance",
			}); err != nil {
				return err
			}
		}
		if in.Bonus.IsPositive() {
			if _, err := Credit(tx, &wallet, Allocation{Real: decimal.Zero, Bonus: in.Bonus}, Entry{
				Type:          models.TrxBonus,
				BalanceType:   models.BalanceBonus,
				ReferenceType: models.ReferenceWallet,
				ReferenceId:   wallet.ID,
				Description:   "Registration bonus",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Adjust books a manual credit or debit on one bucket.
func (s *Store) Adjust(ctx context.Context, userID int, amount decimal.Decimal, bucket string, debit bool, description string) (*models.Transaction, error) {
	a := Allocation{Real: amount, Bonus: decimal.Zero}
	if bucket == models.BalanceBonus {
		a = Allocation{Real: decimal.Zero, Bonus: amount}
	} else {
		bucket = models.BalanceReal
	}

	var trx *models.Transaction
	err := WithRetry(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			w, err := LockWallet(tx, userID)
			if err != nil {
				return err
			}
			e := Entry{
				Type:          models.TrxAdjustment,
				BalanceType:   bucket,
				ReferenceType: models.ReferenceWallet,
				ReferenceId:   w.ID,
				Description:   description,
			}
			if debit {
				trx, err = Debit(tx, w, a, e)
			} else {
				trx, err = Credit(tx, w, a, e)
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return trx, nil
}
