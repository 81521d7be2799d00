package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betting-service/internal/ledger"
	"betting-service/internal/models"
	"betting-service/pkg/common"
)

type WalletService struct {
	DB     *gorm.DB
	Ledger *ledger.Store
	Log    *zap.Logger
}

func NewWalletService(db *gorm.DB, store *ledger.Store, log *zap.Logger) *WalletService {
	return &WalletService{DB: db, Ledger: store, Log: log}
}

type CreateWalletDTO struct {
	UserId   int             `json:"user_id" validate:"required,gt=0"`
	Username string          `json:"username" validate:"required,max=255"`
	Currency string          `json:"currency" validate:"omitempty,len=3"`
	Amount   decimal.Decimal `json:"amount"`
	Bonus    decimal.Decimal `json:"bonus"`
}

func (s *WalletService) CreateWallet(ctx context.Context, data CreateWalletDTO) (*models.Wallet, error) {
	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	wallet, err := s.Ledger.CreateWallet(ctx, ledger.CreateWalletInput{
		UserId:   data.UserId,
		Username: data.Username,
		Currency: data.Currency,
		Real:     data.Amount,
		Bonus:    data.Bonus,
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("wallet created", zap.Int("user_id", wallet.UserId), zap.String("total", wallet.Total().String()))
	return wallet, nil
}

func (s *WalletService) GetBalance(ctx context.Context, userID int) (WalletBalance, error) {
	wallet, err := s.Ledger.GetWallet(ctx, userID)
	if err != nil {
		return WalletBalance{}, err
	}
	return balanceOf(wallet), nil
}

type AdjustBalanceDTO struct {
	UserId      int             `json:"user_id" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
	Wallet      string          `json:"wallet" validate:"omitempty,oneof=real bonus"`
	Debit       bool            `json:"debit"`
	Description string          `json:"description" validate:"required,max=255"`
}

// AdjustBalance is the back-office correction path. It books an
// adjustment transaction like every other balance change.
func (s *WalletService) AdjustBalance(ctx context.Context, data AdjustBalanceDTO) (*models.Transaction, error) {
	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := ledger.ValidateAmount(data.Amount); err != nil {
		return nil, err
	}
	trx, err := s.Ledger.Adjust(ctx, data.UserId, data.Amount, data.Wallet, data.Debit, data.Description)
	if err != nil {
		return nil, err
	}
	s.Log.Info("wallet adjusted",
		zap.Int("user_id", data.UserId),
		zap.String("amount", data.Amount.String()),
		zap.Bool("debit", data.Debit),
	)
	return trx, nil
}

type TransactionFilterDTO struct {
	UserId    int
	Type      string
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

func (s *WalletService) GetUserTransactions(ctx context.Context, data TransactionFilterDTO) (common.PaginationResult, error) {
	page, limit, offset := common.NormalizePage(data.Page, data.Limit)

	query := s.DB.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", data.UserId)
	if data.Type != "" {
		query = query.Where("type = ?", data.Type)
	}
	if data.StartDate != nil {
		query = query.Where("created_at >= ?", data.StartDate.UTC())
	}
	if data.EndDate != nil {
		query = query.Where("created_at <= ?", data.EndDate.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var transactions []models.Transaction
	if err := query.Order("id desc").Offset(offset).Limit(limit).Find(&transactions).Error; err != nil {
		return common.PaginationResult{}, err
	}
	return common.PaginateResponse(transactions, total, page, limit, "Transactions fetched"), nil
}

func (s *WalletService) Reconcile(ctx context.Context, userID int) (*ledger.Reconciliation, error) {
	return s.Ledger.Reconcile(ctx, userID)
}
