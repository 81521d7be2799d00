package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betting-service/internal/catalog"
	"betting-service/internal/events"
	"betting-service/internal/ledger"
	"betting-service/internal/metrics"
	"betting-service/internal/models"
	"betting-service/pkg/common"
)

var validate = validator.New()

type OddsReader interface {
	GetOdds(ctx context.Context, id int) (*models.Odds, error)
}

type MatchReader interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
}

// LimitsPolicy checks a stake against the user's limits. ValidateStakeTx
// repeats the check inside the placement transaction.
type LimitsPolicy interface {
	ValidateStake(ctx context.Context, userID int, amount decimal.Decimal) (catalog.LimitCheck, error)
	ValidateStakeTx(tx *gorm.DB, userID int, amount decimal.Decimal) (catalog.LimitCheck, error)
}

type BetService struct {
	DB     *gorm.DB
	Ledger *ledger.Store
	Odds   OddsReader
	Limits LimitsPolicy
	Events events.Publisher
	Log    *zap.Logger
	Now    func() time.Time
}

func NewBetService(db *gorm.DB, store *ledger.Store, odds OddsReader, limits LimitsPolicy, publisher events.Publisher, log *zap.Logger) *BetService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BetService{
		DB:     db,
		Ledger: store,
		Odds:   odds,
		Limits: limits,
		Events: publisher,
		Log:    log,
		Now:    time.Now,
	}
}

type PlaceBetDTO struct {
	UserId         int             `json:"user_id" validate:"required,gt=0"`
	OddsId         int             `json:"odds_id" validate:"required,gt=0"`
	Stake          decimal.Decimal `json:"stake"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,max=128"`
	IpAddress      string          `json:"ip_address" validate:"omitempty,ip"`
}

type WalletBalance struct {
	RealBalance  decimal.Decimal `json:"real_balance"`
	BonusBalance decimal.Decimal `json:"bonus_balance"`
	Total        decimal.Decimal `json:"total"`
}

func balanceOf(w *models.Wallet) WalletBalance {
	return WalletBalance{RealBalance: w.RealBalance, BonusBalance: w.BonusBalance, Total: w.Total()}
}

type PlaceBetResult struct {
	Duplicate bool          `json:"duplicate"`
	Bet       models.Bet    `json:"bet"`
	Balance   WalletBalance `json:"balance"`
}

// PlaceBet debits the stake and records a pending single bet in one
// transaction. Replaying an idempotency key returns the original bet
// without touching the wallet.
func (s *BetService) PlaceBet(ctx context.Context, data PlaceBetDTO) (*PlaceBetResult, error) {
	res, err := s.placeBet(ctx, data)
	switch {
	case err != nil:
		metrics.BetsPlaced.WithLabelValues(string(Kind(err))).Inc()
	case res.Duplicate:
		metrics.BetsPlaced.WithLabelValues("duplicate").Inc()
	default:
		metrics.BetsPlaced.WithLabelValues("placed").Inc()
		metrics.StakePlaced.WithLabelValues(models.BalanceReal).Add(res.Bet.Metadata.RealStake.InexactFloat64())
		metrics.StakePlaced.WithLabelValues(models.BalanceBonus).Add(res.Bet.Metadata.BonusStake.InexactFloat64())
	}
	return res, err
}

func (s *BetService) placeBet(ctx context.Context, data PlaceBetDTO) (*PlaceBetResult, error) {
	if err := validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if existing, err := s.findByIdempotencyKey(ctx, data.UserId, data.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return s.duplicate(ctx, existing)
	}

	odds, err := s.Odds.GetOdds(ctx, data.OddsId)
	if err != nil {
		return nil, fmt.Errorf("load odds %d: %w", data.OddsId, err)
	}
	if odds == nil {
		return nil, ErrOddsNotFound
	}
	if odds.Status != models.OddsActive {
		return nil, ErrOddsSuspended
	}
	if odds.Match == nil {
		return nil, ErrMatchNotFound
	}
	if !odds.Match.Bettable() {
		return nil, ErrMatchNotBettable
	}

	if err := ledger.ValidateAmount(data.Stake); err != nil {
		return nil, err
	}

	check, err := s.Limits.ValidateStake(ctx, data.UserId, data.Stake)
	if err != nil {
		return nil, fmt.Errorf("validate stake: %w", err)
	}
	if !check.Valid {
		return nil, &LimitExceededError{Reason: check.Reason, Message: check.Message}
	}

	wallet, err := s.Ledger.GetWallet(ctx, data.UserId)
	if err != nil {
		return nil, err
	}
	if wallet.Total().LessThan(data.Stake) {
		return nil, ErrInsufficientFunds
	}

	var (
		bet     models.Bet
		balance WalletBalance
	)
	err = ledger.WithRetry(ctx, func() error {
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			w, err := ledger.LockWallet(tx, data.UserId)
			if err != nil {
				return err
			}
			// Rolling totals again, now serialised by the wallet lock.
			check, err := s.Limits.ValidateStakeTx(tx, data.UserId, data.Stake)
			if err != nil {
				return fmt.Errorf("validate stake: %w", err)
			}
			if !check.Valid {
				return &LimitExceededError{Reason: check.Reason, Message: check.Message}
			}
			alloc, err := ledger.Allocate(data.Stake, w.RealBalance, w.BonusBalance)
			if err != nil {
				return err
			}

			bet = newSingleBet(data, odds, alloc, s.Now().UTC())
			if err := tx.Create(&bet).Error; err != nil {
				return fmt.Errorf("create bet: %w", err)
			}

			if _, err := ledger.Debit(tx, w, alloc, ledger.Entry{
				Type:          models.TrxBetPlaced,
				BalanceType:   models.BalanceReal,
				ReferenceType: models.ReferenceBet,
				ReferenceId:   bet.ID,
				Description:   fmt.Sprintf("Bet %s placed", bet.BetslipId),
			}); err != nil {
				return err
			}
			balance = balanceOf(w)
			return nil
		})
	})
	if err != nil {
		// Lost a race on the idempotency key: the winner's bet is the answer.
		if existing, lookupErr := s.findByIdempotencyKey(ctx, data.UserId, data.IdempotencyKey); lookupErr == nil && existing != nil {
			return s.duplicate(ctx, existing)
		}
		return nil, err
	}

	s.Log.Info("bet placed",
		zap.Int("bet_id", bet.ID),
		zap.Int("user_id", bet.UserId),
		zap.String("stake", bet.Stake.String()),
		zap.String("real_stake", bet.Metadata.RealStake.String()),
		zap.String("bonus_stake", bet.Metadata.BonusStake.String()),
	)
	s.publishPlaced(ctx, bet)

	return &PlaceBetResult{Bet: bet, Balance: balance}, nil
}

func newSingleBet(data PlaceBetDTO, odds *models.Odds, alloc ledger.Allocation, now time.Time) models.Bet {
	return models.Bet{
		UserId:       data.UserId,
		BetslipId:    common.GenerateBetslipId(),
		Stake:        data.Stake,
		TotalOdds:    odds.Value,
		PotentialWin: ledger.PotentialWin(data.Stake, odds.Value),
		ActualWin:    decimal.Zero,
		Status:       models.BetPending,
		Metadata:     ledger.NewBetMetadata(data.IdempotencyKey, alloc),
		IpAddress:    data.IpAddress,
		PlacedAt:     now,
		Selections: []models.BetSelection{{
			OddsId:     odds.ID,
			MatchId:    odds.MatchId,
			MarketCode: odds.MarketCode,
			OddsValue:  odds.Value,
			Selection:  odds.Selection,
			Handicap:   odds.Handicap,
			Result:     models.SelectionPending,
		}},
	}
}

// findByIdempotencyKey looks up a bet by its key. Keys are scoped to the
// user that sent them.
func (s *BetService) findByIdempotencyKey(ctx context.Context, userID int, key string) (*models.Bet, error) {
	var bet models.Bet
	err := s.DB.WithContext(ctx).Preload("Selections").
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

func (s *BetService) duplicate(ctx context.Context, bet *models.Bet) (*PlaceBetResult, error) {
	wallet, err := s.Ledger.GetWallet(ctx, bet.UserId)
	if err != nil {
		return nil, err
	}
	return &PlaceBetResult{Duplicate: true, Bet: *bet, Balance: balanceOf(wallet)}, nil
}

func (s *BetService) publishPlaced(ctx context.Context, bet models.Bet) {
	sel := bet.Selections[0]
	err := s.Events.PublishBetPlaced(ctx, events.BetPlaced{
		BetId:      bet.ID,
		BetslipId:  bet.BetslipId,
		UserId:     bet.UserId,
		MatchId:    sel.MatchId,
		OddsId:     sel.OddsId,
		Selection:  sel.Selection,
		Stake:      bet.Stake,
		RealStake:  bet.Metadata.RealStake,
		BonusStake: bet.Metadata.BonusStake,
		Odds:       bet.TotalOdds,
		PlacedAt:   bet.PlacedAt,
	})
	if err != nil {
		s.Log.Warn("publish bet_placed failed", zap.Int("bet_id", bet.ID), zap.Error(err))
	}
}

type BetFilterDTO struct {
	UserId    int
	Status    string
	MatchId   int
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// GetUserBets lists a user's bets, newest first.
func (s *BetService) GetUserBets(ctx context.Context, data BetFilterDTO) (common.PaginationResult, error) {
	page, limit, offset := common.NormalizePage(data.Page, data.Limit)

	query := s.DB.WithContext(ctx).Model(&models.Bet{}).Where("user_id = ?", data.UserId)
	if data.Status != "" {
		query = query.Where("status = ?", data.Status)
	}
	if data.MatchId > 0 {
		query = query.Where("id IN (?)", s.DB.Model(&models.BetSelection{}).Select("bet_id").Where("match_id = ?", data.MatchId))
	}
	if data.StartDate != nil {
		query = query.Where("placed_at >= ?", data.StartDate.UTC())
	}
	if data.EndDate != nil {
		query = query.Where("placed_at <= ?", data.EndDate.UTC())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return common.PaginationResult{}, err
	}

	var bets []models.Bet
	if err := query.Preload("Selections").
		Order("placed_at desc, id desc").
		Offset(offset).Limit(limit).
		Find(&bets).Error; err != nil {
		return common.PaginationResult{}, err
	}

	return common.PaginateResponse(bets, total, page, limit, "Bets fetched"), nil
}

// GetBetById returns a bet owned by userID.
func (s *BetService) GetBetById(ctx context.Context, userID, betID int) (*models.Bet, error) {
	var bet models.Bet
	err := s.DB.WithContext(ctx).Preload("Selections").
		Where("id = ? AND user_id = ?", betID, userID).
		First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bet, nil
}
