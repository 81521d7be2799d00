package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betting-service/internal/events"
	"betting-service/internal/ledger"
	"betting-service/internal/metrics"
	"betting-service/internal/models"
)

// errAlreadyResolved rolls back a unit of work whose selection was resolved
// by someone else first.
var errAlreadyResolved = errors.New("selection already resolved")

type SettlementService struct {
	DB      *gorm.DB
	Matches MatchReader
	Events  events.Publisher
	Log     *zap.Logger
	Now     func() time.Time
}

func NewSettlementService(db *gorm.DB, matches MatchReader, publisher events.Publisher, log *zap.Logger) *SettlementService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &SettlementService{
		DB:      db,
		Matches: matches,
		Events:  publisher,
		Log:     log,
		Now:     time.Now,
	}
}

// SettlementResult counts the selections a run moved out of pending and
// the ones that failed and stay pending for the next run.
type SettlementResult struct {
	MatchId int `json:"match_id"`
	Settled int `json:"settled"`
	Errors  int `json:"errors"`
}

// resolution is a bet that left pending in a committed transaction.
type resolution struct {
	bet    models.Bet
	refund decimal.Decimal
}

// SettleMatch grades every pending 1X2 selection of a finished match.
// Selections on other markets are left pending.
func (s *SettlementService) SettleMatch(ctx context.Context, matchID int) (SettlementResult, error) {
	result := SettlementResult{MatchId: matchID}

	match, err := s.Matches.GetMatch(ctx, matchID)
	if err != nil {
		return result, fmt.Errorf("load match %d: %w", matchID, err)
	}
	if match == nil {
		return result, ErrMatchNotFound
	}
	if !match.HasResult() {
		return result, ErrMatchNotFinished
	}

	pending, err := s.pendingSelections(ctx, matchID, models.MarketMatchWinner)
	if err != nil {
		return result, err
	}

	for _, sel := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := GradeSelection(sel.Selection, *match.HomeScore, *match.AwayScore)
		s.apply(ctx, &result, sel, outcome)
	}

	s.Log.Info("match settled",
		zap.Int("match_id", matchID),
		zap.Int("home_score", *match.HomeScore),
		zap.Int("away_score", *match.AwayScore),
		zap.Int("settled", result.Settled),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// VoidMatchBets voids every pending selection of a match and refunds the
// bets they belong to. The match status is not checked.
func (s *SettlementService) VoidMatchBets(ctx context.Context, matchID int) (SettlementResult, error) {
	result := SettlementResult{MatchId: matchID}

	match, err := s.Matches.GetMatch(ctx, matchID)
	if err != nil {
		return result, fmt.Errorf("load match %d: %w", matchID, err)
	}
	if match == nil {
		return result, ErrMatchNotFound
	}

	pending, err := s.pendingSelections(ctx, matchID, "")
	if err != nil {
		return result, err
	}

	for _, sel := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		s.apply(ctx, &result, sel, models.SelectionVoid)
	}

	s.Log.Info("match bets voided",
		zap.Int("match_id", matchID),
		zap.String("match_status", string(match.Status)),
		zap.Int("settled", result.Settled),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// VoidBet is the admin path: it voids one pending bet and refunds its
// stake whatever the state of its match.
func (s *SettlementService) VoidBet(ctx context.Context, betID int) (*models.Bet, error) {
	var resolved *resolution
	err := ledger.WithRetry(ctx, func() error {
		resolved = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := s.voidBet(tx, betID, s.Now().UTC())
			if err != nil {
				return err
			}
			if r == nil {
				return ErrNotPending
			}
			resolved = r
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("bet voided by admin", zap.Int("bet_id", betID), zap.String("refund", resolved.refund.String()))
	s.afterResolve(ctx, resolved)
	return &resolved.bet, nil
}

func (s *SettlementService) apply(ctx context.Context, result *SettlementResult, sel models.BetSelection, outcome models.SelectionResult) {
	changed, err := s.resolveSelection(ctx, sel, outcome)
	if err != nil {
		result.Errors++
		metrics.SettlementErrors.Inc()
		s.Log.Error("failed to settle selection",
			zap.Int("selection_id", sel.ID),
			zap.Int("bet_id", sel.BetId),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return
	}
	if changed {
		result.Settled++
	}
}

func (s *SettlementService) pendingSelections(ctx context.Context, matchID int, market string) ([]models.BetSelection, error) {
	query := s.DB.WithContext(ctx).
		Where("match_id = ? AND result = ?", matchID, models.SelectionPending)
	if market != "" {
		query = query.Where("market_code = ?", market)
	}
	var selections []models.BetSelection
	if err := query.Order("id").Find(&selections).Error; err != nil {
		return nil, fmt.Errorf("load pending selections: %w", err)
	}
	return selections, nil
}

// resolveSelection moves one selection out of pending and, in the same
// transaction, resolves its bet when that was the last pending leg. It
// reports false when another settler got there first.
func (s *SettlementService) resolveSelection(ctx context.Context, sel models.BetSelection, outcome models.SelectionResult) (bool, error) {
	var resolved *resolution
	err := ledger.WithRetry(ctx, func() error {
		resolved = nil
		return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := s.Now().UTC()
			res := tx.Model(&models.BetSelection{}).
				Where("id = ? AND result = ?", sel.ID, models.SelectionPending).
				Updates(map[string]interface{}{"result": outcome, "settled_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errAlreadyResolved
			}

			var (
				r   *resolution
				err error
			)
			if outcome == models.SelectionVoid {
				r, err = s.voidBet(tx, sel.BetId, now)
			} else {
				r, err = s.settleBet(tx, sel.BetId, now)
			}
			if err != nil {
				return err
			}
			resolved = r
			return nil
		})
	})
	if errors.Is(err, errAlreadyResolved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	metrics.SelectionsSettled.WithLabelValues(string(outcome)).Inc()
	if resolved != nil {
		s.afterResolve(ctx, resolved)
	}
	return true, nil
}

// settleBet resolves a pending bet once none of its selections is pending.
func (s *SettlementService) settleBet(tx *gorm.DB, betID int, now time.Time) (*resolution, error) {
	bet, err := loadBet(tx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Status != models.BetPending {
		return nil, nil
	}
	outcome, ok := ResolveBet(*bet)
	if !ok {
		return nil, nil
	}
	if outcome.Status == models.BetVoid {
		return refundBet(tx, bet, now)
	}

	changed, err := transitionBet(tx, bet, outcome.Status, outcome.Payout, now)
	if err != nil || !changed {
		return nil, err
	}
	if outcome.Status == models.BetWon && outcome.Payout.IsPositive() {
		w, err := ledger.LockWallet(tx, bet.UserId)
		if err != nil {
			return nil, err
		}
		if _, err := ledger.Credit(tx, w, ledger.Winnings(outcome.Payout), ledger.Entry{
			Type:          models.TrxBetWon,
			BalanceType:   models.BalanceReal,
			ReferenceType: models.ReferenceBet,
			ReferenceId:   bet.ID,
			Description:   fmt.Sprintf("Bet %s won", bet.BetslipId),
		}); err != nil {
			return nil, err
		}
	}
	return &resolution{bet: *bet, refund: decimal.Zero}, nil
}

// voidBet voids every pending selection of a pending bet and refunds it.
// A nil resolution means the bet had already left pending.
func (s *SettlementService) voidBet(tx *gorm.DB, betID int, now time.Time) (*resolution, error) {
	bet, err := loadBet(tx, betID)
	if err != nil {
		return nil, err
	}
	if bet.Status != models.BetPending {
		return nil, nil
	}

	if err := tx.Model(&models.BetSelection{}).
		Where("bet_id = ? AND result = ?", bet.ID, models.SelectionPending).
		Updates(map[string]interface{}{"result": models.SelectionVoid, "settled_at": now}).Error; err != nil {
		return nil, err
	}
	for i := range bet.Selections {
		if bet.Selections[i].Result == models.SelectionPending {
			bet.Selections[i].Result = models.SelectionVoid
			bet.Selections[i].SettledAt = &now
		}
	}
	return refundBet(tx, bet, now)
}

// refundBet returns the stake to the buckets it was drawn from.
func refundBet(tx *gorm.DB, bet *models.Bet, now time.Time) (*resolution, error) {
	changed, err := transitionBet(tx, bet, models.BetVoid, decimal.Zero, now)
	if err != nil || !changed {
		return nil, err
	}

	refund := ledger.Reverse(bet.Metadata.RealStake, bet.Metadata.BonusStake)
	w, err := ledger.LockWallet(tx, bet.UserId)
	if err != nil {
		return nil, err
	}
	if _, err := ledger.Credit(tx, w, refund, ledger.Entry{
		Type:          models.TrxBetRefund,
		BalanceType:   models.BalanceReal,
		ReferenceType: models.ReferenceBet,
		ReferenceId:   bet.ID,
		Description:   fmt.Sprintf("Bet %s voided", bet.BetslipId),
	}); err != nil {
		return nil, err
	}
	return &resolution{bet: *bet, refund: refund.Total()}, nil
}

func loadBet(tx *gorm.DB, betID int) (*models.Bet, error) {
	var bet models.Bet
	err := tx.Preload("Selections", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).First(&bet, betID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

// transitionBet moves a bet out of pending. Zero rows affected means a
// concurrent settler already did.
func transitionBet(tx *gorm.DB, bet *models.Bet, status models.BetStatus, payout decimal.Decimal, now time.Time) (bool, error) {
	res := tx.Model(&models.Bet{}).
		Where("id = ? AND status = ?", bet.ID, models.BetPending).
		Updates(map[string]interface{}{
			"status":     status,
			"actual_win": payout,
			"settled_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	bet.Status = status
	bet.ActualWin = payout
	bet.SettledAt = &now
	return true, nil
}

func (s *SettlementService) afterResolve(ctx context.Context, r *resolution) {
	metrics.BetsResolved.WithLabelValues(string(r.bet.Status)).Inc()
	s.Log.Info("bet resolved",
		zap.Int("bet_id", r.bet.ID),
		zap.Int("user_id", r.bet.UserId),
		zap.String("status", string(r.bet.Status)),
		zap.String("payout", r.bet.ActualWin.String()),
	)

	settledAt := s.Now().UTC()
	if r.bet.SettledAt != nil {
		settledAt = *r.bet.SettledAt
	}
	err := s.Events.PublishBetSettled(ctx, events.BetSettled{
		BetId:     r.bet.ID,
		UserId:    r.bet.UserId,
		Status:    string(r.bet.Status),
		Payout:    r.bet.ActualWin,
		Refund:    r.refund,
		SettledAt: settledAt,
	})
	if err != nil {
		s.Log.Warn("publish bet_settled failed", zap.Int("bet_id", r.bet.ID), zap.Error(err))
	}
}
