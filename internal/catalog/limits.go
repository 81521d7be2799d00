package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"betting-service/internal/models"
)

const (
	LimitMin     = "min"
	LimitMax     = "max"
	LimitDaily   = "daily"
	LimitWeekly  = "weekly"
	LimitMonthly = "monthly"
)

type LimitCheck struct {
	Valid   bool
	Reason  string
	Message string
}

// Limits resolves the betting limits of a user: the user's own row, then
// the row of the agent the user belongs to, then the global default.
type Limits struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewLimits(db *gorm.DB) *Limits {
	return &Limits{DB: db, Now: time.Now}
}

func (l *Limits) Resolve(ctx context.Context, userID int) (*models.BettingLimit, error) {
	db := l.DB.WithContext(ctx)

	var limit models.BettingLimit
	err := db.Where("user_id = ?", userID).First(&limit).Error
	if err == nil {
		return &limit, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var link models.AgentUser
	err = db.Where("user_id = ?", userID).First(&link).Error
	if err == nil {
		err = db.Where("agent_id = ? AND user_id = 0", link.AgentId).First(&limit).Error
		if err == nil {
			return &limit, nil
		}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Where("user_id = 0 AND agent_id = 0").First(&limit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &limit, nil
}

// ValidateStake checks amount against per-bet bounds and the rolling
// 24h, 7d and 30d totals of the user's non-void stakes.
func (l *Limits) ValidateStake(ctx context.Context, userID int, amount decimal.Decimal) (LimitCheck, error) {
	limit, err := l.Resolve(ctx, userID)
	if err != nil {
		return LimitCheck{}, err
	}
	if limit == nil {
		return LimitCheck{Valid: true}, nil
	}

	if limit.MinStake.IsPositive() && amount.LessThan(limit.MinStake) {
		return rejected(LimitMin, "stake is below the minimum of %s", limit.MinStake), nil
	}
	if limit.MaxStake.IsPositive() && amount.GreaterThan(limit.MaxStake) {
		return rejected(LimitMax, "stake is above the maximum of %s", limit.MaxStake), nil
	}

	now := l.Now().UTC()
	windows := []struct {
		reason string
		cap    decimal.Decimal
		since  time.Time
	}{
		{LimitDaily, limit.DailyLimit, now.Add(-24 * time.Hour)},
		{LimitWeekly, limit.WeeklyLimit, now.AddDate(0, 0, -7)},
		{LimitMonthly, limit.MonthlyLimit, now.AddDate(0, 0, -30)},
	}
	for _, w := range windows {
		if !w.cap.IsPositive() {
			continue
		}
		staked, err := l.stakedSince(ctx, userID, w.since)
		if err != nil {
			return LimitCheck{}, err
		}
		if staked.Add(amount).GreaterThan(w.cap) {
			return rejected(w.reason, "stake exceeds the %s limit of %s", w.reason, w.cap), nil
		}
	}
	return LimitCheck{Valid: true}, nil
}

// ValidateStakeTx runs ValidateStake on tx. Called after the wallet row is
// locked, it sees every stake committed before the lock was granted.
func (l *Limits) ValidateStakeTx(tx *gorm.DB, userID int, amount decimal.Decimal) (LimitCheck, error) {
	scoped := &Limits{DB: tx, Now: l.Now}
	return scoped.ValidateStake(tx.Statement.Context, userID, amount)
}

func (l *Limits) stakedSince(ctx context.Context, userID int, since time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := l.DB.WithContext(ctx).Model(&models.Bet{}).
		Select("COALESCE(SUM(stake), 0) AS total").
		Where("user_id = ? AND status <> ? AND placed_at >= ?", userID, models.BetVoid, since).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum stakes: %w", err)
	}
	return row.Total, nil
}

func rejected(reason, format string, args ...interface{}) LimitCheck {
	return LimitCheck{Valid: false, Reason: reason, Message: fmt.Sprintf(format, args...)}
}
