// Package events publishes bet lifecycle notifications after the ledger has
// committed. Consumers (notifications, reporting) must tolerate duplicates.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type BetPlaced struct {
	EventId    string          `json:"event_id"`
	BetId      int             `json:"bet_id"`
	BetslipId  string          `json:"betslip_id"`
	UserId     int             `json:"user_id"`
	MatchId    int             `json:"match_id"`
	OddsId     int             `json:"odds_id"`
	Selection  string          `json:"selection"`
	Stake      decimal.Decimal `json:"stake"`
	RealStake  decimal.Decimal `json:"real_stake"`
	BonusStake decimal.Decimal `json:"bonus_stake"`
	Odds       decimal.Decimal `json:"odds"`
	PlacedAt   time.Time       `json:"placed_at"`
}

type BetSettled struct {
	EventId   string          `json:"event_id"`
	BetId     int             `json:"bet_id"`
	UserId    int             `json:"user_id"`
	Status    string          `json:"status"`
	Payout    decimal.Decimal `json:"payout"`
	Refund    decimal.Decimal `json:"refund"`
	SettledAt time.Time       `json:"settled_at"`
}

type Publisher interface {
	PublishBetPlaced(ctx context.Context, e BetPlaced) error
	PublishBetSettled(ctx context.Context, e BetSettled) error
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishBetPlaced(context.Context, BetPlaced) error   { return nil }
func (NopPublisher) PublishBetSettled(context.Context, BetSettled) error { return nil }
