package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
	BetVoid    BetStatus = "void"
)

// BetMetadata records how the stake was funded. It is built by
// ledger.NewBetMetadata so RealStake+BonusStake always equals the stake.
type BetMetadata struct {
	IdempotencyKey string          `gorm:"column:idempotency_key;size:128;not null;uniqueIndex:idx_bet_user_idempotency,priority:2" json:"idempotency_key"`
	RealStake      decimal.Decimal `gorm:"column:real_stake;type:decimal(20,2);not null;default:0.00" json:"real_stake"`
	BonusStake     decimal.Decimal `gorm:"column:bonus_stake;type:decimal(20,2);not null;default:0.00" json:"bonus_stake"`
}

type Bet struct {
	ID           int             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId       int             `gorm:"column:user_id;not null;index:idx_bet_user_placed;uniqueIndex:idx_bet_user_idempotency,priority:1" json:"user_id"`
	BetslipId    string          `gorm:"column:betslip_id;size:20;not null;index" json:"betslip_id"`
	Stake        decimal.Decimal `gorm:"column:stake;type:decimal(20,2);not null" json:"stake"`
	TotalOdds    decimal.Decimal `gorm:"column:total_odds;type:decimal(10,3);not null" json:"total_odds"`
	PotentialWin decimal.Decimal `gorm:"column:potential_win;type:decimal(20,2);not null" json:"potential_win"`
	ActualWin    decimal.Decimal `gorm:"column:actual_win;type:decimal(20,2);not null;default:0.00" json:"actual_win"`
	Status       BetStatus       `gorm:"column:status;size:20;not null;default:pending;index" json:"status"`
	Metadata     BetMetadata     `gorm:"embedded" json:"metadata"`
	IpAddress    string          `gorm:"column:ip_address;size:45" json:"ip_address"`
	PlacedAt     time.Time       `gorm:"column:placed_at;not null;index:idx_bet_user_placed" json:"placed_at"`
	SettledAt    *time.Time      `gorm:"column:settled_at" json:"settled_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Selections   []BetSelection  `gorm:"foreignKey:BetId" json:"selections,omitempty"`
}

func (Bet) TableName() string {
	return "bets"
}

type SelectionResult string

const (
	SelectionPending SelectionResult = "pending"
	SelectionWon     SelectionResult = "won"
	SelectionLost    SelectionResult = "lost"
	SelectionVoid    SelectionResult = "void"
)

// BetSelection is one leg of a bet. Odds, market and label are copied from
// the odds row at placement and never re-read.
type BetSelection struct {
	ID         int             `gorm:"primaryKey;autoIncrement" json:"id"`
	BetId      int             `gorm:"column:bet_id;not null;index" json:"bet_id"`
	OddsId     int             `gorm:"column:odds_id;not null;index" json:"odds_id"`
	MatchId    int             `gorm:"column:match_id;not null;index:idx_selection_match_result" json:"match_id"`
	MarketCode string          `gorm:"column:market_code;size:50;not null" json:"market_code"`
	OddsValue  decimal.Decimal `gorm:"column:odds_value;type:decimal(10,3);not null" json:"odds_value"`
	Selection  string          `gorm:"column:selection;size:50;not null" json:"selection"`
	Handicap   string          `gorm:"column:handicap;size:20" json:"handicap"`
	Result     SelectionResult `gorm:"column:result;size:20;not null;default:pending;index:idx_selection_match_result" json:"result"`
	SettledAt  *time.Time      `gorm:"column:settled_at" json:"settled_at"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (BetSelection) TableName() string {
	return "bet_selections"
}
