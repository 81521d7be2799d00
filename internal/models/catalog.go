package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// The rows below are owned by the fixtures and odds feed services. This
// service only reads them.

type MatchStatus string

const (
	MatchScheduled MatchStatus = "scheduled"
	MatchLive      MatchStatus = "live"
	MatchFinished  MatchStatus = "finished"
	MatchCancelled MatchStatus = "cancelled"
	MatchPostponed MatchStatus = "postponed"
)

type Match struct {
	ID             int         `gorm:"primaryKey;autoIncrement" json:"id"`
	HomeTeam       string      `gorm:"column:home_team;size:255;not null" json:"home_team"`
	AwayTeam       string      `gorm:"column:away_team;size:255;not null" json:"away_team"`
	Status         MatchStatus `gorm:"column:status;size:20;not null;default:scheduled;index" json:"status"`
	BettingEnabled bool        `gorm:"column:betting_enabled;not null;default:true" json:"betting_enabled"`
	HomeScore      *int        `gorm:"column:home_score" json:"home_score"`
	AwayScore      *int        `gorm:"column:away_score" json:"away_score"`
	StartTime      time.Time   `gorm:"column:start_time" json:"start_time"`
	CreatedAt      time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Match) TableName() string {
	return "matches"
}

// Bettable reports whether new bets may be accepted on the match.
func (m Match) Bettable() bool {
	return m.BettingEnabled && (m.Status == MatchScheduled || m.Status == MatchLive)
}

// HasResult reports whether the match is finished with a full score.
func (m Match) HasResult() bool {
	return m.Status == MatchFinished && m.HomeScore != nil && m.AwayScore != nil
}

const (
	OddsActive    = "active"
	OddsSuspended = "suspended"
)

// MarketMatchWinner is the only market the settlement engine grades.
const MarketMatchWinner = "1X2"

const (
	LabelHome = "Home"
	LabelDraw = "Draw"
	LabelAway = "Away"
)

type Odds struct {
	ID         int             `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchId    int             `gorm:"column:match_id;not null;index" json:"match_id"`
	MarketCode string          `gorm:"column:market_code;size:50;not null" json:"market_code"`
	Selection  string          `gorm:"column:selection;size:50;not null" json:"selection"`
	Handicap   string          `gorm:"column:handicap;size:20" json:"handicap"`
	Value      decimal.Decimal `gorm:"column:value;type:decimal(10,3);not null" json:"value"`
	Status     string          `gorm:"column:status;size:20;not null;default:active" json:"status"`
	Match      *Match          `gorm:"foreignKey:MatchId" json:"match,omitempty"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Odds) TableName() string {
	return "odds"
}

// BettingLimit applies to a user (UserId set), to every player of an agent
// (AgentId set, UserId zero) or to everyone (both zero). Zero amounts mean
// no limit.
type BettingLimit struct {
	ID           int             `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId       int             `gorm:"column:user_id;not null;default:0;index" json:"user_id"`
	AgentId      int             `gorm:"column:agent_id;not null;default:0;index" json:"agent_id"`
	MinStake     decimal.Decimal `gorm:"column:min_stake;type:decimal(20,2);not null;default:0.00" json:"min_stake"`
	MaxStake     decimal.Decimal `gorm:"column:max_stake;type:decimal(20,2);not null;default:0.00" json:"max_stake"`
	DailyLimit   decimal.Decimal `gorm:"column:daily_limit;type:decimal(20,2);not null;default:0.00" json:"daily_limit"`
	WeeklyLimit  decimal.Decimal `gorm:"column:weekly_limit;type:decimal(20,2);not null;default:0.00" json:"weekly_limit"`
	MonthlyLimit decimal.Decimal `gorm:"column:monthly_limit;type:decimal(20,2);not null;default:0.00" json:"monthly_limit"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (BettingLimit) TableName() string {
	return "betting_limits"
}

type AgentUser struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentId   int       `gorm:"column:agent_id;not null;index" json:"agent_id"`
	UserId    int       `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AgentUser) TableName() string {
	return "agent_users"
}
