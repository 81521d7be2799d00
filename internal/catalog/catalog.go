// Package catalog reads the match, odds and limits rows that other services
// own. Lookups return (nil, nil) when a row does not exist.
package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"betting-service/internal/models"
)

type Catalog struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Catalog {
	return &Catalog{DB: db}
}

// GetOdds loads an odds row together with its match.
func (c *Catalog) GetOdds(ctx context.Context, id int) (*models.Odds, error) {
	var odds models.Odds
	err := c.DB.WithContext(ctx).Preload("Match").First(&odds, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &odds, nil
}

func (c *Catalog) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	var match models.Match
	err := c.DB.WithContext(ctx).First(&match, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

type SettleableMatch struct {
	MatchId int
	Status  models.MatchStatus
}

// FindSettleableMatches returns matches that reached a terminal status and
// still have pending selections the engine can act on: any market when the
// match was cancelled or postponed, the 1X2 market when it finished.
func (c *Catalog) FindSettleableMatches(ctx context.Context) ([]SettleableMatch, error) {
	var out []SettleableMatch
	err := c.DB.WithContext(ctx).
		Table("matches AS m").
		Select("DISTINCT m.id AS match_id, m.status AS status").
		Joins("JOIN bet_selections AS s ON s.match_id = m.id").
		Where("s.result = ?", models.SelectionPending).
		Where(
			c.DB.Where("m.status = ? AND s.market_code = ?", models.MatchFinished, models.MarketMatchWinner).
				Or("m.status IN ?", []models.MatchStatus{models.MatchCancelled, models.MatchPostponed}),
		).
		Order("m.id").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
