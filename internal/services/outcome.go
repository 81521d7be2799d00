package services

import (
	"github.com/shopspring/decimal"

	"betting-service/internal/ledger"
	"betting-service/internal/models"
)

// MatchWinner maps a final score to the 1X2 label that won.
func MatchWinner(homeScore, awayScore int) string {
	switch {
	case homeScore > awayScore:
		return models.LabelHome
	case homeScore < awayScore:
		return models.LabelAway
	default:
		return models.LabelDraw
	}
}

// GradeSelection returns the result of a 1X2 selection for a final score.
func GradeSelection(label string, homeScore, awayScore int) models.SelectionResult {
	if label == MatchWinner(homeScore, awayScore) {
		return models.SelectionWon
	}
	return models.SelectionLost
}

type BetOutcome struct {
	Status models.BetStatus
	Payout decimal.Decimal
}

// ResolveBet derives a bet's final status from its selections. ok is false
// while any selection is still pending. A lost leg loses the bet, all void
// legs void it, and void legs otherwise drop out of the payout.
func ResolveBet(bet models.Bet) (BetOutcome, bool) {
	if len(bet.Selections) == 0 {
		return BetOutcome{}, false
	}

	anyLost, anyVoid, allVoid := false, false, true
	wonOdds := decimal.NewFromInt(1)
	for _, sel := range bet.Selections {
		switch sel.Result {
		case models.SelectionWon:
			allVoid = false
			wonOdds = wonOdds.Mul(sel.OddsValue)
		case models.SelectionLost:
			allVoid = false
			anyLost = true
		case models.SelectionVoid:
			anyVoid = true
		default:
			return BetOutcome{}, false
		}
	}

	switch {
	case anyLost:
		return BetOutcome{Status: models.BetLost, Payout: decimal.Zero}, true
	case allVoid:
		return BetOutcome{Status: models.BetVoid, Payout: decimal.Zero}, true
	case anyVoid:
		return BetOutcome{Status: models.BetWon, Payout: ledger.PotentialWin(bet.Stake, wonOdds)}, true
	default:
		return BetOutcome{Status: models.BetWon, Payout: bet.PotentialWin}, true
	}
}
