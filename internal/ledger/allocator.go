package ledger

import (
	"github.com/shopspring/decimal"

	"betting-service/internal/models"
)

// MoneyPlaces is the number of minor-unit decimal places money carries.
const MoneyPlaces = 2

// Allocation is how an amount splits across the two wallet buckets.
type Allocation struct {
	Real  decimal.Decimal `json:"real"`
	Bonus decimal.Decimal `json:"bonus"`
}

func (a Allocation) Total() decimal.Decimal {
	return a.Real.Add(a.Bonus)
}

// ValidateAmount rejects zero, negative and sub-minor-unit amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(MoneyPlaces)) {
		return ErrInvalidAmount
	}
	return nil
}

// Allocate draws a stake from real first and takes the remainder from
// bonus.
func Allocate(stake, real, bonus decimal.Decimal) (Allocation, error) {
	if err := ValidateAmount(stake); err != nil {
		return Allocation{}, err
	}
	real = decimal.Max(real, decimal.Zero)
	bonus = decimal.Max(bonus, decimal.Zero)
	if real.Add(bonus).LessThan(stake) {
		return Allocation{}, ErrInsufficientFunds
	}

	fromReal := decimal.Min(stake, real)
	return Allocation{Real: fromReal, Bonus: stake.Sub(fromReal)}, nil
}

// Reverse returns the split a refund must credit: exactly what was taken.
func Reverse(realStake, bonusStake decimal.Decimal) Allocation {
	return Allocation{Real: realStake, Bonus: bonusStake}
}

// Winnings always land in the real bucket.
func Winnings(amount decimal.Decimal) Allocation {
	return Allocation{Real: amount, Bonus: decimal.Zero}
}

// NewBetMetadata freezes the funding split of a bet.
func NewBetMetadata(idempotencyKey string, a Allocation) models.BetMetadata {
	return models.BetMetadata{
		IdempotencyKey: idempotencyKey,
		RealStake:      a.Real,
		BonusStake:     a.Bonus,
	}
}

// PotentialWin is stake times odds rounded to minor units.
func PotentialWin(stake, odds decimal.Decimal) decimal.Decimal {
	return stake.Mul(odds).Round(MoneyPlaces)
}
