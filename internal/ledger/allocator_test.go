package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name      string
		stake     string
		real      string
		bonus     string
		wantReal  string
		wantBonus string
		wantErr   error
	}{
		{name: "real covers stake", stake: "500", real: "1000", bonus: "200", wantReal: "500", wantBonus: "0"},
		{name: "real exactly equal", stake: "1000", real: "1000", bonus: "0", wantReal: "1000", wantBonus: "0"},
		{name: "bonus spillover", stake: "50000", real: "30000", bonus: "50000", wantReal: "30000", wantBonus: "20000"},
		{name: "bonus only", stake: "250.50", real: "0", bonus: "300", wantReal: "0", wantBonus: "250.50"},
		{name: "uses every last unit", stake: "15000", real: "10000", bonus: "5000", wantReal: "10000", wantBonus: "5000"},
		{name: "insufficient funds", stake: "20000", real: "10000", bonus: "5000", wantErr: ErrInsufficientFunds},
		{name: "zero stake", stake: "0", real: "100", bonus: "0", wantErr: ErrInvalidAmount},
		{name: "negative stake", stake: "-5", real: "100", bonus: "0", wantErr: ErrInvalidAmount},
		{name: "sub minor unit stake", stake: "10.005", real: "100", bonus: "0", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Allocate(d(tt.stake), d(tt.real), d(tt.bonus))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, a.Real.Equal(d(tt.wantReal)), "real = %s", a.Real)
			assert.True(t, a.Bonus.Equal(d(tt.wantBonus)), "bonus = %s", a.Bonus)
			assert.True(t, a.Total().Equal(d(tt.stake)))
		})
	}
}

func TestReverseReturnsStoredSplit(t *testing.T) {
	a := Reverse(d("40000"), d("10000"))
	assert.True(t, a.Real.Equal(d("40000")))
	assert.True(t, a.Bonus.Equal(d("10000")))
	assert.True(t, a.Total().Equal(d("50000")))
}

func TestWinningsGoToReal(t *testing.T) {
	a := Winnings(d("185.50"))
	assert.True(t, a.Real.Equal(d("185.50")))
	assert.True(t, a.Bonus.IsZero())
}

func TestPotentialWin(t *testing.T) {
	assert.Equal(t, "185.5", PotentialWin(d("100"), d("1.855")).String())
	assert.Equal(t, "44.43", PotentialWin(d("33.33"), d("1.333")).String())
	assert.Equal(t, "55500", PotentialWin(d("30000"), d("1.85")).String())
}

func TestNewBetMetadata(t *testing.T) {
	a, err := Allocate(d("50000"), d("30000"), d("50000"))
	require.NoError(t, err)

	meta := NewBetMetadata("key-1", a)
	assert.Equal(t, "key-1", meta.IdempotencyKey)
	assert.True(t, meta.RealStake.Add(meta.BonusStake).Equal(d("50000")))
}
