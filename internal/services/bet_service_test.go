package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"betting-service/internal/catalog"
	"betting-service/internal/ledger"
	"betting-service/internal/models"
	"betting-service/internal/testutil"
)

func placeDTO(userID, oddsID int, stake, key string) PlaceBetDTO {
	return PlaceBetDTO{
		UserId:         userID,
		OddsId:         oddsID,
		Stake:          testutil.Money(stake),
		IdempotencyKey: key,
		IpAddress:      "10.0.0.1",
	}
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "10000", "5000")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "1.85", "3.40", "4.20")

	_, err := env.bets.PlaceBet(context.Background(), placeDTO(1, odds[models.LabelHome].ID, "20000", "k-1"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, KindPolicyViolation, Kind(err))

	var bets int64
	env.db.Model(&models.Bet{}).Count(&bets)
	assert.Zero(t, bets)
	assert.Empty(t, env.transactions(t, 1, models.TrxBetPlaced))
	env.assertBalances(t, 1, "10000", "5000")
}

func TestPlaceBetBonusSpillover(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "30000", "50000")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "1.85", "3.40", "4.20")

	res, err := env.bets.PlaceBet(context.Background(), placeDTO(1, odds[models.LabelHome].ID, "50000", "k-1"))
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	bet := res.Bet
	assert.Equal(t, models.BetPending, bet.Status)
	assert.True(t, bet.Metadata.RealStake.Equal(testutil.Money("30000")))
	assert.True(t, bet.Metadata.BonusStake.Equal(testutil.Money("20000")))
	assert.True(t, bet.PotentialWin.Equal(testutil.Money("92500")))
	assert.True(t, bet.TotalOdds.Equal(testutil.Money("1.85")))
	require.Len(t, bet.Selections, 1)
	assert.Equal(t, models.SelectionPending, bet.Selections[0].Result)
	assert.Equal(t, models.MarketMatchWinner, bet.Selections[0].MarketCode)
	assert.Equal(t, models.LabelHome, bet.Selections[0].Selection)

	assert.True(t, res.Balance.RealBalance.IsZero())
	assert.True(t, res.Balance.BonusBalance.Equal(testutil.Money("30000")))
	env.assertBalances(t, 1, "0", "30000")

	placed := env.transactions(t, 1, models.TrxBetPlaced)
	require.Len(t, placed, 1)
	assert.True(t, placed[0].Amount.Equal(testutil.Money("50000")))
	assert.True(t, placed[0].BalanceBefore.Equal(testutil.Money("80000")))
	assert.True(t, placed[0].BalanceAfter.Equal(testutil.Money("30000")))
	assert.Equal(t, models.BalanceReal, placed[0].BalanceType)
	assert.Equal(t, models.ReferenceBet, placed[0].ReferenceType)
	assert.Equal(t, bet.ID, placed[0].ReferenceId)

	require.Len(t, env.events.placed, 1)
	assert.Equal(t, bet.ID, env.events.placed[0].BetId)
	env.assertReconciled(t, 1)
}

func TestPlaceBetIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "1000", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchLive)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.10", "3.00", "3.50")
	ctx := context.Background()

	first, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelAway].ID, "100", "same-key"))
	require.NoError(t, err)

	second, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelAway].ID, "100", "same-key"))
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Bet.ID, second.Bet.ID)
	assert.True(t, second.Balance.RealBalance.Equal(testutil.Money("900")))

	assert.Len(t, env.transactions(t, 1, models.TrxBetPlaced), 1)
	assert.Len(t, env.events.placed, 1)
	env.assertBalances(t, 1, "900", "0")
}

func TestIdempotencyKeyIsPerUser(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "1000", "200")
	env.fund(t, 2, "500", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")
	ctx := context.Background()

	first, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "100", "shared-key"))
	require.NoError(t, err)

	second, err := env.bets.PlaceBet(ctx, placeDTO(2, odds[models.LabelAway].ID, "50", "shared-key"))
	require.NoError(t, err)
	assert.False(t, second.Duplicate)
	assert.NotEqual(t, first.Bet.ID, second.Bet.ID)
	assert.Equal(t, 2, second.Bet.UserId)
	assert.True(t, second.Balance.RealBalance.Equal(testutil.Money("450")))
	assert.True(t, second.Balance.BonusBalance.IsZero())

	env.assertBalances(t, 1, "900", "200")
	env.assertBalances(t, 2, "450", "0")
	assert.Len(t, env.transactions(t, 2, models.TrxBetPlaced), 1)

	again, err := env.bets.PlaceBet(ctx, placeDTO(2, odds[models.LabelAway].ID, "50", "shared-key"))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, second.Bet.ID, again.Bet.ID)
	env.assertBalances(t, 2, "450", "0")
}

func TestPlaceBetRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "1000", "0")

	open := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, open.ID, "1.50", "3.00", "5.00")
	require.NoError(t, env.db.Model(&models.Odds{}).Where("id = ?", odds[models.LabelDraw].ID).Update("status", models.OddsSuspended).Error)

	finished := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	finishedOdds := testutil.SeedMatchOdds(t, env.db, finished.ID, "1.50", "3.00", "5.00")
	testutil.FinishMatch(t, env.db, finished.ID, 1, 0)

	closed := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	closedOdds := testutil.SeedMatchOdds(t, env.db, closed.ID, "1.50", "3.00", "5.00")
	require.NoError(t, env.db.Model(&models.Match{}).Where("id = ?", closed.ID).Update("betting_enabled", false).Error)

	require.NoError(t, env.db.Create(&models.BettingLimit{UserId: 1, MaxStake: testutil.Money("500")}).Error)

	home := odds[models.LabelHome].ID
	tests := []struct {
		name string
		dto  PlaceBetDTO
		want error
	}{
		{"missing key", placeDTO(1, home, "10", ""), ErrInvalidRequest},
		{"bad ip", PlaceBetDTO{UserId: 1, OddsId: home, Stake: testutil.Money("10"), IdempotencyKey: "ip", IpAddress: "not-an-ip"}, ErrInvalidRequest},
		{"unknown odds", placeDTO(1, 9999, "10", "k-odds"), ErrOddsNotFound},
		{"suspended odds", placeDTO(1, odds[models.LabelDraw].ID, "10", "k-susp"), ErrOddsSuspended},
		{"finished match", placeDTO(1, finishedOdds[models.LabelHome].ID, "10", "k-fin"), ErrMatchNotBettable},
		{"betting disabled", placeDTO(1, closedOdds[models.LabelHome].ID, "10", "k-closed"), ErrMatchNotBettable},
		{"zero stake", placeDTO(1, home, "0", "k-zero"), ErrInvalidAmount},
		{"fractional minor unit", placeDTO(1, home, "10.001", "k-frac"), ErrInvalidAmount},
		{"no wallet", placeDTO(2, home, "10", "k-wallet"), ErrWalletNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.bets.PlaceBet(ctx, tt.dto)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := env.bets.PlaceBet(ctx, placeDTO(1, home, "600", "k-limit"))
	var limitErr *LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, catalog.LimitMax, limitErr.Reason)
	assert.Equal(t, KindPolicyViolation, Kind(err))

	env.assertBalances(t, 1, "1000", "0")
}

// staleLimits passes the early check unconditionally, like a check that ran
// before a concurrent bet committed. Only the in-transaction check counts.
type staleLimits struct {
	*catalog.Limits
}

func (staleLimits) ValidateStake(context.Context, int, decimal.Decimal) (catalog.LimitCheck, error) {
	return catalog.LimitCheck{Valid: true}, nil
}

func TestDailyLimitRecheckedUnderWalletLock(t *testing.T) {
	env := newTestEnv(t)
	env.bets.Limits = staleLimits{catalog.NewLimits(env.db)}
	env.fund(t, 1, "1000", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")
	require.NoError(t, env.db.Create(&models.BettingLimit{UserId: 1, DailyLimit: testutil.Money("100")}).Error)
	ctx := context.Background()

	_, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "80", "daily-1"))
	require.NoError(t, err)

	_, err = env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "30", "daily-2"))
	var limitErr *LimitExceededError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, catalog.LimitDaily, limitErr.Reason)

	var bets int64
	env.db.Model(&models.Bet{}).Count(&bets)
	assert.EqualValues(t, 1, bets)
	assert.Len(t, env.transactions(t, 1, models.TrxBetPlaced), 1)
	env.assertBalances(t, 1, "920", "0")
}

// bumpWalletVersion moves the wallet version under a running placement,
// between LockWallet and the guarded update, the first times wallets is
// updated. The bump shares the placement's transaction so it rolls back
// with it.
func bumpWalletVersion(t *testing.T, db *gorm.DB, times int) *int {
	t.Helper()
	fired := 0
	err := db.Callback().Update().Before("gorm:update").Register("test:bump_wallet_version", func(tx *gorm.DB) {
		if tx.Statement.Table != "wallets" || fired >= times {
			return
		}
		fired++
		tx.Session(&gorm.Session{NewDB: true}).Exec("UPDATE wallets SET version = version + 1")
	})
	require.NoError(t, err)
	return &fired
}

func TestPlaceBetRetriesLostVersionRace(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "100", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")
	fired := bumpWalletVersion(t, env.db, 1)

	res, err := env.bets.PlaceBet(context.Background(), placeDTO(1, odds[models.LabelHome].ID, "30", "race-retry"))
	require.NoError(t, err)
	assert.Equal(t, 1, *fired)
	assert.True(t, res.Balance.RealBalance.Equal(testutil.Money("70")))

	var bets int64
	env.db.Model(&models.Bet{}).Count(&bets)
	assert.EqualValues(t, 1, bets)
	assert.Len(t, env.transactions(t, 1, models.TrxBetPlaced), 1)
	env.assertBalances(t, 1, "70", "0")
	env.assertReconciled(t, 1)
}

func TestPlaceBetGivesUpAfterMaxRetries(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "100", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")
	fired := bumpWalletVersion(t, env.db, ledger.MaxRetries)

	_, err := env.bets.PlaceBet(context.Background(), placeDTO(1, odds[models.LabelHome].ID, "30", "race-lost"))
	assert.ErrorIs(t, err, ledger.ErrConcurrentUpdate)
	assert.Equal(t, ledger.MaxRetries, *fired)

	var bets int64
	env.db.Model(&models.Bet{}).Count(&bets)
	assert.Zero(t, bets)
	assert.Empty(t, env.transactions(t, 1, models.TrxBetPlaced))
	env.assertBalances(t, 1, "100", "0")
}

// On SQLite the goroutines below are serialised by the single test
// connection, so they check the outcome rather than the row lock itself.
// The version guard is covered by the retry tests above; set DATABASE_URL
// to run these against MySQL row locks.
func TestConcurrentPlacementCannotOverdraw(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "100", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.bets.PlaceBet(context.Background(), placeDTO(1, odds[models.LabelHome].ID, "30", fmt.Sprintf("race-%d", i)))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	env.assertBalances(t, 1, "10", "0")
	assert.Len(t, env.transactions(t, 1, models.TrxBetPlaced), 3)
	env.assertReconciled(t, 1)
}

func TestConcurrentSameKeyPlacesOnce(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, 1, "1000", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")

	var wg sync.WaitGroup
	ids := make([]int, 5)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.bets.PlaceBet(context.Background(), placeDTO(1, odds[models.LabelHome].ID, "100", "retry-key"))
			if assert.NoError(t, err) {
				ids[i] = res.Bet.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Len(t, env.transactions(t, 1, models.TrxBetPlaced), 1)
	env.assertBalances(t, 1, "900", "0")
}

func TestGetUserBetsAndGetBetById(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "1000", "0")
	env.fund(t, 2, "1000", "0")

	m1 := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	o1 := testutil.SeedMatchOdds(t, env.db, m1.ID, "2.00", "3.00", "4.00")
	m2 := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	o2 := testutil.SeedMatchOdds(t, env.db, m2.ID, "2.00", "3.00", "4.00")

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	env.bets.Now = func() time.Time { clock = clock.Add(time.Hour); return clock }

	b1, err := env.bets.PlaceBet(ctx, placeDTO(1, o1[models.LabelHome].ID, "10", "a"))
	require.NoError(t, err)
	b2, err := env.bets.PlaceBet(ctx, placeDTO(1, o2[models.LabelAway].ID, "20", "b"))
	require.NoError(t, err)
	_, err = env.bets.PlaceBet(ctx, placeDTO(2, o2[models.LabelAway].ID, "30", "c"))
	require.NoError(t, err)

	res, err := env.bets.GetUserBets(ctx, BetFilterDTO{UserId: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)
	bets := res.Data.([]models.Bet)
	require.Len(t, bets, 2)
	assert.Equal(t, b2.Bet.ID, bets[0].ID, "newest first")
	assert.Len(t, bets[0].Selections, 1)

	res, err = env.bets.GetUserBets(ctx, BetFilterDTO{UserId: 1, MatchId: m1.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Count)

	from := base.Add(90 * time.Minute)
	res, err = env.bets.GetUserBets(ctx, BetFilterDTO{UserId: 1, StartDate: &from})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Count)

	res, err = env.bets.GetUserBets(ctx, BetFilterDTO{UserId: 1, Status: string(models.BetWon)})
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Count)

	got, err := env.bets.GetBetById(ctx, 1, b1.Bet.ID)
	require.NoError(t, err)
	assert.True(t, got.Stake.Equal(decimal.NewFromInt(10)))

	_, err = env.bets.GetBetById(ctx, 2, b1.Bet.ID)
	assert.ErrorIs(t, err, ErrBetNotFound)
}
