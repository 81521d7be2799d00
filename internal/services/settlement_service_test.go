package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"betting-service/internal/models"
	"betting-service/internal/testutil"
)

func TestSettleMatchPaysWinnersOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []int{1, 2, 3} {
		env.fund(t, id, "1000", "0")
	}
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "1.85", "3.40", "4.20")

	home, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "100", "home"))
	require.NoError(t, err)
	draw, err := env.bets.PlaceBet(ctx, placeDTO(2, odds[models.LabelDraw].ID, "100", "draw"))
	require.NoError(t, err)
	_, err = env.bets.PlaceBet(ctx, placeDTO(3, odds[models.LabelAway].ID, "100", "away"))
	require.NoError(t, err)

	testutil.FinishMatch(t, env.db, match.ID, 2, 1)

	res, err := env.settlement.SettleMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, SettlementResult{MatchId: match.ID, Settled: 3, Errors: 0}, res)

	var won models.Bet
	require.NoError(t, env.db.Preload("Selections").First(&won, home.Bet.ID).Error)
	assert.Equal(t, models.BetWon, won.Status)
	assert.True(t, won.ActualWin.Equal(testutil.Money("185")))
	assert.NotNil(t, won.SettledAt)
	assert.Equal(t, models.SelectionWon, won.Selections[0].Result)

	var lost models.Bet
	require.NoError(t, env.db.First(&lost, draw.Bet.ID).Error)
	assert.Equal(t, models.BetLost, lost.Status)
	assert.True(t, lost.ActualWin.IsZero())

	env.assertBalances(t, 1, "1085", "0")
	env.assertBalances(t, 2, "900", "0")
	payouts := env.transactions(t, 1, models.TrxBetWon)
	require.Len(t, payouts, 1)
	assert.True(t, payouts[0].Amount.Equal(testutil.Money("185")))
	assert.Equal(t, home.Bet.ID, payouts[0].ReferenceId)

	again, err := env.settlement.SettleMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Settled)
	assert.Len(t, env.transactions(t, 1, models.TrxBetWon), 1)
	env.assertBalances(t, 1, "1085", "0")

	assert.Len(t, env.events.settled, 3)
	env.assertReconciled(t, 1, 2, 3)
}

func TestSettleMatchWinningsGoToRealEvenWhenStakedFromBonus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "0", "500")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.50", "3.00", "3.00")

	_, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "200", "bonus-bet"))
	require.NoError(t, err)
	testutil.FinishMatch(t, env.db, match.ID, 3, 0)

	_, err = env.settlement.SettleMatch(ctx, match.ID)
	require.NoError(t, err)
	env.assertBalances(t, 1, "500", "300")
	env.assertReconciled(t, 1)
}

func TestSettleMatchRequiresResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	live := testutil.SeedMatch(t, env.db, models.MatchLive)
	_, err := env.settlement.SettleMatch(ctx, live.ID)
	assert.ErrorIs(t, err, ErrMatchNotFinished)
	assert.Equal(t, KindInvalidState, Kind(err))

	noScore := testutil.SeedMatch(t, env.db, models.MatchFinished)
	_, err = env.settlement.SettleMatch(ctx, noScore.ID)
	assert.ErrorIs(t, err, ErrMatchNotFinished)

	_, err = env.settlement.SettleMatch(ctx, 9999)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestSettleMatchLeavesOtherMarketsPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "1000", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)

	overUnder := models.Odds{MatchId: match.ID, MarketCode: "OU", Selection: "Over", Handicap: "2.5", Value: testutil.Money("1.90"), Status: models.OddsActive}
	require.NoError(t, env.db.Create(&overUnder).Error)

	res, err := env.bets.PlaceBet(ctx, placeDTO(1, overUnder.ID, "100", "ou"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", res.Bet.Selections[0].Handicap)

	testutil.FinishMatch(t, env.db, match.ID, 2, 2)
	settled, err := env.settlement.SettleMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Zero(t, settled.Settled)

	var bet models.Bet
	require.NoError(t, env.db.Preload("Selections").First(&bet, res.Bet.ID).Error)
	assert.Equal(t, models.BetPending, bet.Status)
	assert.Equal(t, models.SelectionPending, bet.Selections[0].Result)
}

func TestVoidMatchRefundsExactSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "40000", "10000")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "1.85", "3.40", "4.20")

	placed, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "50000", "void-me"))
	require.NoError(t, err)
	env.assertBalances(t, 1, "0", "0")

	testutil.SetMatchStatus(t, env.db, match.ID, models.MatchCancelled)
	res, err := env.settlement.VoidMatchBets(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Settled)
	assert.Zero(t, res.Errors)

	env.assertBalances(t, 1, "40000", "10000")

	refunds := env.transactions(t, 1, models.TrxBetRefund)
	require.Len(t, refunds, 1)
	assert.True(t, refunds[0].Amount.Equal(testutil.Money("50000")))
	assert.True(t, refunds[0].BalanceBefore.IsZero())
	assert.True(t, refunds[0].BalanceAfter.Equal(testutil.Money("50000")))

	var bet models.Bet
	require.NoError(t, env.db.Preload("Selections").First(&bet, placed.Bet.ID).Error)
	assert.Equal(t, models.BetVoid, bet.Status)
	assert.Equal(t, models.SelectionVoid, bet.Selections[0].Result)

	again, err := env.settlement.VoidMatchBets(ctx, match.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Settled)
	assert.Len(t, env.transactions(t, 1, models.TrxBetRefund), 1)

	_, err = env.settlement.VoidMatchBets(ctx, 9999)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	require.Len(t, env.events.settled, 1)
	assert.Equal(t, "void", env.events.settled[0].Status)
	assert.True(t, env.events.settled[0].Refund.Equal(testutil.Money("50000")))
	env.assertReconciled(t, 1)
}

func TestVoidBetAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "300", "200")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")

	pending, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "400", "admin-void"))
	require.NoError(t, err)
	settled, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelAway].ID, "100", "will-lose"))
	require.NoError(t, err)
	env.assertBalances(t, 1, "0", "0")

	voided, err := env.settlement.VoidBet(ctx, pending.Bet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BetVoid, voided.Status)
	assert.Equal(t, models.SelectionVoid, voided.Selections[0].Result)
	env.assertBalances(t, 1, "300", "100")

	_, err = env.settlement.VoidBet(ctx, pending.Bet.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	testutil.FinishMatch(t, env.db, match.ID, 1, 0)
	_, err = env.settlement.SettleMatch(ctx, match.ID)
	require.NoError(t, err)

	_, err = env.settlement.VoidBet(ctx, settled.Bet.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	_, err = env.settlement.VoidBet(ctx, 9999)
	assert.ErrorIs(t, err, ErrBetNotFound)

	assert.Len(t, env.transactions(t, 1, models.TrxBetRefund), 1)
	env.assertReconciled(t, 1)
}

// Serialised on the SQLite test connection; the conditional
// pending-to-settled updates are what keep the credit single. Set
// DATABASE_URL to race real MySQL connections.
func TestConcurrentSettlementCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "1000", "0")
	match := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	odds := testutil.SeedMatchOdds(t, env.db, match.ID, "2.00", "3.00", "4.00")

	for _, key := range []string{"a", "b", "c"} {
		_, err := env.bets.PlaceBet(ctx, placeDTO(1, odds[models.LabelHome].ID, "100", key))
		require.NoError(t, err)
	}
	testutil.FinishMatch(t, env.db, match.ID, 1, 0)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.settlement.SettleMatch(ctx, match.ID)
			assert.NoError(t, err)
			mu.Lock()
			total += res.Settled
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, total)
	assert.Len(t, env.transactions(t, 1, models.TrxBetWon), 3)
	env.assertBalances(t, 1, "1300", "0")
	env.assertReconciled(t, 1)
}

func TestSettleMultiLegBet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "100", "0")
	now := time.Now().UTC()

	m1 := testutil.SeedMatch(t, env.db, models.MatchScheduled)
	m2 := testutil.SeedMatch(t, env.db, models.MatchScheduled)

	bet := models.Bet{
		UserId:       1,
		BetslipId:    "MULTI01",
		Stake:        testutil.Money("10"),
		TotalOdds:    testutil.Money("6"),
		PotentialWin: testutil.Money("60"),
		Status:       models.BetPending,
		Metadata:     models.BetMetadata{IdempotencyKey: "multi", RealStake: testutil.Money("10")},
		PlacedAt:     now,
		Selections: []models.BetSelection{
			{OddsId: 1, MatchId: m1.ID, MarketCode: models.MarketMatchWinner, OddsValue: testutil.Money("2"), Selection: models.LabelHome, Result: models.SelectionPending},
			{OddsId: 2, MatchId: m2.ID, MarketCode: models.MarketMatchWinner, OddsValue: testutil.Money("3"), Selection: models.LabelAway, Result: models.SelectionPending},
		},
	}
	require.NoError(t, env.db.Create(&bet).Error)

	testutil.FinishMatch(t, env.db, m1.ID, 1, 0)
	_, err := env.settlement.SettleMatch(ctx, m1.ID)
	require.NoError(t, err)

	var stillPending models.Bet
	require.NoError(t, env.db.First(&stillPending, bet.ID).Error)
	assert.Equal(t, models.BetPending, stillPending.Status, "one leg still open")

	testutil.SetMatchStatus(t, env.db, m2.ID, models.MatchPostponed)
	_, err = env.settlement.VoidMatchBets(ctx, m2.ID)
	require.NoError(t, err)

	var resolved models.Bet
	require.NoError(t, env.db.First(&resolved, bet.ID).Error)
	assert.Equal(t, models.BetVoid, resolved.Status, "voiding a match voids the whole bet")
	env.assertBalances(t, 1, "110", "0")
}
