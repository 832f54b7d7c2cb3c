package services

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotto/models"
	"lotto/store"
)

func TestPlaceBet_Success(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }

	result, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetThreeTop, Number: "123", Amount: 50}},
	})
	require.NoError(t, err)

	assert.Equal(t, 50.0, result.Deducted.Total)
	assert.Equal(t, -50.0, result.Deducted.Balance)
	assert.Equal(t, 1000.0, result.Remaining.Credit)
	assert.Equal(t, 950.0, result.Remaining.Total)

	require.Len(t, result.Bet.Items, 1)
	assert.Equal(t, 45000.0, result.Bet.Items[0].PotentialWin)
	assert.Equal(t, 45000.0, result.Bet.TotalPotentialWin)
	assert.Equal(t, models.BetPending, result.Bet.Status)

	member := reloadAccount(t, env, env.member.ID)
	assert.Equal(t, -50.0, member.Balance)
	assert.Equal(t, 1000.0, member.Credit)

	entries := ledgerFor(t, env, env.member.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerDeduct, entries[0].Action)
	assert.Equal(t, 50.0, entries[0].Amount)
	assert.Equal(t, 0.0, entries[0].BalanceBefore)
	assert.Equal(t, -50.0, entries[0].BalanceAfter)
}

func TestPlaceBet_InsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }

	_, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetThreeTop, Number: "123", Amount: 50}},
	})
	require.NoError(t, err)

	// available is now 1000 + (-50) = 950
	_, err = env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetTwoTop, Number: "45", Amount: 960}},
	})
	require.Error(t, err)
	assert.Equal(t, KindInsufficientFunds, KindOf(err))

	member := reloadAccount(t, env, env.member.ID)
	assert.Equal(t, -50.0, member.Balance)
}

func TestPlaceBet_AtomicOnItemFailure(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }

	cases := []struct {
		name string
		item BetItemRequest
		kind Kind
	}{
		{"unknown type", BetItemRequest{BetType: "four_top", Number: "1234", Amount: 10}, KindInvalidBetType},
		{"bad number length", BetItemRequest{BetType: models.BetThreeTop, Number: "12", Amount: 10}, KindInvalidNumberFormat},
		{"non-digit number", BetItemRequest{BetType: models.BetTwoTop, Number: "4x", Amount: 10}, KindInvalidNumberFormat},
		{"amount below min", BetItemRequest{BetType: models.BetRunTop, Number: "7", Amount: 0.5}, KindAmountOutOfRange},
		{"amount above max", BetItemRequest{BetType: models.BetRunTop, Number: "7", Amount: 20000}, KindAmountOutOfRange},
		{"zero amount", BetItemRequest{BetType: models.BetRunTop, Number: "7", Amount: 0}, KindAmountOutOfRange},
		{"NaN amount", BetItemRequest{BetType: models.BetRunTop, Number: "7", Amount: math.NaN()}, KindAmountOutOfRange},
		{"positive infinity", BetItemRequest{BetType: models.BetRunTop, Number: "7", Amount: math.Inf(1)}, KindAmountOutOfRange},
		{"negative infinity", BetItemRequest{BetType: models.BetRunTop, Number: "7", Amount: math.Inf(-1)}, KindAmountOutOfRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
				DrawID: draw.ID,
				Items: []BetItemRequest{
					{BetType: models.BetThreeTop, Number: "123", Amount: 10}, // valid first item
					tc.item,
				},
			})
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))

			// nothing persisted: no balance change, no ledger, no bets
			member := reloadAccount(t, env, env.member.ID)
			assert.Equal(t, 0.0, member.Balance)
			assert.Empty(t, ledgerFor(t, env, env.member.ID))
			bets, total, err := env.store.ListBetsByMember(context.Background(), env.member.ID, store.BetFilter{})
			require.NoError(t, err)
			assert.Empty(t, bets)
			assert.Zero(t, total)
		})
	}
}

func TestPlaceBet_DisabledBetType(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	settings := draw.Settings
	s := settings[models.BetTwoBottom]
	s.Enabled = false
	settings[models.BetTwoBottom] = s
	require.NoError(t, env.store.SaveDraw(context.Background(), draw))
	env.bets.now = func() time.Time { return now }

	_, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetTwoBottom, Number: "45", Amount: 10}},
	})
	require.Error(t, err)
	assert.Equal(t, KindBetTypeDisabled, KindOf(err))
}

func TestPlaceBet_WindowBoundaries(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)

	req := PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetRunTop, Number: "7", Amount: 10}},
	}

	// exactly at close_time: rejected
	env.bets.now = func() time.Time { return draw.CloseTime }
	_, err := env.bets.PlaceBet(context.Background(), env.member.ID, req)
	require.Error(t, err)
	assert.Equal(t, KindBettingClosed, KindOf(err))

	// exactly at open_time: accepted
	env.bets.now = func() time.Time { return draw.OpenTime }
	_, err = env.bets.PlaceBet(context.Background(), env.member.ID, req)
	require.NoError(t, err)
}

func TestPlaceBet_ClosedDrawRejected(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	draw.Status = models.DrawClosed
	require.NoError(t, env.store.SaveDraw(context.Background(), draw))
	env.bets.now = func() time.Time { return now }

	_, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetRunTop, Number: "7", Amount: 10}},
	})
	require.Error(t, err)
	assert.Equal(t, KindBettingClosed, KindOf(err))
}

func TestPlaceBet_NoteTooLongRejected(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }

	_, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetRunTop, Number: "7", Amount: 10}},
		Note:   strings.Repeat("x", models.MaxBetNoteLen+1),
	})
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Empty(t, ledgerFor(t, env, env.member.ID))
}

func TestPlaceBet_SuspendedAccountsRejected(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }
	ctx := context.Background()

	req := PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetRunTop, Number: "7", Amount: 10}},
	}

	env.member.Status = models.AccountSuspended
	require.NoError(t, env.store.SaveAccount(ctx, env.member))
	_, err := env.bets.PlaceBet(ctx, env.member.ID, req)
	assert.Equal(t, KindForbidden, KindOf(err))

	env.member.Status = models.AccountActive
	require.NoError(t, env.store.SaveAccount(ctx, env.member))
	env.agent.Status = models.AccountSuspended
	require.NoError(t, env.store.SaveAccount(ctx, env.agent))
	_, err = env.bets.PlaceBet(ctx, env.member.ID, req)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestPlaceBet_CommissionSnapshot(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, env.store.UpsertCommissionRate(ctx, &models.CommissionRate{
		AccountID: env.member.ID, LotteryType: draw.LotteryType, ThreeTop: 5, TwoTop: 3,
	}))
	require.NoError(t, env.store.UpsertCommissionRate(ctx, &models.CommissionRate{
		AccountID: env.agent.ID, LotteryType: draw.LotteryType, ThreeTop: 10, TwoTop: 8,
	}))

	result, err := env.bets.PlaceBet(ctx, env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items: []BetItemRequest{
			{BetType: models.BetThreeTop, Number: "123", Amount: 100},
			{BetType: models.BetTwoTop, Number: "45", Amount: 200},
		},
	})
	require.NoError(t, err)

	// member: 100*5% + 200*3% = 11; agent: 100*10% + 200*8% = 26
	assert.Equal(t, 11.0, result.Bet.Commission.Member.Total)
	assert.Equal(t, 26.0, result.Bet.Commission.Agent.Total)
	assert.Equal(t, 5.0, result.Bet.Commission.Member.Rates[models.BetThreeTop])
	assert.Equal(t, 10.0, result.Bet.Commission.Agent.Rates[models.BetThreeTop])
}

func TestPlaceBet_MissingRateSetMeansZeroCommission(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }

	result, err := env.bets.PlaceBet(context.Background(), env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetThreeTop, Number: "123", Amount: 100}},
	})
	require.NoError(t, err)
	assert.Zero(t, result.Bet.Commission.Member.Total)
	assert.Zero(t, result.Bet.Commission.Agent.Total)
}

func TestPlaceBet_ConcurrentSameMember(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }
	ctx := context.Background()

	// funds cover exactly 4 bets of 250: credit 1000, balance 0
	const n = 5
	const amount = 250.0

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.bets.PlaceBet(ctx, env.member.ID, PlaceBetRequest{
				DrawID: draw.ID,
				Items:  []BetItemRequest{{BetType: models.BetTwoTop, Number: "45", Amount: amount}},
			})
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if IsKind(err, KindInsufficientFunds) {
			insufficient++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, n-1, succeeded)
	assert.Equal(t, 1, insufficient)

	member := reloadAccount(t, env, env.member.ID)
	assert.Equal(t, -amount*float64(n-1), member.Balance)
	assert.Len(t, ledgerFor(t, env, env.member.ID), n-1)
}

func TestGetBet_AuthorityScope(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	draw := seedDraw(t, env, now)
	env.bets.now = func() time.Time { return now }
	ctx := context.Background()

	result, err := env.bets.PlaceBet(ctx, env.member.ID, PlaceBetRequest{
		DrawID: draw.ID,
		Items:  []BetItemRequest{{BetType: models.BetRunTop, Number: "7", Amount: 10}},
	})
	require.NoError(t, err)

	// member, agent and master can all read the bet
	for _, actor := range []uint{env.member.ID, env.agent.ID, env.master.ID} {
		_, err := env.bets.GetBet(ctx, actor, result.Bet.ID)
		assert.NoError(t, err)
	}

	// an unrelated member cannot
	other := &models.Account{Code: "member2", Role: models.RoleMember, ParentID: &env.agent.ID, Status: models.AccountActive}
	require.NoError(t, env.store.CreateAccount(ctx, other))
	_, err = env.bets.GetBet(ctx, other.ID, result.Bet.ID)
	assert.Equal(t, KindNotFound, KindOf(err))
}
