package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lotto/models"
	"lotto/notify"
	"lotto/store"
)

func nopPublisher() *notify.Publisher {
	return notify.NewPublisher(nil, "", zerolog.Nop())
}

type testEnv struct {
	store  *store.MemoryStore
	bets   *BetService
	credit *CreditService
	draws  *DrawService
	settle *SettlementService
	acct   *AccountService

	master *models.Account
	agent  *models.Account
	member *models.Account
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	log := zerolog.Nop()
	events := nopPublisher()

	env := &testEnv{
		store:  st,
		bets:   NewBetService(st, log, events),
		credit: NewCreditService(st, log, events),
		draws:  NewDrawService(st, log, events),
		settle: NewSettlementService(st, log, events),
		acct:   NewAccountService(st, log),
	}

	ctx := context.Background()
	env.master = &models.Account{Code: "master1", Role: models.RoleMaster, Status: models.AccountActive}
	require.NoError(t, st.CreateAccount(ctx, env.master))

	env.agent = &models.Account{
		Code: "agent1", Role: models.RoleAgent, ParentID: &env.master.ID,
		Credit: 5000, Status: models.AccountActive,
	}
	require.NoError(t, st.CreateAccount(ctx, env.agent))

	env.member = &models.Account{
		Code: "member1", Role: models.RoleMember, ParentID: &env.agent.ID,
		Credit: 1000, Balance: 0, Status: models.AccountActive,
	}
	require.NoError(t, st.CreateAccount(ctx, env.member))

	return env
}

func defaultSettings() models.BetSettings {
	s := models.BetSettings{}
	for _, bt := range models.AllBetTypes {
		s[bt] = models.BetSetting{PayoutRate: 900, MinBet: 1, MaxBet: 10000, Enabled: true}
	}
	return s
}

// seedDraw creates an open draw whose betting window surrounds now.
func seedDraw(t *testing.T, env *testEnv, now time.Time) *models.Draw {
	t.Helper()
	draw := &models.Draw{
		LotteryType: "thai_gov",
		DrawDate:    now.Add(2 * time.Hour),
		OpenTime:    now.Add(-time.Hour),
		CloseTime:   now.Add(time.Hour),
		Status:      models.DrawOpen,
		Settings:    defaultSettings(),
		CreatedBy:   env.master.ID,
	}
	require.NoError(t, env.store.CreateDraw(context.Background(), draw))
	return draw
}

func reloadAccount(t *testing.T, env *testEnv, id uint) *models.Account {
	t.Helper()
	a, err := env.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a
}

func ledgerFor(t *testing.T, env *testEnv, accountID uint) []models.LedgerEntry {
	t.Helper()
	entries, _, err := env.store.ListLedgerEntries(context.Background(), accountID, store.Page{Limit: 100})
	require.NoError(t, err)
	return entries
}
