package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lotto/models"
	"lotto/notify"
	"lotto/store"
)

// SettlementService resolves pending bets against a completed draw's
// result. Settlement is idempotent: only pending bets are touched, so
// re-running it never double-pays.
type SettlementService struct {
	store  store.Store
	log    zerolog.Logger
	events *notify.Publisher
	now    func() time.Time
}

func NewSettlementService(st store.Store, log zerolog.Logger, events *notify.Publisher) *SettlementService {
	return &SettlementService{store: st, log: log, events: events, now: time.Now}
}

type SettleSummary struct {
	DrawID    uint    `json:"draw_id"`
	Settled   int     `json:"settled"`
	Won       int     `json:"won"`
	TotalPaid float64 `json:"total_paid"`
}

// SettleDraw walks every pending bet on the draw, evaluates each item
// against the result, pays winners with a ledger entry and stamps
// settled_at. The draw must already be completed with a result payload.
func (s *SettlementService) SettleDraw(ctx context.Context, drawID uint) (*SettleSummary, error) {
	var summary *SettleSummary
	var events []notify.Event

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		draw, err := tx.GetDrawForUpdate(ctx, drawID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Errf(KindNotFound, "draw %d not found", drawID)
			}
			return err
		}
		if draw.Status != models.DrawCompleted || draw.Result == nil {
			return Errf(KindInvalidTransition, "draw %d has no announced result", drawID)
		}
		sum, evs, err := settlePendingBets(ctx, tx, draw, s.now())
		if err != nil {
			return err
		}
		summary = sum
		events = evs
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		s.events.Publish(ctx, ev)
	}
	s.log.Info().
		Uint("draw", drawID).
		Int("settled", summary.Settled).
		Int("won", summary.Won).
		Float64("paid", summary.TotalPaid).
		Msg("draw settled")
	return summary, nil
}

// settlePendingBets does the walk inside an already-open transaction; the
// draw status change that announces the result shares the same scope.
func settlePendingBets(ctx context.Context, tx store.Store, draw *models.Draw, now time.Time) (*SettleSummary, []notify.Event, error) {
	bets, err := tx.ListPendingBetsByDraw(ctx, draw.ID)
	if err != nil {
		return nil, nil, err
	}

	summary := &SettleSummary{DrawID: draw.ID}
	var events []notify.Event

	// Deterministic member order keeps lock acquisition stable across
	// concurrent settlement attempts.
	sort.Slice(bets, func(i, j int) bool { return bets[i].MemberID < bets[j].MemberID })

	for i := range bets {
		bet := &bets[i]
		var actualWin float64
		for j := range bet.Items {
			it := &bet.Items[j]
			if itemWins(*it, *draw.Result) {
				it.IsWin = true
				it.WinAmount = it.PotentialWin
				actualWin += it.PotentialWin
			}
		}

		settledAt := now
		bet.SettledAt = &settledAt
		bet.ActualWinAmount = actualWin
		if actualWin > 0 {
			bet.Status = models.BetWon
		} else {
			bet.Status = models.BetLost
		}
		if err := tx.SaveBet(ctx, bet); err != nil {
			return nil, nil, err
		}
		summary.Settled++

		if actualWin <= 0 {
			continue
		}
		summary.Won++
		summary.TotalPaid += actualWin

		member, err := tx.GetAccountForUpdate(ctx, bet.MemberID)
		if err != nil {
			return nil, nil, err
		}
		before := member.Balance
		member.Balance += actualWin
		if err := tx.SaveAccount(ctx, member); err != nil {
			return nil, nil, err
		}
		entry := &models.LedgerEntry{
			PerformerID:   draw.CreatedBy,
			AccountID:     member.ID,
			Action:        models.LedgerAdd,
			Amount:        actualWin,
			BalanceBefore: before,
			BalanceAfter:  member.Balance,
			Note: fmt.Sprintf("Winnings for %s draw %s",
				draw.LotteryType, draw.DrawDate.Format("2006-01-02")),
			RefID:  uuid.New().String(),
			Detail: ledgerDetail(map[string]any{"draw_id": draw.ID, "bet_id": bet.ID}),
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return nil, nil, err
		}
		events = append(events, notify.Event{
			TargetUserID: member.ID,
			Action:       string(models.LedgerAdd),
			Amount:       actualWin,
			NewBalance:   member.Balance,
			PerformedBy:  draw.CreatedBy,
		})
	}
	return summary, events, nil
}

// itemWins compares one bet item against the result. three_tod matches any
// digit permutation of the winning three_top number; the run types match
// membership in the announced digit lists.
func itemWins(it models.BetItem, r models.DrawResult) bool {
	switch it.BetType {
	case models.BetThreeTop:
		return it.Number == r.ThreeTop
	case models.BetThreeTod:
		return samePermutation(it.Number, r.ThreeTop)
	case models.BetTwoTop:
		return it.Number == r.TwoTop
	case models.BetTwoBottom:
		return it.Number == r.TwoBottom
	case models.BetRunTop:
		return containsDigit(r.RunTop, it.Number)
	case models.BetRunBottom:
		return containsDigit(r.RunBottom, it.Number)
	}
	return false
}

func samePermutation(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var counts [10]int
	for i := 0; i < len(a); i++ {
		if a[i] < '0' || a[i] > '9' || b[i] < '0' || b[i] > '9' {
			return false
		}
		counts[a[i]-'0']++
		counts[b[i]-'0']--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

func containsDigit(set []string, number string) bool {
	for _, s := range set {
		if s == number {
			return true
		}
	}
	return false
}
