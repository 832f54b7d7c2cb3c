package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"lotto/models"
	"lotto/notify"
	"lotto/store"
)

// BetService owns the bet placement transaction and the bet read models.
type BetService struct {
	store  store.Store
	log    zerolog.Logger
	events *notify.Publisher
	now    func() time.Time
}

func NewBetService(st store.Store, log zerolog.Logger, events *notify.Publisher) *BetService {
	return &BetService{store: st, log: log, events: events, now: time.Now}
}

type BetItemRequest struct {
	BetType models.BetType `json:"bet_type" validate:"required"`
	Number  string         `json:"number" validate:"required"`
	Amount  float64        `json:"amount" validate:"required"`
}

type PlaceBetRequest struct {
	DrawID uint             `json:"draw_id" validate:"required"`
	Items  []BetItemRequest `json:"items" validate:"required,min=1,dive"`
	Note   string           `json:"note"`
}

type BalanceSummary struct {
	Credit  float64 `json:"credit"`
	Balance float64 `json:"balance"`
	Total   float64 `json:"total"`
}

type DeductedSummary struct {
	Balance float64 `json:"balance"`
	Total   float64 `json:"total"`
}

type PlaceBetResult struct {
	Bet       *models.Bet     `json:"bet"`
	Deducted  DeductedSummary `json:"deducted"`
	Remaining BalanceSummary  `json:"remaining"`
}

// PlaceBet validates the wager set against the draw, computes totals and
// the commission snapshot, debits the member and persists the bet plus one
// ledger entry — all inside a single transaction. Any failure leaves zero
// persisted side effects.
func (s *BetService) PlaceBet(ctx context.Context, memberID uint, req PlaceBetRequest) (*PlaceBetResult, error) {
	if len(req.Items) == 0 {
		return nil, Errf(KindInvalidInput, "at least one bet item is required")
	}
	if len(req.Note) > models.MaxBetNoteLen {
		return nil, Errf(KindInvalidInput, "note exceeds %d characters", models.MaxBetNoteLen)
	}

	var result *PlaceBetResult
	var event notify.Event

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		member, err := tx.GetAccountForUpdate(ctx, memberID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Errf(KindNotFound, "member %d not found", memberID)
			}
			return err
		}
		if member.Role != models.RoleMember {
			return Errf(KindForbidden, "account %d is not a member", memberID)
		}
		if !member.Active() {
			return Errf(KindForbidden, "member %s is suspended", member.Code)
		}

		if member.ParentID == nil {
			return Errf(KindNotFound, "member %s has no agent", member.Code)
		}
		agent, err := tx.GetAccount(ctx, *member.ParentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Errf(KindNotFound, "agent %d not found", *member.ParentID)
			}
			return err
		}
		if !agent.Active() {
			return Errf(KindForbidden, "agent %s is suspended", agent.Code)
		}

		draw, err := tx.GetDraw(ctx, req.DrawID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Errf(KindNotFound, "draw %d not found", req.DrawID)
			}
			return err
		}
		if !draw.AcceptsBets(s.now()) {
			return Errf(KindBettingClosed, "draw %d is not accepting bets", draw.ID)
		}

		items, totalAmount, totalWin, err := buildItems(req.Items, draw)
		if err != nil {
			return err
		}

		if member.Available() < totalAmount {
			return Errf(KindInsufficientFunds,
				"available %.2f is less than total %.2f", member.Available(), totalAmount)
		}

		memberRates, err := rateSetOrNil(ctx, tx, member.ID, draw.LotteryType)
		if err != nil {
			return err
		}
		agentRates, err := rateSetOrNil(ctx, tx, agent.ID, draw.LotteryType)
		if err != nil {
			return err
		}

		before := member.Balance
		member.Balance -= totalAmount
		if err := tx.SaveAccount(ctx, member); err != nil {
			return err
		}

		entry := &models.LedgerEntry{
			PerformerID:   member.ID,
			AccountID:     member.ID,
			Action:        models.LedgerDeduct,
			Amount:        totalAmount,
			BalanceBefore: before,
			BalanceAfter:  member.Balance,
			Note: fmt.Sprintf("Bet on %s draw %s",
				draw.LotteryType, draw.DrawDate.Format("2006-01-02")),
			RefID:  uuid.New().String(),
			Detail: ledgerDetail(map[string]any{"draw_id": draw.ID, "items": len(items)}),
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return err
		}

		bet := &models.Bet{
			MemberID:          member.ID,
			AgentID:           agent.ID,
			DrawID:            draw.ID,
			TotalAmount:       totalAmount,
			TotalPotentialWin: totalWin,
			Status:            models.BetPending,
			Note:              req.Note,
			Commission: models.CommissionSnapshot{
				Agent:  commissionPart(agentRates, items),
				Member: commissionPart(memberRates, items),
			},
			Items: items,
		}
		if err := tx.CreateBet(ctx, bet); err != nil {
			return err
		}

		result = &PlaceBetResult{
			Bet:      bet,
			Deducted: DeductedSummary{Balance: member.Balance, Total: totalAmount},
			Remaining: BalanceSummary{
				Credit:  member.Credit,
				Balance: member.Balance,
				Total:   member.Available(),
			},
		}
		event = notify.Event{
			TargetUserID: member.ID,
			Action:       string(models.LedgerDeduct),
			Amount:       totalAmount,
			NewBalance:   member.Balance,
			PerformedBy:  member.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, event)
	s.log.Info().
		Uint("member", memberID).
		Uint("draw", req.DrawID).
		Uint("bet", result.Bet.ID).
		Float64("total", result.Deducted.Total).
		Msg("bet placed")
	return result, nil
}

// buildItems validates each item in input order against the draw settings
// and returns the enriched items plus the decimal-exact totals.
func buildItems(reqs []BetItemRequest, draw *models.Draw) ([]models.BetItem, float64, float64, error) {
	items := make([]models.BetItem, 0, len(reqs))
	totalAmount := decimal.Zero
	totalWin := decimal.Zero

	for _, r := range reqs {
		if !r.BetType.Valid() {
			return nil, 0, 0, Errf(KindInvalidBetType, "unknown bet type %q", r.BetType)
		}
		setting, ok := draw.Settings[r.BetType]
		if !ok || !setting.Enabled {
			return nil, 0, 0, Errf(KindBetTypeDisabled, "%s is not open on this draw", r.BetType)
		}
		if !r.BetType.ValidNumber(r.Number) {
			return nil, 0, 0, Errf(KindInvalidNumberFormat,
				"%s requires %d digits, got %q", r.BetType, r.BetType.DigitCount(), r.Number)
		}
		if !finite(r.Amount) || r.Amount <= 0 || r.Amount < setting.MinBet || r.Amount > setting.MaxBet {
			return nil, 0, 0, Errf(KindAmountOutOfRange,
				"%s amount %.2f outside [%.2f, %.2f]", r.BetType, r.Amount, setting.MinBet, setting.MaxBet)
		}

		amount := decimal.NewFromFloat(r.Amount)
		win := amount.Mul(decimal.NewFromFloat(setting.PayoutRate))
		items = append(items, models.BetItem{
			BetType:      r.BetType,
			Number:       r.Number,
			Amount:       r.Amount,
			PayoutRate:   setting.PayoutRate,
			PotentialWin: win.InexactFloat64(),
		})
		totalAmount = totalAmount.Add(amount)
		totalWin = totalWin.Add(win)
	}
	return items, totalAmount.InexactFloat64(), totalWin.InexactFloat64(), nil
}

// finite rejects NaN and the infinities before any amount reaches the
// comparison guards or decimal math; both misbehave on non-finite floats.
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ledgerDetail marshals structured context onto a ledger entry. Marshal
// cannot fail for the maps we build, so errors collapse to an empty blob.
func ledgerDetail(fields map[string]any) datatypes.JSON {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// rateSetOrNil loads one account's rate set for the lottery type. Missing
// rate sets mean zero commission, not an error.
func rateSetOrNil(ctx context.Context, tx store.Store, accountID uint, lt models.LotteryType) (*models.CommissionRate, error) {
	r, err := tx.GetCommissionRate(ctx, accountID, lt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// ListBets returns the member's bets, newest first.
func (s *BetService) ListBets(ctx context.Context, memberID uint, f store.BetFilter) ([]models.Bet, int64, error) {
	return s.store.ListBetsByMember(ctx, memberID, f)
}

// GetBet loads one bet with items, scoped to the requesting actor's
// authority: the member itself, its agent, or any master.
func (s *BetService) GetBet(ctx context.Context, actorID, betID uint) (*models.Bet, error) {
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "bet %d not found", betID)
		}
		return nil, err
	}
	actor, err := s.store.GetAccount(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "account %d not found", actorID)
		}
		return nil, err
	}
	if actor.Role != models.RoleMaster && actor.ID != bet.MemberID && actor.ID != bet.AgentID {
		return nil, Errf(KindNotFound, "bet %d not found", betID)
	}
	return bet, nil
}
