package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lotto/models"
	"lotto/notify"
	"lotto/store"
)

// CreditService owns hierarchical credit adjustments between tiers. Every
// successful adjustment mutates both parties inside one transaction and
// writes exactly one ledger entry snapshotting the target's credit.
type CreditService struct {
	store  store.Store
	log    zerolog.Logger
	events *notify.Publisher
}

func NewCreditService(st store.Store, log zerolog.Logger, events *notify.Publisher) *CreditService {
	return &CreditService{store: st, log: log, events: events}
}

type AdjustCreditRequest struct {
	TargetID uint                `json:"target_id" validate:"required"`
	Amount   float64             `json:"amount" validate:"required,gt=0"`
	Action   models.LedgerAction `json:"action" validate:"required,oneof=add deduct"`
	Note     string              `json:"note"`
}

type AdjustCreditResult struct {
	Target               *models.Account     `json:"target"`
	ActorRemainingCredit float64             `json:"actor_remaining_credit"`
	Entry                *models.LedgerEntry `json:"entry"`
}

// AdjustCredit moves credit between an actor and its direct downline.
// Master -> agent: add is unconditional (master liquidity is unlimited),
// deduct requires the agent to hold the amount. Agent -> member: add
// transfers from the agent's own credit, deduct returns it.
func (s *CreditService) AdjustCredit(ctx context.Context, actorID uint, req AdjustCreditRequest) (*AdjustCreditResult, error) {
	if !finite(req.Amount) || req.Amount <= 0 {
		return nil, Errf(KindInvalidInput, "amount must be a positive finite number")
	}
	if req.Action != models.LedgerAdd && req.Action != models.LedgerDeduct {
		return nil, Errf(KindInvalidInput, "unknown action %q", req.Action)
	}

	var result *AdjustCreditResult
	var event notify.Event

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		actor, target, err := lockPair(ctx, tx, actorID, req.TargetID)
		if err != nil {
			return err
		}
		if !actor.Active() {
			return Errf(KindForbidden, "actor %s is suspended", actor.Code)
		}
		if target.ParentID == nil || *target.ParentID != actor.ID {
			return Errf(KindNotFound, "account %d is not a downline of %d", target.ID, actor.ID)
		}

		switch {
		case actor.Role == models.RoleMaster && target.Role == models.RoleAgent:
			if req.Action == models.LedgerDeduct && target.Credit < req.Amount {
				return Errf(KindInsufficientFunds,
					"agent credit %.2f is less than %.2f", target.Credit, req.Amount)
			}
		case actor.Role == models.RoleAgent && target.Role == models.RoleMember:
			if req.Action == models.LedgerAdd {
				if actor.Credit < req.Amount {
					return Errf(KindInsufficientFunds,
						"agent credit %.2f is less than %.2f", actor.Credit, req.Amount)
				}
				actor.Credit -= req.Amount
			} else {
				if target.Credit < req.Amount {
					return Errf(KindInsufficientFunds,
						"member credit %.2f is less than %.2f", target.Credit, req.Amount)
				}
				actor.Credit += req.Amount
			}
		default:
			return Errf(KindForbidden, "%s cannot adjust %s credit", actor.Role, target.Role)
		}

		before := target.Credit
		if req.Action == models.LedgerAdd {
			target.Credit += req.Amount
		} else {
			target.Credit -= req.Amount
		}

		if err := tx.SaveAccount(ctx, actor); err != nil {
			return err
		}
		if err := tx.SaveAccount(ctx, target); err != nil {
			return err
		}

		note := req.Note
		if note == "" {
			note = "Credit adjustment"
		}
		entry := &models.LedgerEntry{
			PerformerID:   actor.ID,
			AccountID:     target.ID,
			Action:        req.Action,
			Amount:        req.Amount,
			BalanceBefore: before,
			BalanceAfter:  target.Credit,
			Note:          note,
			RefID:         uuid.New().String(),
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return err
		}

		result = &AdjustCreditResult{
			Target:               target,
			ActorRemainingCredit: actor.Credit,
			Entry:                entry,
		}
		event = notify.Event{
			TargetUserID: target.ID,
			Action:       string(req.Action),
			Amount:       req.Amount,
			NewBalance:   target.Available(),
			PerformedBy:  actor.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, event)
	s.log.Info().
		Uint("actor", actorID).
		Uint("target", req.TargetID).
		Str("action", string(req.Action)).
		Float64("amount", req.Amount).
		Msg("credit adjusted")
	return result, nil
}

// lockPair locks both account rows in ascending id order so two
// adjustments touching the same pair cannot deadlock.
func lockPair(ctx context.Context, tx store.Store, actorID, targetID uint) (actor, target *models.Account, err error) {
	if actorID == targetID {
		return nil, nil, Errf(KindInvalidInput, "actor and target are the same account")
	}
	first, second := actorID, targetID
	if second < first {
		first, second = second, first
	}
	a, err := tx.GetAccountForUpdate(ctx, first)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, Errf(KindNotFound, "account %d not found", first)
		}
		return nil, nil, err
	}
	b, err := tx.GetAccountForUpdate(ctx, second)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, Errf(KindNotFound, "account %d not found", second)
		}
		return nil, nil, err
	}
	if a.ID == actorID {
		return a, b, nil
	}
	return b, a, nil
}
