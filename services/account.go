package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"lotto/models"
	"lotto/store"
)

// AccountService owns account creation and the tier-authority read models.
// Master creates agents, agents create members; member creation moves the
// initial credit out of the agent's own credit line.
type AccountService struct {
	store store.Store
	log   zerolog.Logger
}

func NewAccountService(st store.Store, log zerolog.Logger) *AccountService {
	return &AccountService{store: st, log: log}
}

type RegisterRequest struct {
	Name          string  `json:"name" validate:"required,max=64"`
	InitialCredit float64 `json:"initial_credit" validate:"gte=0"`
}

// RegisterAgent creates an agent under a master. Master liquidity is
// unlimited, so the initial credit is not deducted from anywhere.
func (s *AccountService) RegisterAgent(ctx context.Context, masterID uint, req RegisterRequest) (*models.Account, error) {
	master, err := s.activeAccount(ctx, masterID)
	if err != nil {
		return nil, err
	}
	if master.Role != models.RoleMaster {
		return nil, Errf(KindForbidden, "only master accounts register agents")
	}
	if !finite(req.InitialCredit) || req.InitialCredit < 0 {
		return nil, Errf(KindInvalidInput, "initial credit must be a non-negative finite number")
	}

	agent := &models.Account{
		Code:      generateAccountCode("a"),
		Name:      req.Name,
		SecretKey: uuid.New().String(),
		Role:      models.RoleAgent,
		ParentID:  &master.ID,
		Credit:    req.InitialCredit,
		Status:    models.AccountActive,
	}
	if err := s.store.CreateAccount(ctx, agent); err != nil {
		return nil, err
	}
	s.log.Info().Uint("agent", agent.ID).Uint("master", masterID).Msg("agent registered")
	return agent, nil
}

// RegisterMember creates a member under an agent. The initial credit comes
// out of the agent's own credit line atomically with the creation, and the
// allocation is recorded in the ledger.
func (s *AccountService) RegisterMember(ctx context.Context, agentID uint, req RegisterRequest) (*models.Account, error) {
	if !finite(req.InitialCredit) || req.InitialCredit < 0 {
		return nil, Errf(KindInvalidInput, "initial credit must be a non-negative finite number")
	}

	var member *models.Account
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		agent, err := tx.GetAccountForUpdate(ctx, agentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Errf(KindNotFound, "account %d not found", agentID)
			}
			return err
		}
		if agent.Role != models.RoleAgent {
			return Errf(KindForbidden, "only agent accounts register members")
		}
		if !agent.Active() {
			return Errf(KindForbidden, "agent %s is suspended", agent.Code)
		}
		if agent.Credit < req.InitialCredit {
			return Errf(KindInsufficientFunds,
				"agent credit %.2f is less than %.2f", agent.Credit, req.InitialCredit)
		}

		agent.Credit -= req.InitialCredit
		if err := tx.SaveAccount(ctx, agent); err != nil {
			return err
		}

		member = &models.Account{
			Code:      generateAccountCode("m"),
			Name:      req.Name,
			SecretKey: uuid.New().String(),
			Role:      models.RoleMember,
			ParentID:  &agent.ID,
			Credit:    req.InitialCredit,
			Status:    models.AccountActive,
		}
		if err := tx.CreateAccount(ctx, member); err != nil {
			return err
		}

		if req.InitialCredit > 0 {
			entry := &models.LedgerEntry{
				PerformerID:   agent.ID,
				AccountID:     member.ID,
				Action:        models.LedgerAdd,
				Amount:        req.InitialCredit,
				BalanceBefore: 0,
				BalanceAfter:  req.InitialCredit,
				Note:          "Initial credit allocation",
				RefID:         uuid.New().String(),
			}
			if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("member", member.ID).Uint("agent", agentID).Msg("member registered")
	return member, nil
}

// SetStatus suspends or reactivates a direct downline. Suspension is the
// deactivation mechanism; accounts are never hard-deleted.
func (s *AccountService) SetStatus(ctx context.Context, actorID, targetID uint, status models.AccountStatus) (*models.Account, error) {
	if status != models.AccountActive && status != models.AccountSuspended {
		return nil, Errf(KindInvalidInput, "unknown status %q", status)
	}
	var target *models.Account
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		actor, err := s.activeAccountIn(ctx, tx, actorID)
		if err != nil {
			return err
		}
		target, err = tx.GetAccountForUpdate(ctx, targetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Errf(KindNotFound, "account %d not found", targetID)
			}
			return err
		}
		if target.ParentID == nil || *target.ParentID != actor.ID {
			return Errf(KindNotFound, "account %d is not a downline of %d", targetID, actorID)
		}
		target.Status = status
		return tx.SaveAccount(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

// UpsertCommissionRates sets a downline's commission percentages for one
// lottery type. Rates snapshot onto bets at placement, so edits never
// rewrite history.
func (s *AccountService) UpsertCommissionRates(ctx context.Context, actorID uint, rate models.CommissionRate) (*models.CommissionRate, error) {
	for _, bt := range models.AllBetTypes {
		pct := rate.RateFor(bt)
		if pct < 0 || pct > 100 {
			return nil, Errf(KindInvalidInput, "%s rate %.2f outside 0-100", bt, pct)
		}
	}
	if rate.LotteryType == "" {
		return nil, Errf(KindInvalidInput, "lottery type is required")
	}

	actor, err := s.activeAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetAccount(ctx, rate.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "account %d not found", rate.AccountID)
		}
		return nil, err
	}
	if target.ParentID == nil || *target.ParentID != actor.ID {
		return nil, Errf(KindNotFound, "account %d is not a downline of %d", target.ID, actor.ID)
	}
	if err := s.store.UpsertCommissionRate(ctx, &rate); err != nil {
		return nil, err
	}
	return &rate, nil
}

// Info returns one account with its spending power, scoped to the actor's
// authority: self, direct parent, or any master.
func (s *AccountService) Info(ctx context.Context, actorID, targetID uint) (*models.Account, error) {
	actor, err := s.activeAccount(ctx, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.GetAccount(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "account %d not found", targetID)
		}
		return nil, err
	}
	if !canView(actor, target) {
		return nil, Errf(KindNotFound, "account %d not found", targetID)
	}
	return target, nil
}

// Downlines lists the actor's direct children.
func (s *AccountService) Downlines(ctx context.Context, actorID uint) ([]models.Account, error) {
	if _, err := s.activeAccount(ctx, actorID); err != nil {
		return nil, err
	}
	return s.store.ListAccountsByParent(ctx, actorID)
}

// LedgerHistory pages through an account's ledger, newest first.
func (s *AccountService) LedgerHistory(ctx context.Context, actorID, targetID uint, p store.Page) ([]models.LedgerEntry, int64, error) {
	actor, err := s.activeAccount(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	target, err := s.store.GetAccount(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, Errf(KindNotFound, "account %d not found", targetID)
		}
		return nil, 0, err
	}
	if !canView(actor, target) {
		return nil, 0, Errf(KindNotFound, "account %d not found", targetID)
	}
	return s.store.ListLedgerEntries(ctx, targetID, p)
}

func (s *AccountService) activeAccount(ctx context.Context, id uint) (*models.Account, error) {
	return s.activeAccountIn(ctx, s.store, id)
}

func (s *AccountService) activeAccountIn(ctx context.Context, st store.Store, id uint) (*models.Account, error) {
	a, err := st.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "account %d not found", id)
		}
		return nil, err
	}
	if !a.Active() {
		return nil, Errf(KindForbidden, "account %s is suspended", a.Code)
	}
	return a, nil
}

// canView: self, direct parent, or any master.
func canView(actor, target *models.Account) bool {
	if actor.ID == target.ID || actor.Role == models.RoleMaster {
		return true
	}
	return target.ParentID != nil && *target.ParentID == actor.ID
}
