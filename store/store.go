// Package store owns persistence for accounts, draws, bets and the ledger.
// Services talk to the Store interface; the gorm implementation backs
// production, the memory implementation backs tests.
package store

import (
	"context"
	"errors"
	"time"

	"lotto/models"
)

// ErrNotFound is returned by every Get* when the record does not exist.
var ErrNotFound = errors.New("record not found")

// Page is a 1-based pagination request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	page := p.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * p.Size()
}

func (p Page) Size() int {
	if p.Limit < 1 {
		return 20
	}
	return p.Limit
}

// BetFilter narrows bet listings.
type BetFilter struct {
	Status models.BetStatus
	DrawID uint
	Page   Page
}

// Store is the persistence boundary. Atomic runs fn against a store view
// whose reads and writes commit together or not at all; ForUpdate getters
// additionally take a write lock on the row for the duration of the
// enclosing Atomic scope.
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error

	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, id uint) (*models.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*models.Account, error)
	SaveAccount(ctx context.Context, a *models.Account) error
	ListAccountsByParent(ctx context.Context, parentID uint) ([]models.Account, error)

	GetCommissionRate(ctx context.Context, accountID uint, lt models.LotteryType) (*models.CommissionRate, error)
	UpsertCommissionRate(ctx context.Context, r *models.CommissionRate) error

	CreateDraw(ctx context.Context, d *models.Draw) error
	GetDraw(ctx context.Context, id uint) (*models.Draw, error)
	GetDrawForUpdate(ctx context.Context, id uint) (*models.Draw, error)
	SaveDraw(ctx context.Context, d *models.Draw) error
	DeleteDraw(ctx context.Context, id uint) error
	ListDrawsByStatus(ctx context.Context, status models.DrawStatus) ([]models.Draw, error)
	HasDrawOnDay(ctx context.Context, lt models.LotteryType, createdBy uint, day time.Time) (bool, error)

	CreateBet(ctx context.Context, b *models.Bet) error
	GetBet(ctx context.Context, id uint) (*models.Bet, error)
	SaveBet(ctx context.Context, b *models.Bet) error
	ListBetsByMember(ctx context.Context, memberID uint, f BetFilter) ([]models.Bet, int64, error)
	ListPendingBetsByDraw(ctx context.Context, drawID uint) ([]models.Bet, error)

	CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, accountID uint, p Page) ([]models.LedgerEntry, int64, error)
}
