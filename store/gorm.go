package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lotto/models"
)

// GormStore is the postgres-backed Store. Atomic maps to a database
// transaction; ForUpdate getters use SELECT ... FOR UPDATE row locks.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Atomic(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// --- accounts ---

func (s *GormStore) CreateAccount(ctx context.Context, a *models.Account) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &a, nil
}

func (s *GormStore) GetAccountForUpdate(ctx context.Context, id uint) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &a, nil
}

func (s *GormStore) GetAccountByCode(ctx context.Context, code string) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&a).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &a, nil
}

func (s *GormStore) SaveAccount(ctx context.Context, a *models.Account) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *GormStore) ListAccountsByParent(ctx context.Context, parentID uint) ([]models.Account, error) {
	var out []models.Account
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("id").
		Find(&out).Error
	return out, err
}

// --- commission rates ---

func (s *GormStore) GetCommissionRate(ctx context.Context, accountID uint, lt models.LotteryType) (*models.CommissionRate, error) {
	var r models.CommissionRate
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND lottery_type = ?", accountID, lt).
		First(&r).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &r, nil
}

func (s *GormStore) UpsertCommissionRate(ctx context.Context, r *models.CommissionRate) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "lottery_type"}},
			UpdateAll: true,
		}).
		Create(r).Error
}

// --- draws ---

func (s *GormStore) CreateDraw(ctx context.Context, d *models.Draw) error {
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *GormStore) GetDraw(ctx context.Context, id uint) (*models.Draw, error) {
	var d models.Draw
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &d, nil
}

func (s *GormStore) GetDrawForUpdate(ctx context.Context, id uint) (*models.Draw, error) {
	var d models.Draw
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&d, id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &d, nil
}

func (s *GormStore) SaveDraw(ctx context.Context, d *models.Draw) error {
	return s.db.WithContext(ctx).Save(d).Error
}

func (s *GormStore) DeleteDraw(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.Draw{}, id).Error
}

func (s *GormStore) ListDrawsByStatus(ctx context.Context, status models.DrawStatus) ([]models.Draw, error) {
	var out []models.Draw
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("draw_date").
		Find(&out).Error
	return out, err
}

func (s *GormStore) HasDrawOnDay(ctx context.Context, lt models.LotteryType, createdBy uint, day time.Time) (bool, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.Draw{}).
		Where("lottery_type = ? AND created_by = ? AND draw_date >= ? AND draw_date < ?", lt, createdBy, from, to).
		Count(&n).Error
	return n > 0, err
}

// --- bets ---

func (s *GormStore) CreateBet(ctx context.Context, b *models.Bet) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *GormStore) GetBet(ctx context.Context, id uint) (*models.Bet, error) {
	var b models.Bet
	err := s.db.WithContext(ctx).
		Preload("Items").
		First(&b, id).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return &b, nil
}

func (s *GormStore) SaveBet(ctx context.Context, b *models.Bet) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(b).Error
}

func (s *GormStore) ListBetsByMember(ctx context.Context, memberID uint, f BetFilter) ([]models.Bet, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Bet{}).Where("member_id = ?", memberID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DrawID != 0 {
		q = q.Where("draw_id = ?", f.DrawID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Bet
	err := q.Preload("Items").
		Order("id DESC").
		Offset(f.Page.Offset()).
		Limit(f.Page.Size()).
		Find(&out).Error
	return out, total, err
}

func (s *GormStore) ListPendingBetsByDraw(ctx context.Context, drawID uint) ([]models.Bet, error) {
	var out []models.Bet
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "bets"}}).
		Preload("Items").
		Where("draw_id = ? AND status = ?", drawID, models.BetPending).
		Find(&out).Error
	return out, err
}

// --- ledger ---

func (s *GormStore) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *GormStore) ListLedgerEntries(ctx context.Context, accountID uint, p Page) ([]models.LedgerEntry, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("account_id = ?", accountID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.LedgerEntry
	err := q.Order("id DESC").
		Offset(p.Offset()).
		Limit(p.Size()).
		Find(&out).Error
	return out, total, err
}
