package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"lotto/models"
)

// MemoryStore is an in-memory Store used by tests. A single mutex
// serializes Atomic scopes, and a pre-scope snapshot restores the data on
// error, giving the same all-or-nothing behavior the gorm store gets from
// database transactions.
type MemoryStore struct {
	mu sync.Mutex
	d  *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{d: &memData{
		accounts: map[uint]models.Account{},
		rates:    map[uint]models.CommissionRate{},
		draws:    map[uint]models.Draw{},
		bets:     map[uint]models.Bet{},
	}}
}

func (m *MemoryStore) Atomic(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.d.clone()
	if err := fn(&memTx{d: m.d}); err != nil {
		m.d = snap
		return err
	}
	return nil
}

type memData struct {
	accounts map[uint]models.Account
	rates    map[uint]models.CommissionRate
	draws    map[uint]models.Draw
	bets     map[uint]models.Bet
	ledger   []models.LedgerEntry

	accountSeq uint
	rateSeq    uint
	drawSeq    uint
	betSeq     uint
	itemSeq    uint
	ledgerSeq  uint
}

func (d *memData) clone() *memData {
	c := &memData{
		accounts:   make(map[uint]models.Account, len(d.accounts)),
		rates:      make(map[uint]models.CommissionRate, len(d.rates)),
		draws:      make(map[uint]models.Draw, len(d.draws)),
		bets:       make(map[uint]models.Bet, len(d.bets)),
		ledger:     append([]models.LedgerEntry(nil), d.ledger...),
		accountSeq: d.accountSeq,
		rateSeq:    d.rateSeq,
		drawSeq:    d.drawSeq,
		betSeq:     d.betSeq,
		itemSeq:    d.itemSeq,
		ledgerSeq:  d.ledgerSeq,
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.rates {
		c.rates[k] = v
	}
	for k, v := range d.draws {
		c.draws[k] = copyDraw(v)
	}
	for k, v := range d.bets {
		c.bets[k] = copyBet(v)
	}
	return c
}

func copyDraw(d models.Draw) models.Draw {
	if d.Settings != nil {
		s := make(models.BetSettings, len(d.Settings))
		for k, v := range d.Settings {
			s[k] = v
		}
		d.Settings = s
	}
	if d.Result != nil {
		r := *d.Result
		r.RunTop = append([]string(nil), d.Result.RunTop...)
		r.RunBottom = append([]string(nil), d.Result.RunBottom...)
		d.Result = &r
	}
	return d
}

func copyBet(b models.Bet) models.Bet {
	b.Items = append([]models.BetItem(nil), b.Items...)
	b.Commission.Agent.Rates = copyRateMap(b.Commission.Agent.Rates)
	b.Commission.Member.Rates = copyRateMap(b.Commission.Member.Rates)
	if b.SettledAt != nil {
		t := *b.SettledAt
		b.SettledAt = &t
	}
	return b
}

func copyRateMap(m map[models.BetType]float64) map[models.BetType]float64 {
	if m == nil {
		return nil
	}
	c := make(map[models.BetType]float64, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// --- data operations (no locking; callers hold the mutex) ---

func (d *memData) createAccount(a *models.Account) error {
	d.accountSeq++
	a.ID = d.accountSeq
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	d.accounts[a.ID] = *a
	return nil
}

func (d *memData) getAccount(id uint) (*models.Account, error) {
	a, ok := d.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (d *memData) getAccountByCode(code string) (*models.Account, error) {
	for _, a := range d.accounts {
		if a.Code == code {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) saveAccount(a *models.Account) error {
	if _, ok := d.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = time.Now()
	d.accounts[a.ID] = *a
	return nil
}

func (d *memData) listAccountsByParent(parentID uint) ([]models.Account, error) {
	var out []models.Account
	for _, a := range d.accounts {
		if a.ParentID != nil && *a.ParentID == parentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memData) getCommissionRate(accountID uint, lt models.LotteryType) (*models.CommissionRate, error) {
	for _, r := range d.rates {
		if r.AccountID == accountID && r.LotteryType == lt {
			out := r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) upsertCommissionRate(r *models.CommissionRate) error {
	if existing, err := d.getCommissionRate(r.AccountID, r.LotteryType); err == nil {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	} else {
		d.rateSeq++
		r.ID = d.rateSeq
		r.CreatedAt = time.Now()
	}
	r.UpdatedAt = time.Now()
	d.rates[r.ID] = *r
	return nil
}

func (d *memData) createDraw(dr *models.Draw) error {
	d.drawSeq++
	dr.ID = d.drawSeq
	dr.CreatedAt = time.Now()
	dr.UpdatedAt = dr.CreatedAt
	d.draws[dr.ID] = copyDraw(*dr)
	return nil
}

func (d *memData) getDraw(id uint) (*models.Draw, error) {
	dr, ok := d.draws[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDraw(dr)
	return &out, nil
}

func (d *memData) saveDraw(dr *models.Draw) error {
	if _, ok := d.draws[dr.ID]; !ok {
		return ErrNotFound
	}
	dr.UpdatedAt = time.Now()
	d.draws[dr.ID] = copyDraw(*dr)
	return nil
}

func (d *memData) deleteDraw(id uint) error {
	delete(d.draws, id)
	return nil
}

func (d *memData) listDrawsByStatus(status models.DrawStatus) ([]models.Draw, error) {
	var out []models.Draw
	for _, dr := range d.draws {
		if dr.Status == status {
			out = append(out, copyDraw(dr))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DrawDate.Before(out[j].DrawDate) })
	return out, nil
}

func (d *memData) hasDrawOnDay(lt models.LotteryType, createdBy uint, day time.Time) (bool, error) {
	y, mo, dd := day.Date()
	for _, dr := range d.draws {
		dy, dmo, ddd := dr.DrawDate.Date()
		if dr.LotteryType == lt && dr.CreatedBy == createdBy && dy == y && dmo == mo && ddd == dd {
			return true, nil
		}
	}
	return false, nil
}

func (d *memData) createBet(b *models.Bet) error {
	d.betSeq++
	b.ID = d.betSeq
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	for i := range b.Items {
		d.itemSeq++
		b.Items[i].ID = d.itemSeq
		b.Items[i].BetID = b.ID
		b.Items[i].CreatedAt = b.CreatedAt
	}
	d.bets[b.ID] = copyBet(*b)
	return nil
}

func (d *memData) getBet(id uint) (*models.Bet, error) {
	b, ok := d.bets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyBet(b)
	return &out, nil
}

func (d *memData) saveBet(b *models.Bet) error {
	if _, ok := d.bets[b.ID]; !ok {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now()
	d.bets[b.ID] = copyBet(*b)
	return nil
}

func (d *memData) listBetsByMember(memberID uint, f BetFilter) ([]models.Bet, int64, error) {
	var all []models.Bet
	for _, b := range d.bets {
		if b.MemberID != memberID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.DrawID != 0 && b.DrawID != f.DrawID {
			continue
		}
		all = append(all, copyBet(b))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	off := f.Page.Offset()
	if off > len(all) {
		off = len(all)
	}
	end := off + f.Page.Size()
	if end > len(all) {
		end = len(all)
	}
	return all[off:end], total, nil
}

func (d *memData) listPendingBetsByDraw(drawID uint) ([]models.Bet, error) {
	var out []models.Bet
	for _, b := range d.bets {
		if b.DrawID == drawID && b.Status == models.BetPending {
			out = append(out, copyBet(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *memData) createLedgerEntry(e *models.LedgerEntry) error {
	d.ledgerSeq++
	e.ID = d.ledgerSeq
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	d.ledger = append(d.ledger, *e)
	return nil
}

func (d *memData) listLedgerEntries(accountID uint, p Page) ([]models.LedgerEntry, int64, error) {
	var all []models.LedgerEntry
	for _, e := range d.ledger {
		if e.AccountID == accountID {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	off := p.Offset()
	if off > len(all) {
		off = len(all)
	}
	end := off + p.Size()
	if end > len(all) {
		end = len(all)
	}
	return all[off:end], total, nil
}

// memTx is the view handed to Atomic callbacks; the enclosing MemoryStore
// already holds the mutex, so methods delegate without locking.
type memTx struct {
	d *memData
}

func (t *memTx) Atomic(ctx context.Context, fn func(Store) error) error { return fn(t) }

func (t *memTx) CreateAccount(_ context.Context, a *models.Account) error { return t.d.createAccount(a) }
func (t *memTx) GetAccount(_ context.Context, id uint) (*models.Account, error) {
	return t.d.getAccount(id)
}
func (t *memTx) GetAccountForUpdate(_ context.Context, id uint) (*models.Account, error) {
	return t.d.getAccount(id)
}
func (t *memTx) GetAccountByCode(_ context.Context, code string) (*models.Account, error) {
	return t.d.getAccountByCode(code)
}
func (t *memTx) SaveAccount(_ context.Context, a *models.Account) error { return t.d.saveAccount(a) }
func (t *memTx) ListAccountsByParent(_ context.Context, parentID uint) ([]models.Account, error) {
	return t.d.listAccountsByParent(parentID)
}
func (t *memTx) GetCommissionRate(_ context.Context, accountID uint, lt models.LotteryType) (*models.CommissionRate, error) {
	return t.d.getCommissionRate(accountID, lt)
}
func (t *memTx) UpsertCommissionRate(_ context.Context, r *models.CommissionRate) error {
	return t.d.upsertCommissionRate(r)
}
func (t *memTx) CreateDraw(_ context.Context, d *models.Draw) error { return t.d.createDraw(d) }
func (t *memTx) GetDraw(_ context.Context, id uint) (*models.Draw, error) {
	return t.d.getDraw(id)
}
func (t *memTx) GetDrawForUpdate(_ context.Context, id uint) (*models.Draw, error) {
	return t.d.getDraw(id)
}
func (t *memTx) SaveDraw(_ context.Context, d *models.Draw) error { return t.d.saveDraw(d) }
func (t *memTx) DeleteDraw(_ context.Context, id uint) error      { return t.d.deleteDraw(id) }
func (t *memTx) ListDrawsByStatus(_ context.Context, status models.DrawStatus) ([]models.Draw, error) {
	return t.d.listDrawsByStatus(status)
}
func (t *memTx) HasDrawOnDay(_ context.Context, lt models.LotteryType, createdBy uint, day time.Time) (bool, error) {
	return t.d.hasDrawOnDay(lt, createdBy, day)
}
func (t *memTx) CreateBet(_ context.Context, b *models.Bet) error { return t.d.createBet(b) }
func (t *memTx) GetBet(_ context.Context, id uint) (*models.Bet, error) {
	return t.d.getBet(id)
}
func (t *memTx) SaveBet(_ context.Context, b *models.Bet) error { return t.d.saveBet(b) }
func (t *memTx) ListBetsByMember(_ context.Context, memberID uint, f BetFilter) ([]models.Bet, int64, error) {
	return t.d.listBetsByMember(memberID, f)
}
func (t *memTx) ListPendingBetsByDraw(_ context.Context, drawID uint) ([]models.Bet, error) {
	return t.d.listPendingBetsByDraw(drawID)
}
func (t *memTx) CreateLedgerEntry(_ context.Context, e *models.LedgerEntry) error {
	return t.d.createLedgerEntry(e)
}
func (t *memTx) ListLedgerEntries(_ context.Context, accountID uint, p Page) ([]models.LedgerEntry, int64, error) {
	return t.d.listLedgerEntries(accountID, p)
}

// --- top-level (auto-commit) wrappers ---

func (m *MemoryStore) CreateAccount(ctx context.Context, a *models.Account) error {
	return m.one(func(t *memTx) error { return t.CreateAccount(ctx, a) })
}
func (m *MemoryStore) GetAccount(ctx context.Context, id uint) (a *models.Account, err error) {
	err = m.one(func(t *memTx) error { a, err = t.GetAccount(ctx, id); return err })
	return
}
func (m *MemoryStore) GetAccountForUpdate(ctx context.Context, id uint) (*models.Account, error) {
	return m.GetAccount(ctx, id)
}
func (m *MemoryStore) GetAccountByCode(ctx context.Context, code string) (a *models.Account, err error) {
	err = m.one(func(t *memTx) error { a, err = t.GetAccountByCode(ctx, code); return err })
	return
}
func (m *MemoryStore) SaveAccount(ctx context.Context, a *models.Account) error {
	return m.one(func(t *memTx) error { return t.SaveAccount(ctx, a) })
}
func (m *MemoryStore) ListAccountsByParent(ctx context.Context, parentID uint) (out []models.Account, err error) {
	err = m.one(func(t *memTx) error { out, err = t.ListAccountsByParent(ctx, parentID); return err })
	return
}
func (m *MemoryStore) GetCommissionRate(ctx context.Context, accountID uint, lt models.LotteryType) (r *models.CommissionRate, err error) {
	err = m.one(func(t *memTx) error { r, err = t.GetCommissionRate(ctx, accountID, lt); return err })
	return
}
func (m *MemoryStore) UpsertCommissionRate(ctx context.Context, r *models.CommissionRate) error {
	return m.one(func(t *memTx) error { return t.UpsertCommissionRate(ctx, r) })
}
func (m *MemoryStore) CreateDraw(ctx context.Context, d *models.Draw) error {
	return m.one(func(t *memTx) error { return t.CreateDraw(ctx, d) })
}
func (m *MemoryStore) GetDraw(ctx context.Context, id uint) (d *models.Draw, err error) {
	err = m.one(func(t *memTx) error { d, err = t.GetDraw(ctx, id); return err })
	return
}
func (m *MemoryStore) GetDrawForUpdate(ctx context.Context, id uint) (*models.Draw, error) {
	return m.GetDraw(ctx, id)
}
func (m *MemoryStore) SaveDraw(ctx context.Context, d *models.Draw) error {
	return m.one(func(t *memTx) error { return t.SaveDraw(ctx, d) })
}
func (m *MemoryStore) DeleteDraw(ctx context.Context, id uint) error {
	return m.one(func(t *memTx) error { return t.DeleteDraw(ctx, id) })
}
func (m *MemoryStore) ListDrawsByStatus(ctx context.Context, status models.DrawStatus) (out []models.Draw, err error) {
	err = m.one(func(t *memTx) error { out, err = t.ListDrawsByStatus(ctx, status); return err })
	return
}
func (m *MemoryStore) HasDrawOnDay(ctx context.Context, lt models.LotteryType, createdBy uint, day time.Time) (ok bool, err error) {
	err = m.one(func(t *memTx) error { ok, err = t.HasDrawOnDay(ctx, lt, createdBy, day); return err })
	return
}
func (m *MemoryStore) CreateBet(ctx context.Context, b *models.Bet) error {
	return m.one(func(t *memTx) error { return t.CreateBet(ctx, b) })
}
func (m *MemoryStore) GetBet(ctx context.Context, id uint) (b *models.Bet, err error) {
	err = m.one(func(t *memTx) error { b, err = t.GetBet(ctx, id); return err })
	return
}
func (m *MemoryStore) SaveBet(ctx context.Context, b *models.Bet) error {
	return m.one(func(t *memTx) error { return t.SaveBet(ctx, b) })
}
func (m *MemoryStore) ListBetsByMember(ctx context.Context, memberID uint, f BetFilter) (out []models.Bet, total int64, err error) {
	err = m.one(func(t *memTx) error { out, total, err = t.ListBetsByMember(ctx, memberID, f); return err })
	return
}
func (m *MemoryStore) ListPendingBetsByDraw(ctx context.Context, drawID uint) (out []models.Bet, err error) {
	err = m.one(func(t *memTx) error { out, err = t.ListPendingBetsByDraw(ctx, drawID); return err })
	return
}
func (m *MemoryStore) CreateLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	return m.one(func(t *memTx) error { return t.CreateLedgerEntry(ctx, e) })
}
func (m *MemoryStore) ListLedgerEntries(ctx context.Context, accountID uint, p Page) (out []models.LedgerEntry, total int64, err error) {
	err = m.one(func(t *memTx) error { out, total, err = t.ListLedgerEntries(ctx, accountID, p); return err })
	return
}

func (m *MemoryStore) one(fn func(t *memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&memTx{d: m.d})
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*memTx)(nil)
var _ Store = (*GormStore)(nil)
