package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"lotto/models"
	"lotto/notify"
	"lotto/store"
)

// DrawService owns the draw registry: CRUD, the lifecycle state machine
// and bulk generation. Result announcement settles pending bets inside the
// same transaction as the status flip.
type DrawService struct {
	store  store.Store
	log    zerolog.Logger
	events *notify.Publisher
	now    func() time.Time
}

func NewDrawService(st store.Store, log zerolog.Logger, events *notify.Publisher) *DrawService {
	return &DrawService{store: st, log: log, events: events, now: time.Now}
}

type DrawRequest struct {
	LotteryType models.LotteryType `json:"lottery_type" validate:"required"`
	DrawDate    time.Time          `json:"draw_date" validate:"required"`
	OpenTime    time.Time          `json:"open_time" validate:"required"`
	CloseTime   time.Time          `json:"close_time" validate:"required"`
	Settings    models.BetSettings `json:"settings" validate:"required"`
}

// CreateDraw registers a new open draw. Only masters create draws.
func (s *DrawService) CreateDraw(ctx context.Context, creatorID uint, req DrawRequest) (*models.Draw, error) {
	creator, err := s.masterOnly(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	draw := &models.Draw{
		LotteryType: req.LotteryType,
		DrawDate:    req.DrawDate,
		OpenTime:    req.OpenTime,
		CloseTime:   req.CloseTime,
		Status:      models.DrawOpen,
		Settings:    req.Settings,
		CreatedBy:   creator.ID,
	}
	if err := draw.ValidateTiming(); err != nil {
		return nil, Errf(KindInvalidInput, "%s", err)
	}
	if err := s.store.CreateDraw(ctx, draw); err != nil {
		return nil, err
	}
	s.log.Info().Uint("draw", draw.ID).Str("type", string(draw.LotteryType)).Msg("draw created")
	return draw, nil
}

// UpdateDraw edits timing and settings. Permitted only while the draw is
// open; the timing invariant is re-validated on every edit.
func (s *DrawService) UpdateDraw(ctx context.Context, actorID, drawID uint, req DrawRequest) (*models.Draw, error) {
	if _, err := s.masterOnly(ctx, actorID); err != nil {
		return nil, err
	}
	var updated *models.Draw
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		draw, err := getDrawLocked(ctx, tx, drawID)
		if err != nil {
			return err
		}
		if !draw.Editable() {
			return Errf(KindInvalidTransition, "draw %d is %s and no longer editable", draw.ID, draw.Status)
		}
		draw.LotteryType = req.LotteryType
		draw.DrawDate = req.DrawDate
		draw.OpenTime = req.OpenTime
		draw.CloseTime = req.CloseTime
		draw.Settings = req.Settings
		if err := draw.ValidateTiming(); err != nil {
			return Errf(KindInvalidInput, "%s", err)
		}
		if err := tx.SaveDraw(ctx, draw); err != nil {
			return err
		}
		updated = draw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangeStatus drives the lifecycle machine. closed -> completed requires
// the result payload in the same call and settles all pending bets within
// the same transaction, so a half-announced result can never be observed.
func (s *DrawService) ChangeStatus(ctx context.Context, actorID, drawID uint, to models.DrawStatus, result *models.DrawResult) (*models.Draw, *SettleSummary, error) {
	if _, err := s.masterOnly(ctx, actorID); err != nil {
		return nil, nil, err
	}

	var updated *models.Draw
	var summary *SettleSummary
	var events []notify.Event

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		draw, err := getDrawLocked(ctx, tx, drawID)
		if err != nil {
			return err
		}
		if !draw.CanTransition(to) {
			return Errf(KindInvalidTransition, "cannot move draw %d from %s to %s", draw.ID, draw.Status, to)
		}
		if to == models.DrawCompleted {
			if result == nil {
				return Errf(KindInvalidInput, "completing a draw requires a result payload")
			}
			if err := validateResult(result); err != nil {
				return err
			}
			draw.Result = result
		}
		draw.Status = to
		if err := tx.SaveDraw(ctx, draw); err != nil {
			return err
		}
		updated = draw

		if to == models.DrawCompleted {
			summary, events, err = settlePendingBets(ctx, tx, draw, s.now())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	for _, ev := range events {
		s.events.Publish(ctx, ev)
	}
	s.log.Info().Uint("draw", drawID).Str("to", string(to)).Msg("draw status changed")
	return updated, summary, nil
}

// DeleteDraw removes a draw; permitted only in open or cancelled state.
func (s *DrawService) DeleteDraw(ctx context.Context, actorID, drawID uint) error {
	if _, err := s.masterOnly(ctx, actorID); err != nil {
		return err
	}
	return s.store.Atomic(ctx, func(tx store.Store) error {
		draw, err := getDrawLocked(ctx, tx, drawID)
		if err != nil {
			return err
		}
		if !draw.Deletable() {
			return Errf(KindInvalidTransition, "draw %d is %s and cannot be deleted", draw.ID, draw.Status)
		}
		return tx.DeleteDraw(ctx, draw.ID)
	})
}

// OpenDrawView is the per-type betting board entry.
type OpenDrawView struct {
	LotteryType models.LotteryType `json:"lottery_type"`
	Draw        *models.Draw       `json:"draw,omitempty"`
	HasOpenDraw bool               `json:"has_open_draw"`
}

// ListOpenByType returns, for each requested lottery type, the next open
// draw currently accepting bets. With no types given it reports every type
// that has an open draw.
func (s *DrawService) ListOpenByType(ctx context.Context, types []models.LotteryType) ([]OpenDrawView, error) {
	open, err := s.store.ListDrawsByStatus(ctx, models.DrawOpen)
	if err != nil {
		return nil, err
	}
	now := s.now()
	next := map[models.LotteryType]*models.Draw{}
	for i := range open {
		d := &open[i]
		if !d.AcceptsBets(now) {
			continue
		}
		if cur, ok := next[d.LotteryType]; !ok || d.DrawDate.Before(cur.DrawDate) {
			next[d.LotteryType] = d
		}
	}
	if len(types) == 0 {
		for lt := range next {
			types = append(types, lt)
		}
	}
	out := make([]OpenDrawView, 0, len(types))
	for _, lt := range types {
		v := OpenDrawView{LotteryType: lt}
		if d, ok := next[lt]; ok {
			v.Draw = d
			v.HasOpenDraw = true
		}
		out = append(out, v)
	}
	return out, nil
}

// CloseExpired flips open draws whose close time has passed to closed.
// Run periodically so the betting window stays honest even when nobody
// closes draws by hand.
func (s *DrawService) CloseExpired(ctx context.Context) (int, error) {
	now := s.now()
	closed := 0
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		open, err := tx.ListDrawsByStatus(ctx, models.DrawOpen)
		if err != nil {
			return err
		}
		for i := range open {
			d := &open[i]
			if d.CloseTime.After(now) {
				continue
			}
			d.Status = models.DrawClosed
			if err := tx.SaveDraw(ctx, d); err != nil {
				return err
			}
			closed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if closed > 0 {
		s.log.Info().Int("count", closed).Msg("expired draws closed")
	}
	return closed, nil
}

func (s *DrawService) masterOnly(ctx context.Context, actorID uint) (*models.Account, error) {
	actor, err := s.store.GetAccount(ctx, actorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "account %d not found", actorID)
		}
		return nil, err
	}
	if actor.Role != models.RoleMaster {
		return nil, Errf(KindForbidden, "only master accounts manage draws")
	}
	if !actor.Active() {
		return nil, Errf(KindForbidden, "account %s is suspended", actor.Code)
	}
	return actor, nil
}

func getDrawLocked(ctx context.Context, tx store.Store, drawID uint) (*models.Draw, error) {
	draw, err := tx.GetDrawForUpdate(ctx, drawID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errf(KindNotFound, "draw %d not found", drawID)
		}
		return nil, err
	}
	return draw, nil
}

func validateResult(r *models.DrawResult) error {
	if !models.BetThreeTop.ValidNumber(r.ThreeTop) {
		return Errf(KindInvalidInput, "result three_top must be 3 digits")
	}
	if !models.BetTwoTop.ValidNumber(r.TwoTop) {
		return Errf(KindInvalidInput, "result two_top must be 2 digits")
	}
	if !models.BetTwoBottom.ValidNumber(r.TwoBottom) {
		return Errf(KindInvalidInput, "result two_bottom must be 2 digits")
	}
	for _, d := range r.RunTop {
		if !models.BetRunTop.ValidNumber(d) {
			return Errf(KindInvalidInput, "result run_top entries must be single digits")
		}
	}
	for _, d := range r.RunBottom {
		if !models.BetRunBottom.ValidNumber(d) {
			return Errf(KindInvalidInput, "result run_bottom entries must be single digits")
		}
	}
	return nil
}

// --- bulk generation ---

type BulkFrequency string

const (
	FreqDaily     BulkFrequency = "daily"
	FreqWeekly    BulkFrequency = "weekly"    // same weekday as generation day
	FreqWeekdays  BulkFrequency = "weekdays"  // explicit weekday set
	FreqMonthDays BulkFrequency = "monthdays" // explicit day-of-month set
)

type BulkGenerateRequest struct {
	LotteryTypes   []models.LotteryType `json:"lottery_types" validate:"required,min=1"`
	Days           int                  `json:"days" validate:"required,min=1,max=366"`
	Frequency      BulkFrequency        `json:"frequency" validate:"required"`
	Weekdays       []time.Weekday       `json:"weekdays"`
	MonthDays      []int                `json:"month_days"`
	DrawHour       int                  `json:"draw_hour"`
	DrawMinute     int                  `json:"draw_minute"`
	OpenOffsetMin  int                  `json:"open_offset_min"`
	CloseOffsetMin int                  `json:"close_offset_min"`
	Settings       models.BetSettings   `json:"settings" validate:"required"`
}

type BulkItemError struct {
	LotteryType models.LotteryType `json:"lottery_type"`
	Date        string             `json:"date"`
	Reason      string             `json:"reason"`
}

type BulkGenerateResult struct {
	Created []models.Draw   `json:"created"`
	Errors  []BulkItemError `json:"errors"`
}

// BulkGenerate creates one draw per (type, matching date) over the horizon.
// Dates already holding a draw of that type for this creator are skipped as
// per-item errors; a bad offset ordering also errors per item rather than
// aborting the batch. The whole batch runs in one transaction so the
// duplicate check and the inserts cannot interleave with a concurrent batch.
func (s *DrawService) BulkGenerate(ctx context.Context, creatorID uint, req BulkGenerateRequest) (*BulkGenerateResult, error) {
	creator, err := s.masterOnly(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if req.Days < 1 {
		return nil, Errf(KindInvalidInput, "days must be at least 1")
	}
	if len(req.LotteryTypes) == 0 {
		return nil, Errf(KindInvalidInput, "at least one lottery type is required")
	}

	result := &BulkGenerateResult{}
	now := s.now()

	err = s.store.Atomic(ctx, func(tx store.Store) error {
		for day := 0; day < req.Days; day++ {
			date := now.AddDate(0, 0, day)
			if !matchesFrequency(req, now, date) {
				continue
			}
			drawAt := time.Date(date.Year(), date.Month(), date.Day(),
				req.DrawHour, req.DrawMinute, 0, 0, date.Location())

			for _, lt := range req.LotteryTypes {
				itemErr := func(reason string) {
					result.Errors = append(result.Errors, BulkItemError{
						LotteryType: lt,
						Date:        drawAt.Format("2006-01-02"),
						Reason:      reason,
					})
				}

				exists, err := tx.HasDrawOnDay(ctx, lt, creator.ID, drawAt)
				if err != nil {
					return err
				}
				if exists {
					itemErr("draw already exists for this date")
					continue
				}

				draw := models.Draw{
					LotteryType: lt,
					DrawDate:    drawAt,
					OpenTime:    drawAt.Add(-time.Duration(req.OpenOffsetMin) * time.Minute),
					CloseTime:   drawAt.Add(-time.Duration(req.CloseOffsetMin) * time.Minute),
					Status:      models.DrawOpen,
					Settings:    req.Settings,
					CreatedBy:   creator.ID,
				}
				if err := draw.ValidateTiming(); err != nil {
					itemErr(err.Error())
					continue
				}
				if err := tx.CreateDraw(ctx, &draw); err != nil {
					return err
				}
				result.Created = append(result.Created, draw)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("created", len(result.Created)).
		Int("errors", len(result.Errors)).
		Msg("bulk draw generation finished")
	return result, nil
}

func matchesFrequency(req BulkGenerateRequest, base, date time.Time) bool {
	switch req.Frequency {
	case FreqDaily:
		return true
	case FreqWeekly:
		return date.Weekday() == base.Weekday()
	case FreqWeekdays:
		for _, wd := range req.Weekdays {
			if date.Weekday() == wd {
				return true
			}
		}
		return false
	case FreqMonthDays:
		for _, md := range req.MonthDays {
			if date.Day() == md {
				return true
			}
		}
		return false
	}
	return false
}
