package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type DrawStatus string

const (
	DrawOpen      DrawStatus = "open"
	DrawClosed    DrawStatus = "closed"
	DrawCompleted DrawStatus = "completed"
	DrawCancelled DrawStatus = "cancelled"
)

// BetSetting is the per-bet-type configuration of one draw.
type BetSetting struct {
	PayoutRate float64 `json:"payout_rate"`
	MinBet     float64 `json:"min_bet"`
	MaxBet     float64 `json:"max_bet"`
	Enabled    bool    `json:"enabled"`
}

// BetSettings maps bet type to its setting, stored as a jsonb column.
type BetSettings map[BetType]BetSetting

func (s BetSettings) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *BetSettings) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for BetSettings")
	}
}

// DrawResult is the announced outcome of a completed draw. RunTop and
// RunBottom hold the single digits counted as running numbers.
type DrawResult struct {
	ThreeTop  string   `json:"three_top"`
	TwoTop    string   `json:"two_top"`
	TwoBottom string   `json:"two_bottom"`
	RunTop    []string `json:"run_top"`
	RunBottom []string `json:"run_bottom"`
}

func (r DrawResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *DrawResult) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("unsupported type for DrawResult")
	}
}

// Draw is one lottery event. Betting is accepted while Status is open and
// now is inside [OpenTime, CloseTime).
type Draw struct {
	gorm.Model

	LotteryType LotteryType `gorm:"size:32;index" json:"lottery_type"`
	DrawDate    time.Time   `gorm:"index" json:"draw_date"`
	OpenTime    time.Time   `json:"open_time"`
	CloseTime   time.Time   `json:"close_time"`
	Status      DrawStatus  `gorm:"size:16;index;default:open" json:"status"`
	Settings    BetSettings `gorm:"type:jsonb" json:"settings"`
	Result      *DrawResult `gorm:"type:jsonb" json:"result,omitempty"`
	CreatedBy   uint        `gorm:"index" json:"created_by"`
}

// CanTransition implements the lifecycle guard table. Completed is
// terminal; cancellation is reachable from open and closed only; completed
// must be entered through closed.
func (d *Draw) CanTransition(to DrawStatus) bool {
	switch d.Status {
	case DrawOpen:
		return to == DrawClosed || to == DrawCancelled
	case DrawClosed:
		return to == DrawCompleted || to == DrawCancelled
	default:
		return false
	}
}

// AcceptsBets reports whether a bet arriving at now may target the draw.
// The window is half-open: exactly OpenTime is accepted, exactly CloseTime
// is not.
func (d *Draw) AcceptsBets(now time.Time) bool {
	if d.Status != DrawOpen {
		return false
	}
	return !now.Before(d.OpenTime) && now.Before(d.CloseTime)
}

// Editable reports whether timing/settings updates are still allowed.
func (d *Draw) Editable() bool {
	return d.Status == DrawOpen
}

// Deletable reports whether the draw may be removed.
func (d *Draw) Deletable() bool {
	return d.Status == DrawOpen || d.Status == DrawCancelled
}

// ValidateTiming enforces open_time < close_time < draw_date and
// min_bet <= max_bet per enabled setting.
func (d *Draw) ValidateTiming() error {
	if !d.OpenTime.Before(d.CloseTime) {
		return errors.New("open_time must be before close_time")
	}
	if !d.CloseTime.Before(d.DrawDate) {
		return errors.New("close_time must be before draw_date")
	}
	for bt, s := range d.Settings {
		if !bt.Valid() {
			return errors.New("unknown bet type in settings: " + string(bt))
		}
		if s.MinBet > s.MaxBet {
			return errors.New("min_bet greater than max_bet for " + string(bt))
		}
	}
	return nil
}
