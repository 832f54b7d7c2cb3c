package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetWon       BetStatus = "won"
	BetLost      BetStatus = "lost"
	BetCancelled BetStatus = "cancelled"
)

// MaxBetNoteLen is the authoritative cap on a bet note. Over-length notes
// are rejected, never truncated.
const MaxBetNoteLen = 100

// CommissionPart is one actor's share of the commission snapshot: the rate
// table in force at placement time plus the computed total.
type CommissionPart struct {
	Rates map[BetType]float64 `json:"rates"`
	Total float64             `json:"total"`
}

// CommissionSnapshot freezes the agent and member commission at placement
// time so later rate edits never alter historical bets. Stored as jsonb.
type CommissionSnapshot struct {
	Agent  CommissionPart `json:"agent"`
	Member CommissionPart `json:"member"`
}

func (c CommissionSnapshot) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *CommissionSnapshot) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("unsupported type for CommissionSnapshot")
	}
}

// Bet is one wager submission against a draw. AgentID denormalizes the
// member's parent for query efficiency.
type Bet struct {
	gorm.Model

	MemberID uint `gorm:"index" json:"member_id"`
	AgentID  uint `gorm:"index" json:"agent_id"`
	DrawID   uint `gorm:"index" json:"draw_id"`

	TotalAmount       float64   `json:"total_amount"`
	TotalPotentialWin float64   `json:"total_potential_win"`
	ActualWinAmount   float64   `json:"actual_win_amount"`
	Status            BetStatus `gorm:"size:16;index;default:pending" json:"status"`
	Note              string    `gorm:"size:100" json:"note"`

	Commission CommissionSnapshot `gorm:"type:jsonb" json:"commission"`
	SettledAt  *time.Time         `json:"settled_at,omitempty"`

	Items []BetItem `gorm:"foreignKey:BetID;constraint:OnDelete:CASCADE" json:"items"`
}

// BetItem is one number+amount entry inside a bet. PayoutRate is captured
// from the draw's setting at placement time.
type BetItem struct {
	gorm.Model

	BetID        uint    `gorm:"index" json:"-"`
	BetType      BetType `gorm:"size:16" json:"bet_type"`
	Number       string  `gorm:"size:3" json:"number"`
	Amount       float64 `json:"amount"`
	PayoutRate   float64 `json:"payout_rate"`
	PotentialWin float64 `json:"potential_win"`
	IsWin        bool    `json:"is_win"`
	WinAmount    float64 `json:"win_amount"`
}
