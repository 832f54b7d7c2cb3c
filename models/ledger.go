package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LedgerAction string

const (
	LedgerAdd    LedgerAction = "add"
	LedgerDeduct LedgerAction = "deduct"
)

// LedgerEntry is one immutable audit record of a balance- or
// credit-affecting event. BalanceBefore/BalanceAfter snapshot the mutated
// quantity of the target account: balance for bets and settlement, credit
// for credit adjustments. Entries are append-only.
type LedgerEntry struct {
	gorm.Model

	PerformerID uint         `gorm:"index" json:"performer_id"`
	AccountID   uint         `gorm:"index" json:"account_id"`
	Action      LedgerAction `gorm:"size:8" json:"action"`
	Amount      float64      `json:"amount"`

	BalanceBefore float64 `json:"balance_before"`
	BalanceAfter  float64 `json:"balance_after"`

	Note   string         `gorm:"size:255" json:"note"`
	RefID  string         `gorm:"size:64;index" json:"ref_id"`
	Detail datatypes.JSON `gorm:"type:jsonb" json:"detail,omitempty"`
}
