package models

import "gorm.io/gorm"

type Role string

const (
	RoleMaster Role = "master"
	RoleAgent  Role = "agent"
	RoleMember Role = "member"
)

type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// Account is one node of the master -> agent -> member tree. Credit is a
// lending ceiling and never goes negative; Balance is the spendable amount
// and may go negative down to -Credit.
type Account struct {
	gorm.Model

	Code      string        `gorm:"uniqueIndex;size:32" json:"code"`
	Name      string        `gorm:"size:64" json:"name"`
	SecretKey string        `gorm:"size:128" json:"-"`
	Role      Role          `gorm:"size:16;index" json:"role"`
	ParentID  *uint         `gorm:"index" json:"parent_id"`
	Credit    float64       `json:"credit"`
	Balance   float64       `json:"balance"`
	Status    AccountStatus `gorm:"size:16;default:active" json:"status"`

	CommissionRates []CommissionRate `gorm:"foreignKey:AccountID" json:"commission_rates,omitempty"`
}

// Available is the spending power used by bet placement: the credit line
// plus whatever balance remains (balance may already be negative).
func (a *Account) Available() float64 {
	return a.Credit + a.Balance
}

func (a *Account) Active() bool {
	return a.Status == AccountActive
}

// CommissionRate holds one account's commission percentages for one lottery
// type, one column per bet type. Percentages are 0-100.
type CommissionRate struct {
	gorm.Model

	AccountID   uint        `gorm:"index;index:uk_account_lottery,unique" json:"account_id"`
	LotteryType LotteryType `gorm:"size:32;index:uk_account_lottery,unique" json:"lottery_type"`

	ThreeTop  float64 `json:"three_top"`
	ThreeTod  float64 `json:"three_tod"`
	TwoTop    float64 `json:"two_top"`
	TwoBottom float64 `json:"two_bottom"`
	RunTop    float64 `json:"run_top"`
	RunBottom float64 `json:"run_bottom"`
}

// RateFor returns the percentage for one bet type.
func (r *CommissionRate) RateFor(bt BetType) float64 {
	if r == nil {
		return 0
	}
	switch bt {
	case BetThreeTop:
		return r.ThreeTop
	case BetThreeTod:
		return r.ThreeTod
	case BetTwoTop:
		return r.TwoTop
	case BetTwoBottom:
		return r.TwoBottom
	case BetRunTop:
		return r.RunTop
	case BetRunBottom:
		return r.RunBottom
	}
	return 0
}

// RateMap flattens the row into a per-bet-type map for snapshotting onto
// bets at placement time.
func (r *CommissionRate) RateMap() map[BetType]float64 {
	m := make(map[BetType]float64, len(AllBetTypes))
	for _, bt := range AllBetTypes {
		m[bt] = r.RateFor(bt)
	}
	return m
}
