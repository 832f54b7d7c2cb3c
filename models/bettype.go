package models

// LotteryType identifies one family of lottery draws (government, stock,
// hanoi...). Commission rates and draws are keyed by it.
type LotteryType string

// BetType is one of the six wager categories supported per draw.
type BetType string

const (
	BetThreeTop  BetType = "three_top"
	BetThreeTod  BetType = "three_tod"
	BetTwoTop    BetType = "two_top"
	BetTwoBottom BetType = "two_bottom"
	BetRunTop    BetType = "run_top"
	BetRunBottom BetType = "run_bottom"
)

// AllBetTypes lists every known bet type in display order.
var AllBetTypes = []BetType{
	BetThreeTop, BetThreeTod, BetTwoTop, BetTwoBottom, BetRunTop, BetRunBottom,
}

var betTypeDigits = map[BetType]int{
	BetThreeTop:  3,
	BetThreeTod:  3,
	BetTwoTop:    2,
	BetTwoBottom: 2,
	BetRunTop:    1,
	BetRunBottom: 1,
}

func (b BetType) Valid() bool {
	_, ok := betTypeDigits[b]
	return ok
}

// DigitCount returns the exact number length required for the bet type.
// Returns 0 for unknown types.
func (b BetType) DigitCount() int {
	return betTypeDigits[b]
}

// ValidNumber reports whether number is all digits 0-9 and exactly the
// length the bet type requires.
func (b BetType) ValidNumber(number string) bool {
	n := b.DigitCount()
	if n == 0 || len(number) != n {
		return false
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	return true
}
