package entities

import (
	"fmt"
	"slices"
)

// Outcome is the drawn result of a round. Color and Size are always
// consistent with the ColorRule that produced it.
type Outcome struct {
	Number int   `json:"number"`
	Color  Color `json:"color"`
	Size   Size  `json:"size"`
}

// Description renders the outcome for the result record
func (o Outcome) Description() string {
	return fmt.Sprintf("%d %s %s", o.Number, o.Color, o.Size)
}

// ColorRule is the fixed game rule mapping a number to the colors it may show
type ColorRule interface {
	// PermittedColors returns the colors number may resolve to, in tie-break order
	PermittedColors(number int) []Color
}

// Permits reports whether rule allows number to resolve as color
func Permits(rule ColorRule, number int, color Color) bool {
	return slices.Contains(rule.PermittedColors(number), color)
}

// IsRuleFree reports whether the rule leaves the color of number open
func IsRuleFree(rule ColorRule, number int) bool {
	return len(rule.PermittedColors(number)) > 1
}

// NumbersForColor lists the numbers rule allows to resolve as color, ascending
func NumbersForColor(rule ColorRule, color Color) []int {
	var numbers []int
	for n := MinNumber; n <= MaxNumber; n++ {
		if Permits(rule, n, color) {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// StandardColorRule is the production rule: 0 is green, other even numbers
// are red and odd numbers are black
type StandardColorRule struct{}

func (StandardColorRule) PermittedColors(number int) []Color {
	switch {
	case number == 0:
		return []Color{ColorGreen}
	case number%2 == 0:
		return []Color{ColorRed}
	default:
		return []Color{ColorBlack}
	}
}

// ParityColorRule is the alternate variant: even numbers are red and odd
// numbers are green, with 0 and 5 free to show either color
type ParityColorRule struct{}

func (ParityColorRule) PermittedColors(number int) []Color {
	switch {
	case number == 0 || number == 5:
		return []Color{ColorRed, ColorGreen}
	case number%2 == 0:
		return []Color{ColorRed}
	default:
		return []Color{ColorGreen}
	}
}

// NewOutcome builds an outcome, checking the color against rule
func NewOutcome(rule ColorRule, number int, color Color) (Outcome, error) {
	if number < MinNumber || number > MaxNumber {
		return Outcome{}, fmt.Errorf("number %d out of range", number)
	}
	if !Permits(rule, number, color) {
		return Outcome{}, fmt.Errorf("color %s not permitted for number %d", color, number)
	}
	return Outcome{Number: number, Color: color, Size: SizeOf(number)}, nil
}

// Exposure is the amount staked on every possible outcome value of a round
type Exposure struct {
	Numbers [MaxNumber + 1]int64
	Colors  map[Color]int64
	Sizes   map[Size]int64
}

// NewExposure returns an empty exposure
func NewExposure() *Exposure {
	return &Exposure{
		Colors: make(map[Color]int64, len(AllColors)),
		Sizes:  make(map[Size]int64, len(AllSizes)),
	}
}

// Add accounts amount against a selection
func (e *Exposure) Add(selection BetSelection, amount int64) {
	switch s := selection.(type) {
	case NumberSelection:
		e.Numbers[s.Number] += amount
	case ColorSelection:
		e.Colors[s.Color] += amount
	case SizeSelection:
		e.Sizes[s.Size] += amount
	}
}

// Total returns the total staked amount
func (e *Exposure) Total() int64 {
	var total int64
	for _, v := range e.Numbers {
		total += v
	}
	for _, v := range e.Colors {
		total += v
	}
	for _, v := range e.Sizes {
		total += v
	}
	return total
}
