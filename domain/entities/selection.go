package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// BetType is the outcome category a bet is placed on
type BetType string

const (
	BetTypeColor  BetType = "color"
	BetTypeNumber BetType = "number"
	BetTypeSize   BetType = "size"
)

// Color is one of the three wheel colors
type Color string

const (
	ColorRed   Color = "red"
	ColorGreen Color = "green"
	ColorBlack Color = "black"
)

// AllColors lists the colors in tie-break order
var AllColors = []Color{ColorRed, ColorGreen, ColorBlack}

// IsValid reports whether c is a known color
func (c Color) IsValid() bool {
	return c == ColorRed || c == ColorGreen || c == ColorBlack
}

// Size is the big/small half of the number range
type Size string

const (
	SizeSmall Size = "small"
	SizeBig   Size = "big"
)

// AllSizes lists the sizes in tie-break order
var AllSizes = []Size{SizeSmall, SizeBig}

// IsValid reports whether s is a known size
func (s Size) IsValid() bool {
	return s == SizeSmall || s == SizeBig
}

// SizeOf derives the size of a drawn number
func SizeOf(number int) Size {
	if number < 5 {
		return SizeSmall
	}
	return SizeBig
}

const (
	MinNumber = 0
	MaxNumber = 9
)

// BetSelection is the validated choice of a bet. Exactly one of the concrete
// selection types implements it; settlement never re-parses the raw value.
type BetSelection interface {
	Type() BetType
	Value() string
	Multiplier() int64
	Wins(outcome Outcome) bool
}

// ColorSelection is a bet on a color
type ColorSelection struct {
	Color Color
}

func (s ColorSelection) Type() BetType { return BetTypeColor }
func (s ColorSelection) Value() string { return string(s.Color) }

func (s ColorSelection) Multiplier() int64 {
	if s.Color == ColorGreen {
		return 14
	}
	return 2
}

func (s ColorSelection) Wins(outcome Outcome) bool {
	return outcome.Color == s.Color
}

// NumberSelection is a bet on a single number 0-9
type NumberSelection struct {
	Number int
}

func (s NumberSelection) Type() BetType     { return BetTypeNumber }
func (s NumberSelection) Value() string     { return strconv.Itoa(s.Number) }
func (s NumberSelection) Multiplier() int64 { return 9 }

func (s NumberSelection) Wins(outcome Outcome) bool {
	return outcome.Number == s.Number
}

// SizeSelection is a bet on big or small
type SizeSelection struct {
	Size Size
}

func (s SizeSelection) Type() BetType     { return BetTypeSize }
func (s SizeSelection) Value() string     { return string(s.Size) }
func (s SizeSelection) Multiplier() int64 { return 2 }

func (s SizeSelection) Wins(outcome Outcome) bool {
	return outcome.Size == s.Size
}

// ParseSelection validates a raw bet type and value pair
func ParseSelection(betType, betValue string) (BetSelection, error) {
	value := strings.TrimSpace(strings.ToLower(betValue))

	switch BetType(strings.TrimSpace(strings.ToLower(betType))) {
	case BetTypeColor:
		c := Color(value)
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q is not a color", ErrInvalidBetValue, betValue)
		}
		return ColorSelection{Color: c}, nil

	case BetTypeNumber:
		n, err := strconv.Atoi(value)
		if err != nil || n < MinNumber || n > MaxNumber {
			return nil, fmt.Errorf("%w: %q is not a number between %d and %d", ErrInvalidBetValue, betValue, MinNumber, MaxNumber)
		}
		return NumberSelection{Number: n}, nil

	case BetTypeSize:
		s := Size(value)
		if !s.IsValid() {
			return nil, fmt.Errorf("%w: %q is not a size", ErrInvalidBetValue, betValue)
		}
		return SizeSelection{Size: s}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBetType, betType)
	}
}
