package services

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// winningsFactor is applied to a bet's total amount on a win
var winningsFactor = decimal.NewFromInt(2)

// PayoutCalculator computes win amounts net of the house fee
type PayoutCalculator struct {
	netFactor decimal.Decimal
}

// NewPayoutCalculator creates a calculator for a fee in [0, 1)
func NewPayoutCalculator(fee decimal.Decimal) (*PayoutCalculator, error) {
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fee must be in [0, 1), got %s", fee)
	}
	return &PayoutCalculator{
		netFactor: winningsFactor.Mul(decimal.NewFromInt(1).Sub(fee)),
	}, nil
}

// WinAmount returns floor(totalAmount * 2 * (1 - fee))
func (c *PayoutCalculator) WinAmount(totalAmount int64) int64 {
	return decimal.NewFromInt(totalAmount).Mul(c.netFactor).Floor().IntPart()
}

