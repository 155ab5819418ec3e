/**
 * @description
 * Amount-bounds rule: the transfer amount must be positive, at least the
 * configured minimum and at most the configured maximum. Each violation has
 * its own reason string so callers can tell the cases apart.
 */

package validation

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/transfa/banking-service/internal/domain"
)

// AmountBoundsStrategy validates the transfer amount against fixed bounds.
// It is stateless apart from its configuration and touches no other component.
type AmountBoundsStrategy struct {
	min decimal.Decimal
	max decimal.Decimal
}

// NewAmountBoundsStrategy builds the rule with the given inclusive bounds.
func NewAmountBoundsStrategy(min, max decimal.Decimal) *AmountBoundsStrategy {
	return &AmountBoundsStrategy{min: min, max: max}
}

func (s *AmountBoundsStrategy) Validate(ctx context.Context, req domain.TransferRequest) error {
	if !req.Amount.IsPositive() {
		return Failf("transfer amount must be positive")
	}
	if req.Amount.LessThan(s.min) {
		return Failf("transfer amount must be at least %s", s.min.String())
	}
	if req.Amount.GreaterThan(s.max) {
		return Failf("transfer amount cannot exceed %s", s.max.String())
	}
	return nil
}
