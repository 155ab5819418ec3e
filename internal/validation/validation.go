/**
 * @description
 * This file defines the transfer validation pipeline: an ordered sequence of
 * independent business-rule strategies evaluated before any funds move.
 * Evaluation stops at the first failing rule and that rule's reason is
 * propagated verbatim; later rules never run. Adding a rule means appending a
 * new strategy, never modifying an existing one.
 *
 * @dependencies
 * - context, errors, fmt: Standard Go libraries.
 * - internal/domain: The TransferRequest being validated.
 */

package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/transfa/banking-service/internal/domain"
)

// Error is a business-rule rejection. Its reason is human-readable and is
// recorded verbatim on the failed transaction record. It is never a system
// fault; infrastructure problems travel as ordinary errors instead.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Failf builds a validation Error from a format string.
func Failf(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// IsFailure reports whether err is a business-rule rejection, and if so
// returns its reason.
func IsFailure(err error) (string, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Reason, true
	}
	return "", false
}

// Strategy is one independent business rule over a transfer request.
type Strategy interface {
	Validate(ctx context.Context, req domain.TransferRequest) error
}

// Pipeline evaluates strategies in registration order, short-circuiting on the
// first failure. The zero strategies pipeline accepts everything.
type Pipeline struct {
	strategies []Strategy
}

// NewPipeline builds a pipeline from the given strategies, in order.
func NewPipeline(strategies ...Strategy) *Pipeline {
	return &Pipeline{strategies: strategies}
}

// Append registers one more strategy at the end of the pipeline.
func (p *Pipeline) Append(s Strategy) {
	p.strategies = append(p.strategies, s)
}

// Validate runs the pipeline. A nil return means every rule passed.
func (p *Pipeline) Validate(ctx context.Context, req domain.TransferRequest) error {
	for _, strategy := range p.strategies {
		if err := strategy.Validate(ctx, req); err != nil {
			return err
		}
	}
	return nil
}
