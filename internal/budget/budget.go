// Package budget derives the remaining allocation from the works an
// originator currently holds. All arithmetic is exact.
package budget

import (
	"fmt"

	"github.com/Chinmai369/15th-FInance-Commission-ADP-Application-sub000/internal/domain"
	"github.com/shopspring/decimal"
)

// ExceededError is returned when a new work costs more than what is left.
type ExceededError struct {
	Cost      decimal.Decimal
	Remaining decimal.Decimal
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("cost %s exceeds the remaining budget of %s", FormatRupees(e.Cost), FormatRupees(e.Remaining))
}

type Summary struct {
	Ceiling   decimal.Decimal `json:"ceiling"`
	Committed decimal.Decimal `json:"committed"`
	Remaining decimal.Decimal `json:"remaining"`
}

func Committed(items []domain.WorkItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Cost)
	}
	return sum
}

// Remaining is max(0, ceiling - committed).
func Remaining(ceiling decimal.Decimal, items []domain.WorkItem) decimal.Decimal {
	return clamp(ceiling.Sub(Committed(items)))
}

func CanAccept(cost, remaining decimal.Decimal) bool {
	return cost.LessThanOrEqual(remaining)
}

// RemainingForCR is what a CR may still commit: the budget left by every
// other CR less what this CR already holds.
func RemainingForCR(ceiling decimal.Decimal, items []domain.WorkItem, crNumber string) decimal.Decimal {
	others := decimal.Zero
	own := decimal.Zero
	for _, it := range items {
		if it.CRLabel() == crNumber {
			own = own.Add(it.Cost)
		} else {
			others = others.Add(it.Cost)
		}
	}
	return clamp(clamp(ceiling.Sub(others)).Sub(own))
}

// Check validates cost against the ledger. With a CR number the per-CR
// allowance applies.
func Check(ceiling decimal.Decimal, items []domain.WorkItem, crNumber string, cost decimal.Decimal) error {
	remaining := Remaining(ceiling, items)
	if crNumber != "" {
		remaining = RemainingForCR(ceiling, items, crNumber)
	}
	if !CanAccept(cost, remaining) {
		return &ExceededError{Cost: cost, Remaining: remaining}
	}
	return nil
}

func Summarize(ceiling decimal.Decimal, items []domain.WorkItem) Summary {
	return Summary{
		Ceiling:   ceiling,
		Committed: Committed(items),
		Remaining: Remaining(ceiling, items),
	}
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
