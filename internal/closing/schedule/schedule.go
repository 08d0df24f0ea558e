// Package schedule holds the pure date and money arithmetic of the closing
// engine: installment splitting and default due-date derivation.
package schedule

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sphera-erp/sphera/internal/closing/domain"
)

const (
	MinInstallments = 2
	MaxInstallments = 12
)

// BuildSchedule splits totalAmount into count dated installments. The first
// count-1 installments each carry floor(total/count, 2dp); the last one
// absorbs the whole rounding remainder so the schedule sums back to
// totalAmount exactly to the cent. Due dates advance one calendar month per
// installment with Go's native date normalization, so a day 31 first due
// date may overflow into the following month.
func BuildSchedule(totalAmount decimal.Decimal, count int, firstDueDate time.Time) ([]domain.Installment, error) {
	if count < MinInstallments || count > MaxInstallments {
		return nil, domain.ErrInvalidSchedule
	}
	if totalAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidSchedule
	}
	if firstDueDate.IsZero() {
		return nil, domain.ErrInvalidSchedule
	}

	base := totalAmount.Div(decimal.NewFromInt(int64(count))).RoundFloor(2)
	last := totalAmount.Sub(base.Mul(decimal.NewFromInt(int64(count - 1)))).Round(2)

	installments := make([]domain.Installment, 0, count)
	for i := 1; i <= count; i++ {
		amount := base
		if i == count {
			amount = last
		}
		installments = append(installments, domain.Installment{
			Number:  i,
			Amount:  amount,
			DueDate: firstDueDate.AddDate(0, i-1, 0),
		})
	}
	return installments, nil
}

// DeriveDefaultDueDate returns the next occurrence of the client's billing
// day relative to referenceDate. A client without a configured day falls
// back to the reference day itself. When the configured day has already
// passed this month the date rolls into the next month.
func DeriveDefaultDueDate(billingDueDay *int, referenceDate time.Time) time.Time {
	day := referenceDate.Day()
	if billingDueDay != nil {
		day = *billingDueDay
	}

	candidate := time.Date(referenceDate.Year(), referenceDate.Month(), day, 0, 0, 0, 0, referenceDate.Location())
	if day < referenceDate.Day() {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate
}
