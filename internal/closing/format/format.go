// Package format renders the operator-facing display values of a closing
// session: localized currency amounts, dates and progress counters. Nothing
// here is persisted.
package format

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "02/01/2006"

type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// New builds a formatter for the given BCP 47 locale tag and ISO 4217
// currency code. Unknown values fall back to Brazilian Portuguese and BRL.
func New(locale, currencyCode string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.BrazilianPortuguese
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.BRL
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		unit:    unit,
	}
}

// Amount renders a monetary value with the currency symbol and exactly two
// decimals, in the formatter's locale.
func (f *Formatter) Amount(value decimal.Decimal) string {
	v, _ := value.Round(2).Float64()
	return f.printer.Sprintf("%v", currency.Symbol(f.unit.Amount(v)))
}

// Date renders a date as day/month/year.
func (f *Formatter) Date(t time.Time) string {
	return t.Format(dateLayout)
}

// Progress renders the one-based position of the current group.
func (f *Formatter) Progress(index, total int) string {
	return fmt.Sprintf("%d of %d", index+1, total)
}
