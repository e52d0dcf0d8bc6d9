// Package money formats and parses amounts for display. Format and Parse are
// inverse for a given currency and language.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrInvalidAmount = errors.New("money: invalid amount")

// Formatter renders amounts in one currency for one language.
type Formatter struct {
	unit    currency.Unit
	scale   int32
	printer *message.Printer
	group   string
	decimal string
}

// NewFormatter builds a formatter for an ISO 4217 code such as "SEK".
func NewFormatter(code string, tag language.Tag) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("money: %w", err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	p := message.NewPrinter(tag)
	group, dec := separators(p)
	return &Formatter{unit: unit, scale: int32(scale), printer: p, group: group, decimal: dec}, nil
}

// separators reads the grouping and decimal marks the printer uses.
func separators(p *message.Printer) (group, dec string) {
	group, dec = ",", "."
	if s := p.Sprintf("%d", 1234); strings.HasPrefix(s, "1") && strings.HasSuffix(s, "234") {
		group = s[1 : len(s)-3]
	}
	if s := p.Sprintf("%.1f", 1.5); strings.HasPrefix(s, "1") && strings.HasSuffix(s, "5") && len(s) > 2 {
		dec = s[1 : len(s)-1]
	}
	return group, dec
}

// Format renders amount rounded to the currency's minor unit, followed by the
// ISO code, e.g. "1,250.00 SEK".
func (f *Formatter) Format(amount decimal.Decimal) string {
	r := amount.Round(f.scale)
	fixed := r.Abs().StringFixed(f.scale)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if r.IsNegative() {
		b.WriteString("-")
	}
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		b.WriteString(f.printer.Sprintf("%d", n))
	} else {
		b.WriteString(intPart)
	}
	if frac != "" {
		b.WriteString(f.decimal)
		b.WriteString(frac)
	}
	b.WriteString(" ")
	b.WriteString(f.unit.String())
	return b.String()
}

// Parse reads an amount written by Format. The currency code suffix is optional.
func (f *Formatter) Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, f.unit.String()))
	if s == "" {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	if f.group != "" {
		s = strings.ReplaceAll(s, f.group, "")
	}
	if f.decimal != "." {
		s = strings.ReplaceAll(s, f.decimal, ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// WithVAT formats a net amount and its VAT-inclusive total.
func (f *Formatter) WithVAT(net, vatRate decimal.Decimal) (netText, grossText string) {
	gross := net.Add(net.Mul(vatRate).Div(decimal.NewFromInt(100)))
	return f.Format(net), f.Format(gross)
}
