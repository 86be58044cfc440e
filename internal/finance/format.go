package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultLocale   = "en-US"
	DefaultCurrency = "USD"
)

// Formatter renders amounts for one locale and currency.
type Formatter struct {
	locale   string
	currency string
	printer  *message.Printer
}

func NewFormatter(locale, currency string) Formatter {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		locale = DefaultLocale
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
		locale = DefaultLocale
	}
	return Formatter{
		locale:   locale,
		currency: currency,
		printer:  message.NewPrinter(tag),
	}
}

func (f Formatter) Locale() string   { return f.locale }
func (f Formatter) Currency() string { return f.currency }

// Money formats an amount with the currency's standard fraction digits and
// its narrow symbol, e.g. $1,234.50 for en-US/USD and ¥1,235 for JPY. Codes
// without a symbol render as "CHF 10.00".
func (f Formatter) Money(amount decimal.Decimal) string {
	printer := f.printer
	if printer == nil {
		printer = message.NewPrinter(language.AmericanEnglish)
	}
	code := f.currency
	if code == "" {
		code = DefaultCurrency
	}

	scale := 2
	symbol := code + " "
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
		if narrow := printer.Sprint(currency.NarrowSymbol(unit)); narrow != "" && narrow != unit.String() {
			symbol = narrow
		}
	}

	rounded := amount.Round(int32(scale))
	value, _ := rounded.Abs().Float64()
	digits := printer.Sprint(number.Decimal(value, number.Scale(scale)))
	if rounded.IsNegative() {
		return "-" + symbol + digits
	}
	return symbol + digits
}

func (f Formatter) Date(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
