package valueobjects

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the currency's minor unit.
type Money struct {
	amountInCents int64
	currency      string
}

func NewMoney(amountInCents int64, currency string) Money {
	if currency == "" {
		currency = "CNY"
	}
	return Money{amountInCents: amountInCents, currency: strings.ToUpper(currency)}
}

func (m Money) AmountInCents() int64 {
	return m.amountInCents
}

func (m Money) Currency() string {
	return m.currency
}

// Major returns the amount in major units, e.g. 19800 -> "198.00".
func (m Money) Major() decimal.Decimal {
	return decimal.New(m.amountInCents, -2)
}

func (m Money) Equals(other Money) bool {
	return m.amountInCents == other.amountInCents && m.currency == other.currency
}

func (m Money) IsNegative() bool {
	return m.amountInCents < 0
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Major().StringFixed(2), m.currency)
}
