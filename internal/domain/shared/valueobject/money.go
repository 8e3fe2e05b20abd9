package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places used when money is displayed
// or sent over the wire
const MoneyPlaces = 2

// Money is a value object representing a monetary amount in the store's
// single configured currency. It is immutable - all operations return new
// Money instances. The currency symbol is a display concern and is passed
// to Format.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromFloat creates Money from a float64 value
func NewMoneyFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// NewMoneyFromInt creates Money from an int64 value
func NewMoneyFromInt(amount int64) Money {
	return Money{amount: decimal.NewFromInt(amount)}
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// Zero returns a zero amount
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the underlying decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is less than zero
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns m + other
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns m - other
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// MultiplyByInt multiplies the amount by an integer factor (e.g. a quantity)
func (m Money) MultiplyByInt(factor int64) Money {
	return Money{amount: m.amount.Mul(decimal.NewFromInt(factor))}
}

// Percent returns rate percent of m, unrounded: m * rate / 100
func (m Money) Percent(rate decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(rate).Div(decimal.NewFromInt(100))}
}

// Round rounds to the given number of decimal places (half away from zero)
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places)}
}

// Equals compares two amounts numerically
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// String returns the plain decimal representation
func (m Money) String() string {
	return m.amount.String()
}

// StringFixed returns the amount with a fixed number of decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// Format renders the amount with the currency symbol prefixed,
// e.g. "$22.00"
func (m Money) Format(symbol string) string {
	if m.amount.IsNegative() {
		return "-" + symbol + m.amount.Abs().StringFixed(MoneyPlaces)
	}
	return symbol + m.amount.StringFixed(MoneyPlaces)
}

// Float64 returns the amount as float64 (may lose precision)
func (m Money) Float64() float64 {
	return m.amount.InexactFloat64()
}

// MarshalJSON writes the amount as a JSON number with two decimal places
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.StringFixed(MoneyPlaces)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string, the
// latter being what the sales backend sends for money fields
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		m.amount = decimal.Zero
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("invalid money value: %w", err)
		}
		s = str
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid money value %q: %w", s, err)
	}
	m.amount = d
	return nil
}
