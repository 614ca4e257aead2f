package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrCurrencyMismatch = errors.New("currency mismatch")

// Amount is a decimal quantity of a currency.
type Amount struct {
	Quantity decimal.Decimal
	Currency string
}

// NewAmount returns an Amount of q in currency.
func NewAmount(q decimal.Decimal, currency string) Amount {
	return Amount{Quantity: q, Currency: currency}
}

// ParseAmount parses a decimal string into an Amount of currency.
func ParseAmount(s, currency string) (Amount, error) {
	q, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Quantity: q, Currency: currency}, nil
}

// MustAmount is like ParseAmount but panics on a malformed quantity.
func MustAmount(s, currency string) Amount {
	a, err := ParseAmount(s, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b. Amounts of different currencies can not be added and
// neither operand is modified.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("can not add %q to %q: %w", b, a, ErrCurrencyMismatch)
	}
	return Amount{Quantity: a.Quantity.Add(b.Quantity), Currency: a.Currency}, nil
}

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount {
	return Amount{Quantity: a.Quantity.Neg(), Currency: a.Currency}
}

// Equal reports whether both amounts hold the same number of the same currency.
// 100 and 100.00 are equal.
func (a Amount) Equal(b Amount) bool {
	return a.Currency == b.Currency && a.Quantity.Equal(b.Quantity)
}

func (a Amount) String() string {
	if a.Currency == "" {
		return a.Quantity.String()
	}
	return a.Quantity.String() + " " + a.Currency
}

func amountPtrEqual(a, b *Amount) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
