package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("models: malformed quantity")

// ParseError reports quantity text that could not be parsed.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("models: parse quantity %q: %s", e.Text, e.Reason)
}

// Is lets errors.Is(err, ErrParse) match.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Amount limits. Exponent notation is accepted only while the value stays
// inside them, so a short input can never expand into a huge number.
const (
	MaxAmountDigits = 12
	MaxAmountScale  = 6
)

// CheckAmount reports why amount falls outside the supported range, or nil.
func CheckAmount(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp > MaxAmountDigits {
		return fmt.Errorf("more than %d integer digits", MaxAmountDigits)
	}
	if exp < -3*MaxAmountScale {
		return fmt.Errorf("more than %d decimal places", MaxAmountScale)
	}
	if amount.NumDigits()+int(exp) > MaxAmountDigits {
		return fmt.Errorf("more than %d integer digits", MaxAmountDigits)
	}
	if !amount.Equal(amount.Truncate(MaxAmountScale)) {
		return fmt.Errorf("more than %d decimal places", MaxAmountScale)
	}
	return nil
}

// Quantity is an amount with a unit. Amounts are never negative.
type Quantity struct {
	Amount decimal.Decimal
	Unit   Unit
}

// NewQuantity builds a Quantity from a float amount.
func NewQuantity(amount float64, unit Unit) Quantity {
	return Quantity{Amount: decimal.NewFromFloat(amount), Unit: unit}
}

// ParseQuantity reads "<amount> <unit>". Tokens after the unit are ignored.
// The unit is not checked against the vocabulary so older documents still load.
func ParseQuantity(text string) (Quantity, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return Quantity{}, &ParseError{Text: text, Reason: "expected amount and unit"}
	}
	amount, err := decimal.NewFromString(fields[0])
	if err != nil {
		return Quantity{}, &ParseError{Text: text, Reason: "amount is not numeric"}
	}
	if amount.IsNegative() {
		return Quantity{}, &ParseError{Text: text, Reason: "amount is negative"}
	}
	if err := CheckAmount(amount); err != nil {
		return Quantity{}, &ParseError{Text: text, Reason: "amount has " + err.Error()}
	}
	return Quantity{Amount: amount, Unit: Unit(fields[1])}, nil
}

// String renders the quantity as "<amount> <unit>".
func (q Quantity) String() string {
	return q.Amount.String() + " " + string(q.Unit)
}

// IsZero reports whether nothing is left.
func (q Quantity) IsZero() bool {
	return !q.Amount.IsPositive()
}

// Equal compares amounts numerically and units exactly.
func (q Quantity) Equal(other Quantity) bool {
	return q.Unit == other.Unit && q.Amount.Equal(other.Amount)
}

// Sub deducts amount, clamping at zero. It returns the remaining quantity and
// the amount actually deducted, which is less than requested when stock runs out.
func (q Quantity) Sub(amount decimal.Decimal) (remaining Quantity, deducted decimal.Decimal) {
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	deducted = decimal.Min(q.Amount, amount)
	return Quantity{Amount: q.Amount.Sub(deducted), Unit: q.Unit}, deducted
}

// MarshalJSON writes the quantity as its string form.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// UnmarshalJSON reads the string form written by MarshalJSON.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	parsed, err := ParseQuantity(text)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
