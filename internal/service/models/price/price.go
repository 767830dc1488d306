package price

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a price value has an unexpected shape.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a decimal price as received from the remote API.
// The API is not type-consistent: the same field may arrive as a number or a numeric string.
type Amount struct {
	Decimal decimal.Decimal
	// Valid is false when the raw value could not be parsed and Decimal was normalized to zero.
	Valid bool
	// Raw keeps the original payload of an invalid value for anomaly logging.
	Raw string
}

// Zero is a valid zero amount.
var Zero = Amount{Decimal: decimal.Zero, Valid: true}

// New creates a valid amount from a decimal.
func New(d decimal.Decimal) Amount {
	return Amount{Decimal: d, Valid: true}
}

// FromFloat creates a valid amount from a float.
func FromFloat(f float64) Amount {
	return New(decimal.NewFromFloat(f))
}

// Parse parses a numeric string. Surrounding whitespace and a leading currency symbol are tolerated.
func Parse(s string) (Amount, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "₹")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return Amount{Decimal: decimal.Zero, Raw: s}, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return Amount{Decimal: decimal.Zero, Raw: s}, ErrInvalidAmount
	}

	return New(d), nil
}

// Mul returns the amount multiplied by an integer quantity.
func (a Amount) Mul(quantity int) decimal.Decimal {
	return a.Decimal.Mul(decimal.NewFromInt(int64(quantity)))
}

func (a Amount) String() string {
	return a.Decimal.StringFixed(2)
}

// MarshalJSON always emits a string with two decimal places.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a JSON number, a numeric string or null.
// It never fails: unparsable values become an invalid zero amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{Decimal: decimal.Zero, Raw: string(data)}

		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = Amount{Decimal: decimal.Zero, Raw: string(data)}

			return nil
		}
		*a, _ = Parse(s)

		return nil
	}

	d, err := decimal.NewFromString(string(data))
	if err != nil {
		*a = Amount{Decimal: decimal.Zero, Raw: string(data)}

		return nil
	}
	*a = New(d)

	return nil
}
