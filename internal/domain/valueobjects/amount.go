// Package valueobjects holds the small immutable types shared by the domain.
package valueobjects

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a positive integer quantity of an asset.
//
// Amounts travel as decimal strings on the wire (a JSON number is also
// accepted on input) and are persisted as BIGINT. The zero value is invalid.
type Amount int64

// NewAmount validates a raw int64 as an Amount.
func NewAmount(v int64) (Amount, error) {
	if v <= 0 {
		return 0, fmt.Errorf("amount must be a positive integer, got %d", v)
	}
	return Amount(v), nil
}

// ParseAmount parses a decimal string into an Amount.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount must not be empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a valid integer: %w", s, err)
	}
	return NewAmount(v)
}

// Int64 returns the raw value.
func (a Amount) Int64() int64 { return int64(a) }

// String renders the amount as a decimal string.
func (a Amount) String() string { return strconv.FormatInt(int64(a), 10) }

// MarshalJSON serialises the amount as a decimal string to keep arbitrary
// precision stable across client ecosystems.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a JSON number or a decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case json.Number:
		if strings.ContainsAny(v.String(), ".eE") {
			return fmt.Errorf("amount must be an integer, got %s", v.String())
		}
		parsed, err := ParseAmount(v.String())
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := ParseAmount(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("amount must be a string or number")
	}
}

// FormatBalance renders a derived balance (which may legitimately be zero or,
// for system wallets, negative) as a decimal string.
func FormatBalance(v int64) string {
	return strconv.FormatInt(v, 10)
}
