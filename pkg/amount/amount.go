// Package amount implements 256-bit unsigned arithmetic for deposits,
// fees and balances. Scheduler scenario values (prepaid task deposits)
// routinely exceed math.MaxUint64, so every balance-affecting field in
// the scheduler uses Amount instead of a native integer type.
package amount

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit quantity, denominated in the host's
// smallest native unit (e.g. yoctoNEAR-equivalent).
type Amount struct {
	v uint256.Int
}

// Zero is the additive identity.
var Zero = Amount{}

// FromUint64 builds an Amount from a native uint64.
func FromUint64(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// FromDecimal parses a base-10 digit string, as attached to requests and
// printed back in get_task/get_agent responses.
func FromDecimal(s string) (Amount, error) {
	var a Amount
	if s == "" {
		return a, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return a, fmt.Errorf("amount: invalid decimal %q: %w", s, err)
	}
	a.v = *v
	return a, nil
}

// MustFromDecimal is FromDecimal, panicking on error; used for constants.
func MustFromDecimal(s string) Amount {
	a, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the amount as a base-10 digit string.
func (a Amount) String() string {
	return a.v.Dec()
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp compares two amounts: -1, 0, 1 for a<b, a==b, a>b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Add returns a+b. Overflow of a 256-bit unsigned value is not a
// realistic operating condition for this service and is left to wrap,
// matching uint256's semantics.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	out.v.Add(&a.v, &b.v)
	return out
}

// Sub returns a-b and ok=false if that would underflow. Callers must
// reject the operation on ok=false rather than let balances go negative.
func (a Amount) Sub(b Amount) (Amount, bool) {
	if a.v.Lt(&b.v) {
		return Amount{}, false
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out, true
}

// MulUint64 returns a*n (used for gas * gas_price).
func (a Amount) MulUint64(n uint64) Amount {
	var nv uint256.Int
	nv.SetUint64(n)
	var out Amount
	out.v.Mul(&a.v, &nv)
	return out
}

// MarshalJSON renders the amount as a JSON string (never a JSON number,
// since 256-bit values overflow float64/int64 in most JSON decoders).
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts either a JSON string or a JSON number literal.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := FromDecimal(s)
		if err != nil {
			return err
		}
		*a = v
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, err := FromDecimal(n.String())
	if err != nil {
		return err
	}
	*a = v
	return nil
}
