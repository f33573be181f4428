package common

import (
	"github.com/0chain/errors"
)

// ErrValueOverflow is returned whenever a monetary computation would wrap.
// No quantity in the system is allowed to truncate silently.
var ErrValueOverflow = errors.New("value_overflow", "value overflows the currency range")

// ErrValueUnderflow is returned when a subtraction would go below zero.
var ErrValueUnderflow = errors.New("value_underflow", "value goes below zero")

// Coin is an amount of settlement currency in minor units.
type Coin uint64

// Resource is an amount of the internal pre-paid computation budget.
type Resource uint64

// AddCoin returns c + o, or ErrValueOverflow.
func AddCoin(c, o Coin) (Coin, error) {
	sum := c + o
	if sum < c {
		return 0, ErrValueOverflow
	}
	return sum, nil
}

// SubCoin returns c - o, or ErrValueUnderflow.
func SubCoin(c, o Coin) (Coin, error) {
	if o > c {
		return 0, ErrValueUnderflow
	}
	return c - o, nil
}

// MulCoin returns c * n, or ErrValueOverflow.
func MulCoin(c Coin, n uint64) (Coin, error) {
	if c == 0 || n == 0 {
		return 0, nil
	}
	prod := uint64(c) * n
	if prod/n != uint64(c) {
		return 0, ErrValueOverflow
	}
	return Coin(prod), nil
}

// AddResource returns r + o, or ErrValueOverflow.
func AddResource(r, o Resource) (Resource, error) {
	sum := r + o
	if sum < r {
		return 0, ErrValueOverflow
	}
	return sum, nil
}

// SubResource returns r - o, or ErrValueUnderflow.
func SubResource(r, o Resource) (Resource, error) {
	if o > r {
		return 0, ErrValueUnderflow
	}
	return r - o, nil
}
