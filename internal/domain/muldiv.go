package domain

import (
	"fmt"
	"math/bits"
)

// MulDiv returns floor(a*b/c) through a 128-bit product. It fails when c is
// zero or the quotient does not fit in 64 bits.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrInvalidParameters)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrBalanceOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}
