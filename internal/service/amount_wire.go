package service

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// The trade program consumes amounts in the 16-byte layout used by
// rust_decimal: a little-endian flags word (scale in bits 16-23, sign in
// bit 31) followed by a 96-bit little-endian mantissa.
const (
	maxAmountScale   = 28
	amountWireLength = 16
)

func encodeAmount(d decimal.Decimal) ([amountWireLength]byte, error) {
	var out [amountWireLength]byte

	scale := -d.Exponent()
	if scale < 0 {
		// Positive exponents are folded into the mantissa at scale zero.
		d = d.RoundDown(0)
		scale = 0
	}
	if scale > maxAmountScale {
		return out, fmt.Errorf("amount %s exceeds maximum scale %d", d, maxAmountScale)
	}

	mantissa := new(big.Int).Abs(d.Coefficient())
	if mantissa.BitLen() > 96 {
		return out, fmt.Errorf("amount %s does not fit in a 96-bit mantissa", d)
	}

	flags := uint32(scale) << 16
	if d.IsNegative() {
		flags |= 1 << 31
	}
	binary.LittleEndian.PutUint32(out[0:4], flags)

	be := mantissa.Bytes()
	for i, b := range be {
		out[4+len(be)-1-i] = b
	}
	return out, nil
}
