// Package lzopts builds LayerZero V2 message execution options.
package lzopts

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

const (
	optionsType3        = 3
	executorWorkerID    = 1
	optionTypeLzReceive = 1
)

// BuildLzReceiveOptions encodes a Type-3 options blob carrying a single
// lzReceive executor option:
//
//	[uint16 type=3] [uint8 workerId=1] [uint16 optionSize] [uint8 optionType=1]
//	[uint128 gas (+ uint128 value when nonzero)]
//
// gas is the destination-side execution budget; value is extra native
// currency delivered with the message (zero for plain transfers).
func BuildLzReceiveOptions(gas, value *big.Int) ([]byte, error) {
	gasBytes, err := toUint128(gas)
	if err != nil {
		return nil, fmt.Errorf("invalid gas: %w", err)
	}

	option := gasBytes
	if value != nil && value.Sign() != 0 {
		valueBytes, err := toUint128(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %w", err)
		}
		option = append(option, valueBytes...)
	}

	out := make([]byte, 0, 6+len(option))
	out = binary.BigEndian.AppendUint16(out, optionsType3)
	out = append(out, executorWorkerID)
	out = binary.BigEndian.AppendUint16(out, uint16(len(option)+1)) // +1 for optionType
	out = append(out, optionTypeLzReceive)
	out = append(out, option...)
	return out, nil
}

func toUint128(v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 {
		return nil, fmt.Errorf("must be non-negative")
	}
	if v.BitLen() > 128 {
		return nil, fmt.Errorf("overflows uint128")
	}
	return v.FillBytes(make([]byte, 16)), nil
}
