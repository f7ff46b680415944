package lzopts

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLzReceiveOptionsGasOnly(t *testing.T) {
	// 200000 gas, no value: type3 + worker 1 + size 17 + lzReceive + uint128 gas.
	opts, err := BuildLzReceiveOptions(big.NewInt(200_000), nil)
	require.NoError(t, err)
	assert.Equal(t,
		"00030100110100000000000000000000000000030d40",
		hex.EncodeToString(opts))
}

func TestBuildLzReceiveOptionsGasAndValue(t *testing.T) {
	// Nonzero value appends a second uint128; option size grows to 33.
	opts, err := BuildLzReceiveOptions(big.NewInt(200_000), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t,
		"0003010021"+
			"01"+
			"00000000000000000000000000030d40"+
			"00000000000000000000000000000001",
		hex.EncodeToString(opts))
}

func TestBuildLzReceiveOptionsZeroValueOmitted(t *testing.T) {
	withNil, err := BuildLzReceiveOptions(big.NewInt(500), nil)
	require.NoError(t, err)
	withZero, err := BuildLzReceiveOptions(big.NewInt(500), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, withNil, withZero)
}

func TestBuildLzReceiveOptionsRejectsBadInput(t *testing.T) {
	_, err := BuildLzReceiveOptions(nil, nil)
	assert.Error(t, err)

	_, err = BuildLzReceiveOptions(big.NewInt(-1), nil)
	assert.Error(t, err)

	over := new(big.Int).Lsh(big.NewInt(1), 128)
	_, err = BuildLzReceiveOptions(over, nil)
	assert.Error(t, err)
}
