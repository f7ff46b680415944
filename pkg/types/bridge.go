package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Chain IDs of the two supported networks.
const (
	LineaChainID uint64 = 59144
	BaseChainID  uint64 = 8453
)

// LayerZero endpoint IDs for the two supported networks.
const (
	EIDLinea uint32 = 30183
	EIDBase  uint32 = 30184
)

// Direction represents which way a bridge transfer moves. It is always
// derived from the active chain and never stored.
type Direction int

const (
	DirectionUnsupported Direction = iota
	LineaToBase
	BaseToLinea
)

// DirectionForChain maps the session's chain ID to a transfer direction.
// Unrecognized chains yield DirectionUnsupported, which downstream
// components treat as a hard gate.
func DirectionForChain(chainID uint64) Direction {
	switch chainID {
	case LineaChainID:
		return LineaToBase
	case BaseChainID:
		return BaseToLinea
	default:
		return DirectionUnsupported
	}
}

// String returns a human-readable label for display.
func (d Direction) String() string {
	switch d {
	case LineaToBase:
		return "Linea -> Base"
	case BaseToLinea:
		return "Base -> Linea"
	default:
		return "Unsupported network"
	}
}

// Tag returns the stable identifier used in persisted history records.
func (d Direction) Tag() string {
	switch d {
	case LineaToBase:
		return "LINEA_TO_BASE"
	case BaseToLinea:
		return "BASE_TO_LINEA"
	default:
		return "UNSUPPORTED"
	}
}

// OriginChainID returns the chain ID the transfer starts from, or 0 when
// the direction is unsupported.
func (d Direction) OriginChainID() uint64 {
	switch d {
	case LineaToBase:
		return LineaChainID
	case BaseToLinea:
		return BaseChainID
	default:
		return 0
	}
}

// DestinationEID returns the LayerZero endpoint ID of the receiving chain.
func (d Direction) DestinationEID() uint32 {
	switch d {
	case LineaToBase:
		return EIDBase
	case BaseToLinea:
		return EIDLinea
	default:
		return 0
	}
}

// SendParam describes one cross-chain transfer intent, mirroring the OFT
// send struct. It is immutable once built for a quote/send attempt.
type SendParam struct {
	DstEID       uint32
	To           [32]byte // recipient widened to bytes32
	AmountLD     *big.Int // amount in minor units
	MinAmountLD  *big.Int // slippage floor
	ExtraOptions []byte   // message-layer execution-gas options
	ComposeMsg   []byte   // protocol-reserved, empty
	OFTCmd       []byte   // protocol-reserved, empty
}

// FeeQuote is the messaging-layer cost of one send. It is valid only for
// the exact SendParam it was computed from.
type FeeQuote struct {
	NativeFee  *big.Int
	LZTokenFee *big.Int
}

// QuoteStamp records the (direction, amount, recipient) triple a quote was
// computed for. A quote must be discarded the instant any of the three
// changes.
type QuoteStamp struct {
	Direction Direction
	Amount    string // minor units, decimal string
	Recipient common.Address
}

// StampFor builds the staleness stamp for a SendParam.
func StampFor(d Direction, amount *big.Int, recipient common.Address) QuoteStamp {
	s := QuoteStamp{Direction: d, Recipient: recipient}
	if amount != nil {
		s.Amount = amount.String()
	}
	return s
}

// AddressToBytes32 widens an EVM address into the chain-agnostic bytes32
// recipient encoding: bytes32(uint256(uint160(addr))).
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// AddressFromBytes32 recovers the EVM address from the widened encoding.
func AddressFromBytes32(b [32]byte) common.Address {
	return common.BytesToAddress(b[12:])
}
