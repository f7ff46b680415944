package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"dtc-bridge/pkg/types"
)

// Minimal ABI fragments for the calls the bridge needs.
const (
	erc20ABIJSON = `[
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	oftABIJSON = `[
		{"name":"quoteSend","type":"function","stateMutability":"view","inputs":[
			{"name":"_sendParam","type":"tuple","components":[
				{"name":"dstEid","type":"uint32"},
				{"name":"to","type":"bytes32"},
				{"name":"amountLD","type":"uint256"},
				{"name":"minAmountLD","type":"uint256"},
				{"name":"extraOptions","type":"bytes"},
				{"name":"composeMsg","type":"bytes"},
				{"name":"oftCmd","type":"bytes"}
			]},
			{"name":"_payInLzToken","type":"bool"}
		],"outputs":[
			{"name":"msgFee","type":"tuple","components":[
				{"name":"nativeFee","type":"uint256"},
				{"name":"lzTokenFee","type":"uint256"}
			]}
		]},
		{"name":"send","type":"function","stateMutability":"payable","inputs":[
			{"name":"_sendParam","type":"tuple","components":[
				{"name":"dstEid","type":"uint32"},
				{"name":"to","type":"bytes32"},
				{"name":"amountLD","type":"uint256"},
				{"name":"minAmountLD","type":"uint256"},
				{"name":"extraOptions","type":"bytes"},
				{"name":"composeMsg","type":"bytes"},
				{"name":"oftCmd","type":"bytes"}
			]},
			{"name":"_fee","type":"tuple","components":[
				{"name":"nativeFee","type":"uint256"},
				{"name":"lzTokenFee","type":"uint256"}
			]},
			{"name":"_refundAddress","type":"address"}
		],"outputs":[]}
	]`

	routerABIJSON = `[
		{"name":"capPerTx","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"lzReceiveGas","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"bridgeToLinea","type":"function","stateMutability":"payable","inputs":[{"name":"_to","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[]}
	]`
)

// Fallback gas limits when estimation fails.
const (
	approveGasFallback  = 80_000
	transferGasFallback = 100_000
	sendGasFallback     = 600_000
)

var (
	erc20ABI  = mustABI(erc20ABIJSON)
	oftABI    = mustABI(oftABIJSON)
	routerABI = mustABI(routerABIJSON)
)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// sendParamTuple mirrors the OFT SendParam struct for ABI packing.
type sendParamTuple struct {
	DstEid       uint32
	To           [32]byte
	AmountLD     *big.Int
	MinAmountLD  *big.Int
	ExtraOptions []byte
	ComposeMsg   []byte
	OftCmd       []byte
}

// messagingFeeTuple mirrors the OFT MessagingFee struct.
type messagingFeeTuple struct {
	NativeFee  *big.Int
	LzTokenFee *big.Int
}

func toTuple(p types.SendParam) sendParamTuple {
	return sendParamTuple{
		DstEid:       p.DstEID,
		To:           p.To,
		AmountLD:     p.AmountLD,
		MinAmountLD:  p.MinAmountLD,
		ExtraOptions: p.ExtraOptions,
		ComposeMsg:   p.ComposeMsg,
		OftCmd:       p.OFTCmd,
	}
}

// Leg is the per-direction view of the deployed contracts. The Linea leg
// sends through the OFT adapter directly; the Base leg sends through the
// router, which also publishes the transfer cap and receive gas.
type Leg struct {
	client  *Client
	token   common.Address // ERC-20 surface of the origin token
	spender common.Address // contract that pulls the tokens
	oft     common.Address // quoteSend target
	router  common.Address // zero when the leg has no router
}

// NewLineaLeg builds the Linea -> Base view: the DTC token on Linea plus
// the OFT adapter that locks it.
func NewLineaLeg(client *Client, token, adapter common.Address) *Leg {
	return &Leg{client: client, token: token, spender: adapter, oft: adapter}
}

// NewBaseLeg builds the Base -> Linea view: the OFT token itself plus the
// router carrying cap and gas parameters.
func NewBaseLeg(client *Client, oft, router common.Address) *Leg {
	return &Leg{client: client, token: oft, spender: router, oft: oft, router: router}
}

func (l *Leg) Decimals(ctx context.Context) (uint8, error) {
	out, err := l.client.call(ctx, l.token, erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (l *Leg) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := l.client.call(ctx, l.token, erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (l *Leg) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	out, err := l.client.call(ctx, l.token, erc20ABI, "allowance", owner, l.spender)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (l *Leg) Approve(ctx context.Context, amount *big.Int) (common.Hash, error) {
	data, err := erc20ABI.Pack("approve", l.spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve: %w", err)
	}
	return l.client.transact(ctx, l.token, nil, data, approveGasFallback)
}

func (l *Leg) CapPerTx(ctx context.Context) (*big.Int, error) {
	if l.router == (common.Address{}) {
		return nil, nil
	}
	out, err := l.client.call(ctx, l.router, routerABI, "capPerTx")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (l *Leg) LzReceiveGas(ctx context.Context) (*big.Int, error) {
	if l.router == (common.Address{}) {
		return nil, nil
	}
	out, err := l.client.call(ctx, l.router, routerABI, "lzReceiveGas")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (l *Leg) QuoteSend(ctx context.Context, p types.SendParam) (*types.FeeQuote, error) {
	out, err := l.client.call(ctx, l.oft, oftABI, "quoteSend", toTuple(p), false)
	if err != nil {
		return nil, err
	}
	fee := abi.ConvertType(out[0], new(messagingFeeTuple)).(*messagingFeeTuple)
	return &types.FeeQuote{NativeFee: fee.NativeFee, LZTokenFee: fee.LzTokenFee}, nil
}

func (l *Leg) Send(ctx context.Context, p types.SendParam, fee *types.FeeQuote) (common.Hash, error) {
	if l.router != (common.Address{}) {
		// The router takes a plain (recipient, amount) pair and builds the
		// message itself.
		recipient := types.AddressFromBytes32(p.To)
		data, err := routerABI.Pack("bridgeToLinea", recipient, p.AmountLD)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to pack bridgeToLinea: %w", err)
		}
		return l.client.transact(ctx, l.router, fee.NativeFee, data, sendGasFallback)
	}

	data, err := oftABI.Pack("send",
		toTuple(p),
		messagingFeeTuple{NativeFee: fee.NativeFee, LzTokenFee: new(big.Int)},
		l.client.Address(),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack send: %w", err)
	}
	return l.client.transact(ctx, l.oft, fee.NativeFee, data, sendGasFallback)
}

func (l *Leg) Deposit(ctx context.Context, amount *big.Int) (common.Hash, error) {
	data, err := erc20ABI.Pack("transfer", l.spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack transfer: %w", err)
	}
	return l.client.transact(ctx, l.token, nil, data, transferGasFallback)
}

func (l *Leg) WaitMined(ctx context.Context, tx common.Hash) error {
	return l.client.WaitMined(ctx, tx)
}
