// Package evm backs the bridge's session and contract interfaces with a
// JSON-RPC connection and a local signing key.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const receiptPollInterval = 2 * time.Second

// Client is the CLI's wallet session: one RPC connection plus an optional
// signing key. Without a key the session is read-only and reported as
// inactive.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	addr    common.Address
	log     *zap.Logger
}

// Dial connects to an RPC endpoint and, when privateKeyHex is non-empty,
// loads the signing key.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, log *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}
	if log == nil {
		log = zap.NewNop()
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	c := &Client{eth: eth, chainID: chainID, log: log}

	if privateKeyHex != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			eth.Close()
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.key = key
		c.addr = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Active reports whether a signing key is loaded.
func (c *Client) Active() bool {
	return c.key != nil
}

// ChainID returns the connected network's chain ID.
func (c *Client) ChainID() uint64 {
	return c.chainID.Uint64()
}

// Address returns the signing account, or the zero address when read-only.
func (c *Client) Address() common.Address {
	return c.addr
}

// NativeBalance reads the account's native-currency balance.
func (c *Client) NativeBalance(ctx context.Context) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, c.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// call performs a read-only contract call and unpacks the outputs.
func (c *Client) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &to, Data: data}
	result, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return out, nil
}

// transact signs and submits a contract call carrying value, returning the
// transaction hash.
func (c *Client) transact(ctx context.Context, to common.Address, value *big.Int, data []byte, fallbackGas uint64) (common.Hash, error) {
	if c.key == nil {
		return common.Hash{}, fmt.Errorf("no signing key configured")
	}
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.addr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := fallbackGas
	msg := ethereum.CallMsg{From: c.addr, To: &to, Value: value, Data: data}
	if estimated, err := c.eth.EstimateGas(ctx, msg); err == nil {
		gasLimit = estimated * 120 / 100 // 20% headroom
	} else {
		c.log.Debug("gas estimation failed, using fallback", zap.Uint64("fallback", fallbackGas), zap.Error(err))
	}

	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signedTx.Hash(), nil
}

// WaitMined polls for the transaction receipt until inclusion or ctx
// cancellation. A reverted transaction is an error.
func (c *Client) WaitMined(ctx context.Context, tx common.Hash) error {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, tx)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", tx.Hex())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TransactionStatus describes a submitted transaction for display.
type TransactionStatus struct {
	Hash        string
	Pending     bool
	BlockNumber uint64
	GasUsed     uint64
	Reverted    bool
}

// Status looks up a transaction and its receipt.
func (c *Client) Status(ctx context.Context, tx common.Hash) (*TransactionStatus, error) {
	_, pending, err := c.eth.TransactionByHash(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	st := &TransactionStatus{Hash: tx.Hex(), Pending: pending}
	if pending {
		return st, nil
	}

	receipt, err := c.eth.TransactionReceipt(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	st.BlockNumber = receipt.BlockNumber.Uint64()
	st.GasUsed = receipt.GasUsed
	st.Reverted = receipt.Status != types.ReceiptStatusSuccessful
	return st, nil
}
