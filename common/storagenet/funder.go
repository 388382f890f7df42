package storagenet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// transferGas is the gas limit of a plain value transfer.
const transferGas = 21000

// Funder moves native tokens on the settlement chain.
type Funder interface {
	Transfer(ctx context.Context, to string, amount *big.Int) (string, error)
}

// chainClient is the subset of ethclient.Client the funder uses.
type chainClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// ChainFunder sends legacy value transfers through a JSON-RPC endpoint.
type ChainFunder struct {
	client chainClient
	key    *ecdsa.PrivateKey
	from   common.Address
}

// DialFunder connects to rpcURL. For HTTP endpoints no request is made until
// the first transfer.
func DialFunder(ctx context.Context, rpcURL string, key *ecdsa.PrivateKey) (*ChainFunder, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return newChainFunder(client, key), nil
}

func newChainFunder(client chainClient, key *ecdsa.PrivateKey) *ChainFunder {
	return &ChainFunder{
		client: client,
		key:    key,
		from:   crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Transfer sends amount to the hex address to and returns the transaction hash.
func (f *ChainFunder) Transfer(ctx context.Context, to string, amount *big.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid deposit address %q", to)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", errors.New("transfer amount must be positive")
	}

	nonce, err := f.client.PendingNonceAt(ctx, f.from)
	if err != nil {
		return "", fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := f.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}
	chainID, err := f.client.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("get chain id: %w", err)
	}

	toAddr := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    amount,
		Gas:      transferGas,
		GasPrice: gasPrice,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), f.key)
	if err != nil {
		return "", fmt.Errorf("sign transfer: %w", err)
	}
	if err := f.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send transfer: %w", err)
	}

	return signed.Hash().Hex(), nil
}
