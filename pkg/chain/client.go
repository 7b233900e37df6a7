package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the slice of the RPC surface the verifier needs.
// *ethclient.Client satisfies it; tests supply a fake.
type Backend interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

func Dial(ctx context.Context, cfg Config) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	defer cancel()

	return ethclient.DialContext(dialCtx, cfg.RPCURL)
}
