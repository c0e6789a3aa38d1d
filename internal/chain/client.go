package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"protocolScope/internal/model"
)

// Client wraps go-ethereum RPC and assembles traced blocks.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// FetchBlock returns the block with receipts, call traces and state diffs.
func (c *Client) FetchBlock(ctx context.Context, number uint64) (*model.Block, error) {
	bn := new(big.Int).SetUint64(number)
	block, err := c.ethClient.BlockByNumber(ctx, bn)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", number, err)
	}
	receipts, err := c.ethClient.BlockReceipts(ctx, rpc.BlockNumberOrHashWithNumber(rpc.BlockNumber(number)))
	if err != nil {
		return nil, fmt.Errorf("receipts %d: %w", number, err)
	}
	calls, err := c.traceCalls(ctx, number)
	if err != nil {
		return nil, err
	}
	diffs, err := c.traceStateDiffs(ctx, number)
	if err != nil {
		return nil, err
	}

	txs := block.Transactions()
	if len(receipts) != len(txs) || len(calls) != len(txs) || len(diffs) != len(txs) {
		return nil, fmt.Errorf("block %d: %d txs, %d receipts, %d call traces, %d state diffs",
			number, len(txs), len(receipts), len(calls), len(diffs))
	}

	return buildBlock(block, receipts, calls, diffs), nil
}

func (c *Client) traceCalls(ctx context.Context, number uint64) ([]callFrame, error) {
	var results []struct {
		Result callFrame `json:"result"`
	}
	err := c.rpcClient.CallContext(ctx, &results, "debug_traceBlockByNumber", hexutil.EncodeUint64(number),
		map[string]interface{}{"tracer": "callTracer"})
	if err != nil {
		return nil, fmt.Errorf("trace calls %d: %w", number, err)
	}
	out := make([]callFrame, len(results))
	for i := range results {
		out[i] = results[i].Result
	}
	return out, nil
}

func (c *Client) traceStateDiffs(ctx context.Context, number uint64) ([]stateDiff, error) {
	var results []struct {
		Result stateDiff `json:"result"`
	}
	err := c.rpcClient.CallContext(ctx, &results, "debug_traceBlockByNumber", hexutil.EncodeUint64(number),
		map[string]interface{}{
			"tracer":       "prestateTracer",
			"tracerConfig": map[string]interface{}{"diffMode": true},
		})
	if err != nil {
		return nil, fmt.Errorf("trace state diffs %d: %w", number, err)
	}
	out := make([]stateDiff, len(results))
	for i := range results {
		out[i] = results[i].Result
	}
	return out, nil
}

// callFrame is one frame of the callTracer output.
type callFrame struct {
	Type   string          `json:"type"`
	From   common.Address  `json:"from"`
	To     *common.Address `json:"to,omitempty"`
	Input  hexutil.Bytes   `json:"input"`
	Output hexutil.Bytes   `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Calls  []callFrame     `json:"calls,omitempty"`
}

// stateDiff is the prestateTracer diffMode output of one transaction.
type stateDiff struct {
	Pre  map[common.Address]accountState `json:"pre"`
	Post map[common.Address]accountState `json:"post"`
}

type accountState struct {
	Balance *hexutil.Big                `json:"balance,omitempty"`
	Code    hexutil.Bytes               `json:"code,omitempty"`
	Nonce   uint64                      `json:"nonce,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
}
