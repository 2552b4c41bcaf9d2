// Package rpc is the chain transport for the dashboard. It reads token
// metadata and balances, queries and polls Transfer logs, signs and sends
// transfer and mint transactions, and waits for their receipts, all through
// go-ethereum's ethclient over a retrying HTTP client.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"tokendash/pkg/logger"
	"tokendash/pkg/models"
	"tokendash/pkg/retry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-retryablehttp"
)

var (
	ErrReverted        = errors.New("transaction reverted")
	ErrMalformedLog    = errors.New("malformed transfer log")
	ErrUnexpectedValue = errors.New("unexpected contract return value")
)

// CallTimeout bounds a single read or write round trip.
var CallTimeout = 10 * time.Second

// Client talks to one node about one token contract.
type Client struct {
	eth   *ethclient.Client
	token common.Address

	confirmInterval time.Duration

	mu      sync.Mutex
	chainID *big.Int
}

type options struct {
	httpRetries     int
	confirmInterval time.Duration
}

// Option configures Dial.
type Option func(*options)

// WithHTTPRetries sets how many times a failed HTTP request is retried by the
// transport. Zero disables retries.
func WithHTTPRetries(n int) Option {
	return func(o *options) {
		o.httpRetries = n
	}
}

// WithConfirmInterval sets how often WaitConfirmed polls for a receipt.
func WithConfirmInterval(d time.Duration) Option {
	return func(o *options) {
		o.confirmInterval = d
	}
}

// Dial connects to rpcURL. HTTP endpoints go through go-retryablehttp;
// websocket and IPC endpoints use go-ethereum's own dialer.
func Dial(ctx context.Context, rpcURL, tokenAddress string, opts ...Option) (*Client, error) {
	o := options{httpRetries: 3, confirmInterval: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if !common.IsHexAddress(tokenAddress) {
		return nil, fmt.Errorf("invalid token address %q", tokenAddress)
	}

	var (
		rc  *gethrpc.Client
		err error
	)
	if strings.HasPrefix(rpcURL, "http://") || strings.HasPrefix(rpcURL, "https://") {
		hc := retryablehttp.NewClient()
		hc.RetryMax = o.httpRetries
		hc.RetryWaitMin = 100 * time.Millisecond
		hc.RetryWaitMax = 2 * time.Second
		hc.Logger = retryLogger{}
		rc, err = gethrpc.DialOptions(ctx, rpcURL, gethrpc.WithHTTPClient(hc.StandardClient()))
	} else {
		rc, err = gethrpc.DialContext(ctx, rpcURL)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}

	return &Client{
		eth:             ethclient.NewClient(rc),
		token:           common.HexToAddress(tokenAddress),
		confirmInterval: o.confirmInterval,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.eth.Close()
}

// TokenAddress returns the contract this client reads and writes.
func (c *Client) TokenAddress() string {
	return c.token.Hex()
}

// ChainID returns the node's chain id, cached after the first success.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	c.chainID = id
	return id, nil
}

// Latency measures one round trip for the latest header.
func (c *Client) Latency(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.eth.HeaderByNumber(ctx, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := TokenABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	msg := ethereum.CallMsg{To: &c.token, Data: data}
	result, err := c.eth.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", method, err)
	}
	out, err := TokenABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%s(): %w", method, ErrUnexpectedValue)
	}
	return out, nil
}

// TokenMetadata reads name, symbol and decimals.
func (c *Client) TokenMetadata(ctx context.Context) (models.TokenMetadata, error) {
	var meta models.TokenMetadata

	out, err := c.call(ctx, "name")
	if err != nil {
		return meta, err
	}
	meta.Name, _ = out[0].(string)

	out, err = c.call(ctx, "symbol")
	if err != nil {
		return meta, err
	}
	meta.Symbol, _ = out[0].(string)

	out, err = c.call(ctx, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("decimals(): %w", ErrUnexpectedValue)
	}
	meta.Decimals = int(decimals)
	return meta, nil
}

// BalanceOf returns the raw token balance of account.
func (c *Client) BalanceOf(ctx context.Context, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account %q", account)
	}
	out, err := c.call(ctx, "balanceOf", common.HexToAddress(account))
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf(): %w", ErrUnexpectedValue)
	}
	return bal, nil
}

type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...any) { logger.Error(context.Background(), msg, kv...) }
func (retryLogger) Warn(msg string, kv ...any)  { logger.Warn(context.Background(), msg, kv...) }
func (retryLogger) Info(msg string, kv ...any)  { logger.Debug(context.Background(), msg, kv...) }
func (retryLogger) Debug(msg string, kv ...any) { logger.Debug(context.Background(), msg, kv...) }

var _ retryablehttp.LeveledLogger = retryLogger{}

func newConfirmRetry(interval time.Duration) retry.Retry {
	return retry.New(
		retry.WithAttempts(0),
		retry.WithFixedDelay(interval),
		retry.WithRetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}
