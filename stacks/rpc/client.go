// Package rpc talks to a Stacks node and its API server over HTTP.
package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common/lru"
	logger "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/TEENet-io/sbtc-bridge/stacks"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxElapsedTime = 5 * time.Minute
	BlockCacheSize        = 256
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnexpectedReply = errors.New("unexpected reply from stacks api")
)

// HTTPStatusError is returned for non-2xx replies.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("stacks api returned http %d: %s", e.Code, e.Body)
}

// Transient reports whether the request is worth repeating.
func (e *HTTPStatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code == 522
}

type ClientConfig struct {
	URL            string
	Timeout        time.Duration
	MaxElapsedTime time.Duration
}

type Client struct {
	url        string
	http       *http.Client
	maxElapsed time.Duration
	blocks     *lru.Cache[uint64, *Block]
}

func NewClient(cfg *ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxElapsed := cfg.MaxElapsedTime
	if maxElapsed == 0 {
		maxElapsed = DefaultMaxElapsedTime
	}

	return &Client{
		url:        strings.TrimRight(cfg.URL, "/"),
		http:       &http.Client{Timeout: timeout},
		maxElapsed: maxElapsed,
		blocks:     lru.NewCache[uint64, *Block](BlockCacheSize),
	}
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = c.maxElapsed
	return backoff.WithContext(b, ctx)
}

// do performs one request with retries. Connection errors and 429/522 are
// retried, every other failure is returned immediately.
func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte) ([]byte, error) {
	var reply []byte

	op := func() error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url+path, rd)
		if err != nil {
			return backoff.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, path))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &HTTPStatusError{Code: resp.StatusCode, Body: string(b)}
			if statusErr.Transient() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		reply = b
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logger.WithFields(logger.Fields{
			"path":  path,
			"retry": wait,
		}).Warnf("stacks api request failed: %v", err)
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *Client) get(ctx context.Context, path string) (gjson.Result, error) {
	b, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(b) {
		return gjson.Result{}, fmt.Errorf("%w: invalid json from %s", ErrUnexpectedReply, path)
	}
	return gjson.ParseBytes(b), nil
}

// Block is the part of a Stacks block the peg cares about.
type Block struct {
	Height          uint64
	ID              stacks.BlockID
	BurnBlockHeight uint64
}

// GetBlockByHeight returns ErrNotFound while the block is not produced yet.
func (c *Client) GetBlockByHeight(ctx context.Context, height uint64) (*Block, error) {
	if b, ok := c.blocks.Get(height); ok {
		return b, nil
	}

	res, err := c.get(ctx, fmt.Sprintf("/extended/v1/block/by_height/%d", height))
	if err != nil {
		return nil, err
	}

	idStr := res.Get("index_block_hash").String()
	if idStr == "" {
		idStr = res.Get("hash").String()
	}
	var id stacks.BlockID
	if err := id.UnmarshalText([]byte(idStr)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}

	block := &Block{
		Height:          res.Get("height").Uint(),
		ID:              id,
		BurnBlockHeight: res.Get("burn_block_height").Uint(),
	}
	if block.Height != height {
		return nil, fmt.Errorf("%w: asked for block %d, got %d", ErrUnexpectedReply, height, block.Height)
	}

	c.blocks.Add(height, block)
	return block, nil
}

type TxStatus int

const (
	TxPending TxStatus = iota
	TxSuccess
	TxFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxSuccess:
		return "success"
	default:
		return "failed"
	}
}

// GetTxStatus maps the API tx_status onto pending/success/failed. A
// transaction the API does not know yet is pending.
func (c *Client) GetTxStatus(ctx context.Context, txid stacks.TxID) (TxStatus, error) {
	res, err := c.get(ctx, "/extended/v1/tx/"+txid.String())
	if errors.Is(err, ErrNotFound) {
		return TxPending, nil
	}
	if err != nil {
		return TxPending, err
	}

	status := res.Get("tx_status").String()
	switch {
	case status == "success":
		return TxSuccess, nil
	case status == "pending":
		return TxPending, nil
	case strings.HasPrefix(status, "abort_"), strings.HasPrefix(status, "dropped_"):
		return TxFailed, nil
	default:
		return TxPending, fmt.Errorf("%w: tx_status %q", ErrUnexpectedReply, status)
	}
}

// Broadcast posts a serialized transaction and returns the id the node
// reports for it.
func (c *Client) Broadcast(ctx context.Context, rawTx []byte) (stacks.TxID, error) {
	b, err := c.do(ctx, http.MethodPost, "/v2/transactions", "application/octet-stream", rawTx)
	if err != nil {
		return stacks.TxID{}, err
	}

	s := strings.TrimSpace(string(b))
	if gjson.Valid(s) {
		s = gjson.Parse(s).String()
	}
	txid, err := stacks.ParseTxID(s)
	if err != nil {
		return stacks.TxID{}, fmt.Errorf("%w: %v", ErrUnexpectedReply, err)
	}
	return txid, nil
}

// GetNonce returns the next nonce of an account.
func (c *Client) GetNonce(ctx context.Context, addr stacks.Address) (uint64, error) {
	res, err := c.get(ctx, fmt.Sprintf("/v2/accounts/%s?proof=0", addr))
	if err != nil {
		return 0, err
	}
	nonce := res.Get("nonce")
	if !nonce.Exists() {
		return 0, fmt.Errorf("%w: no nonce for %s", ErrUnexpectedReply, addr)
	}
	return nonce.Uint(), nil
}

// GetContractBlockHeight returns the Stacks height at which the contract was
// deployed.
func (c *Client) GetContractBlockHeight(ctx context.Context, contract stacks.Principal) (uint64, error) {
	res, err := c.get(ctx, "/extended/v1/contract/"+contract.String())
	if err != nil {
		return 0, err
	}
	h := res.Get("block_height")
	if !h.Exists() {
		return 0, fmt.Errorf("%w: no block_height for %s", ErrUnexpectedReply, contract)
	}
	return h.Uint(), nil
}
