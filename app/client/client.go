// Package client talks to a remote node over its HTTP RPC surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dblog/app/chain"
	"dblog/app/controllers"
	"dblog/app/models"
	"dblog/app/storage"

	"go.uber.org/zap"
)

// DefaultPollWait is the server-side wait of one receipt long poll.
const DefaultPollWait = 10 * time.Second

// Error is a failed call. Err is the sentinel the node reported, when known.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rpc error: status %d", e.Status)
	}
	return fmt.Sprintf("rpc error: %s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client implements the wallet backend, the registry reader, the indexer event
// source and the content store against a remote node.
type Client struct {
	baseURL  string
	http     *http.Client
	pollWait time.Duration
	logger   *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithPollWait(d time.Duration) Option {
	return func(cl *Client) { cl.pollWait = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid rpc url %q", baseURL)
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: DefaultPollWait + 20*time.Second},
		pollWait: DefaultPollWait,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ChainInfo returns the remote chain id, registry name and head.
func (c *Client) ChainInfo(ctx context.Context) (*chain.Info, error) {
	var info chain.Info
	if err := c.getJSON(ctx, "/rpc/chain", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) SendTransaction(ctx context.Context, tx *chain.Transaction) (string, error) {
	var res controllers.SendTransactionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/rpc/transactions", tx, &res); err != nil {
		return "", err
	}
	return res.Hash, nil
}

func (c *Client) PendingNonce(ctx context.Context, addr models.Address) (uint64, error) {
	var res controllers.NonceResponse
	if err := c.getJSON(ctx, "/rpc/accounts/"+url.PathEscape(string(addr))+"/nonce", &res); err != nil {
		return 0, err
	}
	return res.Nonce, nil
}

// TransactionReceipt returns the receipt of a mined transaction, or an error
// matching chain.ErrReceiptNotFound.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*chain.Receipt, error) {
	var receipt chain.Receipt
	if err := c.getJSON(ctx, "/rpc/transactions/"+url.PathEscape(hash)+"/receipt", &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// WaitForReceipt long-polls the node until hash is mined or ctx is done.
func (c *Client) WaitForReceipt(ctx context.Context, hash string) (*chain.Receipt, error) {
	path := "/rpc/transactions/" + url.PathEscape(hash) + "/receipt?wait=" + c.pollWait.String()
	for {
		var receipt chain.Receipt
		err := c.getJSON(ctx, path, &receipt)
		if err == nil {
			return &receipt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, chain.ErrReceiptNotFound) {
			return nil, err
		}
		c.logger.Debug("receipt not yet available", zap.String("hash", hash))
	}
}

func (c *Client) GetPost(ctx context.Context, contentHash string) (*models.Post, error) {
	var post models.Post
	if err := c.getJSON(ctx, "/rpc/posts/hash/"+url.PathEscape(contentHash), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) GetPostByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := c.getJSON(ctx, "/rpc/posts/"+strconv.FormatInt(id, 10), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) GetPosts(ctx context.Context) ([]*models.Post, error) {
	posts := []*models.Post{}
	if err := c.getJSON(ctx, "/rpc/posts", &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) EventsSince(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatUint(afterSeq, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	events := []models.Event{}
	if err := c.getJSON(ctx, "/rpc/events?"+q.Encode(), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Put uploads data to the node's content store.
func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/blobs", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	var res controllers.PutBlobResponse
	if err := c.do(req, &res); err != nil {
		return "", err
	}
	if res.ID != storage.ComputeID(data) {
		return "", fmt.Errorf("%w: node returned %s", storage.ErrCorrupt, res.ID)
	}
	return res.ID, nil
}

// Get downloads content and checks it against its identifier.
func (c *Client) Get(ctx context.Context, id string) ([]byte, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rpc/blobs/"+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, controllers.MaxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	if err := storage.Verify(id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}
	var body controllers.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil {
		e.Code = body.Code
		e.Message = body.Error
		e.Err = controllers.ErrorForCode(body.Code)
	}
	return e
}
