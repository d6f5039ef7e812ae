package lending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Client provides typed helpers over the node's JSON-RPC API.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	nextID   atomic.Int64
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithAuthToken sets the bearer token sent with every request. Mutating
// methods are rejected by the node without one.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New builds a client for the given JSON-RPC endpoint.
func New(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// RPCError is the JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call issues a raw JSON-RPC request and decodes the result into out. Typed
// helpers cover the common methods; Call remains for anything else.
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []interface{}{},
		ID:      c.nextID.Add(1),
	}
	if params != nil {
		payload.Params = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lending client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("lending client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lending client: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("lending client: read response: %w", err)
	}
	decoded := rpcResponse{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("lending client: decode response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("lending client: decode result: %w", err)
	}
	return nil
}
