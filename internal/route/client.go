package route

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// RoutingError is a failure reported by the routing service: no viable path,
// an invalid asset pair, or a service-side error.
type RoutingError struct {
	StatusCode int
	Message    string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing service: %s (status %d)", e.Message, e.StatusCode)
}

// Client is the HTTP client for the routing service.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     *slog.Logger
}

func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// Route computes a cross-chain route for the given source and destination.
func (c *Client) Route(ctx context.Context, req RouteRequest) (*Route, error) {
	var r Route
	if err := c.post(ctx, "/v2/fungible/route", req, &r); err != nil {
		return nil, err
	}
	c.log.Debug("route computed",
		"source", req.SourceAssetChainID, "dest", req.DestAssetChainID,
		"amountIn", r.AmountIn, "amountOut", r.AmountOut, "hops", len(r.Operations))
	return &r, nil
}

// Msgs asks the service for the unsigned transactions realizing the route,
// one per signing chain, given the payer's resolved addresses.
func (c *Client) Msgs(ctx context.Context, r *Route, addrs []ChainAddress) ([]UnsignedTx, error) {
	req := struct {
		Route     *Route         `json:"route"`
		Addresses []ChainAddress `json:"userAddresses"`
	}{Route: r, Addresses: addrs}

	var resp struct {
		Txs []UnsignedTx `json:"txs"`
	}
	if err := c.post(ctx, "/v2/fungible/msgs", req, &resp); err != nil {
		return nil, err
	}
	return resp.Txs, nil
}

// SubmitTx broadcasts a signed transaction and returns its hash.
func (c *Client) SubmitTx(ctx context.Context, chainID string, signedTx []byte) (string, error) {
	req := struct {
		ChainID string `json:"chainId"`
		Tx      string `json:"tx"`
	}{ChainID: chainID, Tx: base64.StdEncoding.EncodeToString(signedTx)}

	var resp struct {
		TxHash string `json:"txHash"`
	}
	if err := c.post(ctx, "/v2/tx/submit", req, &resp); err != nil {
		return "", err
	}
	return resp.TxHash, nil
}

// TxStatus reports the confirmation state of a submitted transaction.
func (c *Client) TxStatus(ctx context.Context, chainID, txHash string) (*TxStatus, error) {
	q := url.Values{"chainId": {chainID}, "txHash": {txHash}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/tx/status?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("querying tx status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}
	var st TxStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decoding tx status: %w", err)
	}
	return &st, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling routing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding routing service response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
}

func readError(resp *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		body.Message = resp.Status
	}
	return &RoutingError{StatusCode: resp.StatusCode, Message: body.Message}
}
