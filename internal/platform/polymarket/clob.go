package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/polysignal/engine/internal/domain"
)

// CLOB per-endpoint budgets at 80% of the documented limits.
const (
	clobBookRate     = 16 // /book: 20 req/s
	clobBookBurst    = 32
	clobBatchRate    = 6 // /books: 8 req/s
	clobBatchBurst   = 12
	clobHistoryRate  = 8 // /prices-history: 10 req/s
	clobHistoryBurst = 16

	// maxBatchTokens is the CLOB cap on tokens per /books request.
	maxBatchTokens = 500
)

// ClobClient is the read-only REST client for the Polymarket CLOB API. It
// fetches orderbooks, midpoints, and traded price history; no authentication
// is required for any of these endpoints.
type ClobClient struct {
	baseURL        string
	httpClient     *http.Client
	bookLimiter    *rate.Limiter
	batchLimiter   *rate.Limiter
	historyLimiter *rate.Limiter
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		bookLimiter:    rate.NewLimiter(clobBookRate, clobBookBurst),
		batchLimiter:   rate.NewLimiter(clobBatchRate, clobBatchBurst),
		historyLimiter: rate.NewLimiter(clobHistoryRate, clobHistoryBurst),
	}
}

// GetBook fetches the orderbook for a single token.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, c.bookLimiter, "/book?"+params.Encode())
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	snap := book.ToSnapshot()
	if snap.TokenID == "" {
		snap.TokenID = tokenID
	}
	return snap, nil
}

// GetBooks fetches orderbooks for multiple tokens in one POST /books call.
// Tokens beyond the API's per-request cap are silently dropped; callers page
// if they need more.
func (c *ClobClient) GetBooks(ctx context.Context, tokenIDs []string) ([]domain.OrderbookSnapshot, error) {
	if len(tokenIDs) == 0 {
		return nil, nil
	}
	if len(tokenIDs) > maxBatchTokens {
		tokenIDs = tokenIDs[:maxBatchTokens]
	}

	payload := make([]map[string]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		payload = append(payload, map[string]string{"token_id": id})
	}

	body, err := c.doPost(ctx, c.batchLimiter, "/books", payload)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get books: %w", err)
	}

	var books []APIBook
	if err := json.Unmarshal(body, &books); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode books: %w", err)
	}

	snaps := make([]domain.OrderbookSnapshot, 0, len(books))
	for i := range books {
		snaps = append(snaps, books[i].ToSnapshot())
	}
	return snaps, nil
}

// GetMidpoint fetches the midpoint price for a token.
func (c *ClobClient) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, c.bookLimiter, "/midpoint?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get midpoint %s: %w", tokenID, err)
	}

	var resp struct {
		Mid flexFloat `json:"mid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode midpoint: %w", err)
	}
	return float64(resp.Mid), nil
}

// GetPriceHistory fetches traded price history for a token.
//
// interval is one of "1m", "1h", "6h", "1d", "1w", "max"; fidelity is the
// resolution in minutes.
func (c *ClobClient) GetPriceHistory(ctx context.Context, tokenID, interval string, fidelity int) ([]HistoryPoint, error) {
	params := url.Values{}
	params.Set("market", tokenID)
	params.Set("interval", interval)
	if fidelity > 0 {
		params.Set("fidelity", strconv.Itoa(fidelity))
	}

	body, err := c.doGet(ctx, c.historyLimiter, "/prices-history?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get price history %s: %w", tokenID, err)
	}

	var resp historyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode price history: %w", err)
	}
	return resp.History, nil
}

// doGet sends a rate-limited GET request to the CLOB API.
func (c *ClobClient) doGet(ctx context.Context, limiter *rate.Limiter, path string) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req)
}

// doPost sends a rate-limited POST request with a JSON body to the CLOB API.
func (c *ClobClient) doPost(ctx context.Context, limiter *rate.Limiter, path string, payload any) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.send(req)
}

func (c *ClobClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
