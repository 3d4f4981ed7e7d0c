package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ecomstack/identity/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client calls the cart service to provision a cart for a newly confirmed
// account.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a cart service client.
func NewClient(httpClient HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

type createCartRequest struct {
	AccountID string `json:"account_id"`
}

type createCartResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// CreateCart asks the cart service for a new cart owned by the account and
// returns the cart ID.
func (c *Client) CreateCart(ctx context.Context, accountID string) (string, error) {
	body, err := json.Marshal(createCartRequest{AccountID: accountID})
	if err != nil {
		return "", fmt.Errorf("marshal create cart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/carts", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create cart request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call cart service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", httpclient.ParseResponseError(resp, "cart")
	}

	var cartResp createCartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cartResp); err != nil {
		return "", fmt.Errorf("decode cart response: %w", err)
	}

	c.logger.InfoContext(ctx, "cart created",
		slog.String("account_id", accountID),
		slog.String("cart_id", cartResp.Data.ID),
	)

	return cartResp.Data.ID, nil
}
