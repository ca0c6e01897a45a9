package midtrans

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pradiptarana/jokipay-backend/pkg/config"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

var errServerKeyRequired = errors.New("midtrans server key is required")

// Client is a thin HTTP client for the Midtrans Snap API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serverKey  string
}

// NewClient initializes the Snap client with the configured credentials.
func NewClient(ctx context.Context, cfg config.MidtransConfig, logg *logger.Logger) (*Client, error) {
	serverKey := strings.TrimSpace(cfg.ServerKey)
	if serverKey == "" {
		return nil, errServerKeyRequired
	}
	baseURL := strings.TrimRight(cfg.SnapBaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("midtrans snap base url is required")
	}

	if logg != nil {
		logg.Info(ctx, "midtrans snap client initialized")
	}

	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		serverKey:  serverKey,
	}, nil
}

// ServerKey exposes the secret used to verify webhook signatures.
func (c *Client) ServerKey() string {
	if c == nil {
		return ""
	}
	return c.serverKey
}

// TransactionDetails identifies the order and amount for a Snap session.
type TransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

// CustomerDetails is forwarded to the gateway's hosted payment page.
type CustomerDetails struct {
	FirstName string `json:"first_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// ItemDetail describes one line on the hosted payment page.
type ItemDetail struct {
	ID       string `json:"id"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Name     string `json:"name"`
}

// SnapRequest is the payload for creating a Snap transaction.
type SnapRequest struct {
	TransactionDetails TransactionDetails `json:"transaction_details"`
	CustomerDetails    *CustomerDetails   `json:"customer_details,omitempty"`
	ItemDetails        []ItemDetail       `json:"item_details,omitempty"`
}

// SnapResponse carries the hosted payment session handle.
type SnapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSnapTransaction opens a hosted payment session for the given order.
func (c *Client) CreateSnapTransaction(ctx context.Context, req SnapRequest) (*SnapResponse, error) {
	if req.TransactionDetails.OrderID == "" {
		return nil, errors.New("order id is required")
	}
	if req.TransactionDetails.GrossAmount <= 0 {
		return nil, errors.New("gross amount must be positive")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode snap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/snap/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build snap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	// Midtrans uses basic auth with the server key as username and no password.
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call snap api: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read snap response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("snap api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var snap SnapResponse
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snap response: %w", err)
	}
	if snap.Token == "" {
		return nil, errors.New("snap response missing token")
	}
	return &snap, nil
}
