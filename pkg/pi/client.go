package pi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client talks to the Pi platform API (api.minepi.com) with the server API
// key. Calls time out after the configured duration; timeouts and 5xx
// responses are retried a bounded number of times with backoff, 4xx never.
type Client struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	Backoff    time.Duration
	client     *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, backoff time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.minepi.com"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		MaxRetries: maxRetries,
		Backoff:    backoff,
		client:     &http.Client{Timeout: timeout},
	}
}

type createPaymentReq struct {
	Payment struct {
		Amount   int64                  `json:"amount"`
		Memo     string                 `json:"memo"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"payment"`
}

func (c *Client) CreatePayment(ctx context.Context, req CreateRequest) (*RemotePayment, error) {
	var payload createPaymentReq
	payload.Payment.Amount = req.Amount
	payload.Payment.Memo = req.Memo
	payload.Payment.Metadata = req.Metadata
	body, err := c.post(ctx, "/v2/payments", payload)
	if err != nil {
		return nil, err
	}
	var out RemotePayment
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("pi: decode create response: %w", err)
	}
	if out.Identifier == "" {
		return nil, fmt.Errorf("pi: create response missing identifier")
	}
	return &out, nil
}

func (c *Client) ApprovePayment(ctx context.Context, identifier string) error {
	_, err := c.post(ctx, "/v2/payments/"+identifier+"/approve", struct{}{})
	return err
}

func (c *Client) CompletePayment(ctx context.Context, identifier, txid string) error {
	payload := map[string]string{}
	if txid != "" {
		payload["txid"] = txid
	}
	_, err := c.post(ctx, "/v2/payments/"+identifier+"/complete", payload)
	return err
}

// post sends one JSON POST with retries. The request body is rebuilt per
// attempt so a retried call never reuses a drained reader.
func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.Backoff * time.Duration(attempt)):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Key "+c.APIKey)
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			log.Printf("[PI] POST %s attempt=%d transport error: %v", path, attempt+1, err)
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
			log.Printf("[PI] POST %s attempt=%d status=%d, retrying", path, attempt+1, resp.StatusCode)
			continue
		default:
			// 4xx means the request itself is wrong; retrying cannot help.
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
