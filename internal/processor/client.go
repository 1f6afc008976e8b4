package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/profast/parcel-payments-service/internal/domain"
	"github.com/profast/parcel-payments-service/internal/logger"
)

// Client wraps the external payment processor's intent API. The processor
// owns the intent lifecycle; this side only converts the amount to minor
// units and carries the confirmation token back.
type Client struct {
	baseURL  string
	apiKey   string
	currency string
	client   *http.Client
}

func NewClient(baseURL, apiKey, currency string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		currency: currency,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type intentRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type intentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// CreateIntent asks the processor to open a charge for amount, in minor
// units. Network errors and 5xx responses are retried with capped exponential
// backoff; processor rejections fail immediately.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal) (string, error) {
	body, err := json.Marshal(intentRequest{
		Amount:   domain.MinorUnits(amount),
		Currency: c.currency,
	})
	if err != nil {
		return "", fmt.Errorf("marshal intent request: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))

	var token string
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("do request: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			var res intentResponse
			if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if res.ClientSecret == "" {
				return fmt.Errorf("processor returned empty client secret")
			}
			token = res.ClientSecret
			return nil
		case resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			logger.Warn("processor unavailable, will retry", "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("processor status %d", resp.StatusCode))
		default:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("processor rejected intent: status %d", resp.StatusCode)
		}
	})
	if err != nil {
		return "", err
	}

	return token, nil
}
