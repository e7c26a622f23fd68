// Package payment предоставляет клиент платёжного шлюза.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Ошибки уровня шлюза. ErrProvider означает недоступность или внутреннюю
// ошибку провайдера, ErrNotCaptured — интент не в статусе succeeded,
// ErrRefundFailed — провайдер отклонил возврат.
var (
	ErrProvider     = errors.New("payment provider error")
	ErrNotCaptured  = errors.New("payment not captured")
	ErrRefundFailed = errors.New("refund failed")
)

// StatusSucceeded — статус интента с захваченными средствами.
const StatusSucceeded = "succeeded"

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Intent описывает платёжный интент в ответах шлюза.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	AmountCents  int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// RefundResult описывает принятый шлюзом возврат.
type RefundResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount"`
}

// NewClient создаёт HTTP-клиент для обращения к платёжному шлюзу по указанному адресу.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("payment client not configured")
	}

	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var gwErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&gwErr)
		return fmt.Errorf("gateway status %d: %s", resp.StatusCode, gwErr.Error)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// CreateIntent создаёт платёжный интент на указанную сумму в минорных единицах.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	req := struct {
		Amount   int64             `json:"amount"`
		Currency string            `json:"currency"`
		Metadata map[string]string `json:"metadata,omitempty"`
	}{
		Amount:   amountCents,
		Currency: currency,
		Metadata: metadata,
	}

	var intent Intent
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", req, nil, &intent); err != nil {
		return nil, fmt.Errorf("create intent: %w", err)
	}
	return &intent, nil
}

// RetrieveIntent запрашивает у шлюза актуальное состояние интента.
func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	var intent Intent
	if err := c.do(ctx, http.MethodGet, "/v1/payment_intents/"+intentID, nil, nil, &intent); err != nil {
		return nil, fmt.Errorf("retrieve intent: %w", err)
	}
	return &intent, nil
}

// Refund просит шлюз вернуть часть захваченной суммы. idempotencyKey
// передаётся в заголовке Idempotency-Key, повтор с тем же ключом безопасен.
func (c *Client) Refund(ctx context.Context, intentID string, amountCents int64, reason, idempotencyKey string) (*RefundResult, error) {
	req := struct {
		PaymentIntent string `json:"payment_intent"`
		Amount        int64  `json:"amount"`
		Reason        string `json:"reason,omitempty"`
	}{
		PaymentIntent: intentID,
		Amount:        amountCents,
		Reason:        reason,
	}

	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var res RefundResult
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", req, headers, &res); err != nil {
		if errors.Is(err, ErrProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRefundFailed, err)
	}
	if res.Status == "failed" {
		return nil, fmt.Errorf("%w: gateway status failed", ErrRefundFailed)
	}
	return &res, nil
}
