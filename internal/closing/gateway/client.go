// Package gateway adapts the remote invoicing service the closing engine
// submits to. The remote side is authoritative for invoice existence; this
// adapter never retries on its own.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/config"
	"github.com/sphera-erp/sphera/internal/observability/tracing"
)

const dateLayout = "2006-01-02"

type closePayload struct {
	ClientID             string               `json:"clientId"`
	IssueDate            string               `json:"issueDate"`
	MissingPriceBehavior int                  `json:"missingPriceBehavior"`
	TotalAmount          *decimal.Decimal     `json:"totalAmount,omitempty"`
	DueDate              string               `json:"dueDate,omitempty"`
	Installments         []installmentPayload `json:"installments,omitempty"`
}

type installmentPayload struct {
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate string          `json:"dueDate"`
}

type closeResponse struct {
	InvoiceID string `json:"invoiceId"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func New(cfg config.GatewayConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		client:  tracing.WrapHTTPClient(&http.Client{Timeout: timeout}),
	}
}

func (c *Client) CloseInvoicesForClient(ctx context.Context, req domain.CloseRequest) (domain.CloseResult, error) {
	payload := closePayload{
		ClientID:             req.ClientID,
		IssueDate:            req.IssueDate.Format(dateLayout),
		MissingPriceBehavior: int(req.MissingPriceBehavior),
		TotalAmount:          req.TotalAmount,
	}
	if req.DueDate != nil {
		payload.DueDate = req.DueDate.Format(dateLayout)
	}
	for _, inst := range req.Installments {
		payload.Installments = append(payload.Installments, installmentPayload{
			Number:  inst.Number,
			Amount:  inst.Amount,
			DueDate: inst.DueDate.Format(dateLayout),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.CloseResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/clients/"+req.ClientID+"/close", bytes.NewReader(body))
	if err != nil {
		return domain.CloseResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.Header.Set("Idempotency-Key", "close:"+req.ClientID+":"+payload.IssueDate)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.CloseResult{}, &domain.GatewayError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&gwErr); err != nil {
			return domain.CloseResult{}, &domain.GatewayError{Message: "invoice_gateway_failed"}
		}
		return domain.CloseResult{}, &domain.GatewayError{Message: strings.TrimSpace(gwErr.Error.Message)}
	}

	var result closeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.CloseResult{}, &domain.GatewayError{Message: "invoice_gateway_response_invalid"}
	}
	if result.InvoiceID == "" {
		return domain.CloseResult{}, &domain.GatewayError{Message: "invoice_gateway_response_invalid"}
	}
	return domain.CloseResult{InvoiceID: result.InvoiceID}, nil
}
