package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

const (
	xenditBaseURL  = "https://api.xendit.co"
	defaultTimeout = 15 * time.Second
)

type xenditGateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ----------------- Constructor -----------------

func NewXenditGateway(apiKey string, timeout time.Duration) Gateway {
	if apiKey == "" {
		logger.L().Warn("Xendit API key is empty")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &xenditGateway{
		apiKey:  apiKey,
		baseURL: xenditBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ----------------- CreateInvoice -----------------

func (x *xenditGateway) CreateInvoice(ctx context.Context, in InvoiceRequest) (*Invoice, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "XenditGateway"),
		zap.String("method", "CreateInvoice"),
		zap.String("order_id", in.ExternalID),
		zap.String("amount", in.Amount.String()),
	)

	if x.apiKey == "" {
		return nil, ErrNotConfigured
	}

	// The invoice API takes a JSON number for amount.
	body := map[string]any{
		"external_id":          in.ExternalID,
		"amount":               json.Number(in.Amount.String()),
		"description":          in.Description,
		"success_redirect_url": in.SuccessRedirectURL,
		"failure_redirect_url": in.FailureRedirectURL,
	}
	if in.PayerEmail != "" {
		body["payer_email"] = in.PayerEmail
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to marshal invoice request", zap.Error(err))
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.baseURL+"/v2/invoices", bytes.NewReader(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return nil, err
	}

	req.SetBasicAuth(x.apiKey, "")
	req.Header.Set("Content-Type", "application/json")

	log.Info("Sending invoice request to Xendit")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		log.Error("Xendit request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return nil, fmt.Errorf("failed to read xendit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Error("Xendit returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", bodyBytes),
		)
		return nil, &GatewayError{Status: resp.StatusCode, Body: string(bodyBytes)}
	}

	var inv Invoice
	if err := json.Unmarshal(bodyBytes, &inv); err != nil {
		log.Error("Failed decoding Xendit response", zap.Error(err))
		return nil, fmt.Errorf("decode xendit invoice: %w", err)
	}
	if inv.InvoiceURL == "" {
		return nil, errors.New("xendit invoice has no invoice_url")
	}

	log.Info("Xendit invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("status", inv.Status),
	)
	return &inv, nil
}
