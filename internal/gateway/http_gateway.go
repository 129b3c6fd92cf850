package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"payment-orchestrator/internal/data/entity"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// HTTPGateway talks to a JSON-over-HTTP provider:
//
//	POST {base_url}/charges
//	GET  {base_url}/charges/{ref}
//	POST {base_url}/charges/{ref}/refunds
type HTTPGateway struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.Logger
}

type chargeRequest struct {
	Reference string            `json:"reference"`
	Tenant    string            `json:"tenant"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type refundRequest struct {
	Amount string `json:"amount"`
}

type providerResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HTTPGatewayFactory needs config key base_url; api_key is optional.
func HTTPGatewayFactory(client *http.Client, log *zap.Logger) Factory {
	return func(provider *entity.PaymentProvider) (Adapter, error) {
		base := strings.TrimRight(provider.Config["base_url"], "/")
		if base == "" {
			return nil, errors.New("missing base_url")
		}
		if _, err := url.ParseRequestURI(base); err != nil {
			return nil, fmt.Errorf("invalid base_url: %w", err)
		}

		return &HTTPGateway{
			name:    provider.Name,
			baseURL: base,
			apiKey:  provider.Config["api_key"],
			client:  client,
			log:     log.With(zap.String("gateway", provider.Name)),
		}, nil
	}
}

func (g *HTTPGateway) Name() string { return g.name }

func (g *HTTPGateway) Charge(ctx context.Context, intent Intent) (Outcome, error) {
	body := chargeRequest{
		Reference: intent.ExternalID,
		Tenant:    intent.TenantID,
		Amount:    intent.Amount.StringFixed(2),
		Currency:  intent.Currency,
		Metadata:  intent.Metadata,
	}

	resp, status, err := g.do(ctx, http.MethodPost, "/charges", body)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s charge %s: %w", g.name, intent.ExternalID, err)
	}
	return outcomeFrom(resp, status, StatusSucceeded), nil
}

func (g *HTTPGateway) Verify(ctx context.Context, providerRef string) (Outcome, error) {
	resp, status, err := g.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(providerRef), nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s verify %s: %w", g.name, providerRef, err)
	}
	out := outcomeFrom(resp, status, StatusSucceeded)
	if out.ProviderRef == "" {
		out.ProviderRef = providerRef
	}
	return out, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (Outcome, error) {
	path := "/charges/" + url.PathEscape(providerRef) + "/refunds"
	resp, status, err := g.do(ctx, http.MethodPost, path, refundRequest{Amount: amount.StringFixed(2)})
	if err != nil {
		return Outcome{}, fmt.Errorf("%s refund %s: %w", g.name, providerRef, err)
	}
	return outcomeFrom(resp, status, StatusSucceeded, StatusRefunded), nil
}

// do returns the decoded body for any status below 500. 5xx and transport
// failures are errors.
func (g *HTTPGateway) do(ctx context.Context, method, path string, payload any) (providerResponse, int, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return providerResponse{}, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return providerResponse{}, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return providerResponse{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return providerResponse{}, resp.StatusCode, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode < 300 {
			return providerResponse{}, resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		g.log.Debug("Undecodable decline body", zap.Int("status", resp.StatusCode), zap.Error(err))
	}

	g.log.Debug("Provider call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("provider_status", body.Status),
	)
	return body, resp.StatusCode, nil
}

func outcomeFrom(resp providerResponse, httpStatus int, okStatuses ...string) Outcome {
	status := strings.ToLower(resp.Status)
	if status == "" {
		status = StatusUnknown
	}

	out := Outcome{ProviderRef: resp.ID, Status: status, Message: resp.Message}
	if httpStatus >= 300 {
		out.Status = StatusDeclined
		if out.Message == "" {
			out.Message = fmt.Sprintf("declined with HTTP %d", httpStatus)
		}
		return out
	}

	for _, ok := range okStatuses {
		if status == ok {
			out.Success = true
			return out
		}
	}
	if out.Message == "" {
		out.Message = "provider status " + status
	}
	return out
}
