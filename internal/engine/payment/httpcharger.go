// internal/engine/payment/httpcharger.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonhttp "application-engine/internal/common/http"
	"application-engine/internal/models"
)

// HTTPCharger talks to the payment collaborator's HTTP API.
type HTTPCharger struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewHTTPCharger(baseURL, apiKey string, timeout time.Duration) *HTTPCharger {
	return &HTTPCharger{
		client:  commonhttp.NewClient(timeout),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type createChargeRequest struct {
	OrgID     string            `json:"orgId"`
	LineItems []models.LineItem `json:"lineItems"`
}

type chargeResponse struct {
	ID     string `json:"id"`
	OrgID  string `json:"orgId"`
	Status string `json:"status"`
}

func (c *HTTPCharger) CreateCharge(ctx context.Context, orgID string, items []models.LineItem) (models.ChargeRef, error) {
	body, err := json.Marshal(createChargeRequest{OrgID: orgID, LineItems: items})
	if err != nil {
		return models.ChargeRef{}, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return models.ChargeRef{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.client.DoWithContext(ctx, req)
	if err != nil {
		return models.ChargeRef{}, fmt.Errorf("charge creation request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated && res.StatusCode != http.StatusOK {
		return models.ChargeRef{}, fmt.Errorf("charge creation returned status %d", res.StatusCode)
	}

	var out chargeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return models.ChargeRef{}, fmt.Errorf("failed to decode charge response: %w", err)
	}
	return models.ChargeRef{ID: out.ID, OrgID: out.OrgID}, nil
}

func (c *HTTPCharger) GetChargeStatus(ctx context.Context, ref models.ChargeRef) (Status, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/charges/"+ref.ID, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.client.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("charge status request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("charge status returned status %d", res.StatusCode)
	}

	var out chargeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode charge response: %w", err)
	}
	return Status(out.Status), nil
}
