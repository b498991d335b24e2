// Package payment wraps the external checkout-session provider. Only the
// session reference crosses this boundary; no amount or currency validation
// lives here.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/tour-booking-service/internal/config"
	"github.com/spec-kit/tour-booking-service/internal/domain"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// Session is an opaque checkout session reference returned by the provider.
type Session struct {
	ID          string  `json:"id"`
	CheckoutURL string  `json:"checkout_url"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// SessionClient creates checkout sessions for tour purchases.
type SessionClient interface {
	CreateSession(ctx context.Context, tour *domain.Tour, payer *domain.User) (*Session, error)
}

// HTTPSessionClient posts session requests to a configured provider
// endpoint. Without a provider URL it issues local development references.
type HTTPSessionClient struct {
	cfg    config.PaymentConfig
	client *http.Client
}

// NewHTTPSessionClient constructs the client.
func NewHTTPSessionClient(cfg config.PaymentConfig) *HTTPSessionClient {
	return &HTTPSessionClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionRequest struct {
	ReferenceID   string  `json:"reference_id"`
	CustomerEmail string  `json:"customer_email"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	UnitAmount    float64 `json:"unit_amount"`
	Currency      string  `json:"currency"`
}

// CreateSession requests a checkout session for one tour purchase.
func (c *HTTPSessionClient) CreateSession(ctx context.Context, tour *domain.Tour, payer *domain.User) (*Session, error) {
	if c.cfg.ProviderURL == "" {
		return &Session{
			ID:       "dev_" + uuid.NewString(),
			Amount:   tour.Price,
			Currency: c.cfg.Currency,
		}, nil
	}

	payload, err := json.Marshal(sessionRequest{
		ReferenceID:   tour.ID,
		CustomerEmail: payer.Email,
		Name:          fmt.Sprintf("%s Tour", tour.Name),
		Description:   tour.Summary,
		UnitAmount:    tour.Price,
		Currency:      c.cfg.Currency,
	})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ProviderURL, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDependencyFailure("payment provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperrors.NewDependencyFailure("payment provider",
			fmt.Errorf("provider returned status %d", resp.StatusCode))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, apperrors.NewDependencyFailure("payment provider", err)
	}
	return &session, nil
}
