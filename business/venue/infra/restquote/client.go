// Package restquote implements the venue client port against an HTTP
// quote-and-order API, for venues that expose a REST gateway instead
// of on-chain contracts.
package restquote

import (
	"context"
	"math/big"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	"github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/asset"
	"github.com/fd1az/arb-pipeline/internal/httpclient"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

const orderPollInterval = 500 * time.Millisecond

// Order statuses reported by the venue API.
const (
	orderStatusPending  = "pending"
	orderStatusFilled   = "filled"
	orderStatusRejected = "rejected"
)

type quoteResponse struct {
	AmountOut   string `json:"amount_out"`
	GasEstimate uint64 `json:"gas_estimate"`
}

type orderRequest struct {
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	AmountIn string `json:"amount_in"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
}

type orderStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	GasUsed uint64 `json:"gas_used"`
}

// Options configures a Client.
type Options struct {
	VenueID string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  logger.LoggerInterface
}

var _ venueapp.VenueClient = (*Client)(nil)

// Client quotes and executes trades through a venue's REST API.
type Client struct {
	venueID string
	http    *httpclient.Client
	log     logger.LoggerInterface
	tracer  apm.Tracer
}

// New creates a REST venue client.
func New(opts Options) (*Client, error) {
	if opts.VenueID == "" {
		return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext("VenueID"))
	}
	if opts.BaseURL == "" {
		return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext("BaseURL"))
	}

	headers := map[string]string{}
	if opts.APIKey != "" {
		headers["Authorization"] = "Bearer " + opts.APIKey
	}

	hc, err := httpclient.New(httpclient.Options{
		BaseURL:      opts.BaseURL,
		ProviderName: opts.VenueID,
		Timeout:      opts.Timeout,
		Headers:      headers,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		venueID: opts.VenueID,
		http:    hc,
		log:     opts.Logger,
		tracer:  apm.NewTracer("venue.restquote"),
	}, nil
}

// VenueID implements venueapp.VenueClient.
func (c *Client) VenueID() string {
	return c.venueID
}

// Quote implements venueapp.VenueClient.
func (c *Client) Quote(ctx context.Context, params domain.TradeParams) (*domain.Quote, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "restquote.Quote")
	defer span.End()

	span.SetAttributes(
		attribute.String("venue", c.venueID),
		attribute.String("pair", params.Pair()),
	)

	query := url.Values{}
	query.Set("token_in", params.TokenIn.Symbol())
	query.Set("token_out", params.TokenOut.Symbol())
	query.Set("amount_in", params.AmountIn.Raw().String())

	var resp quoteResponse
	if err := c.http.GetJSON(ctx, "/quote", query, &resp); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeVenueConnectionFailed, c.venueID)
	}

	raw, ok := new(big.Int).SetString(resp.AmountOut, 10)
	if !ok || raw.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext("unparseable amount_out: "+resp.AmountOut))
	}

	amountOut := asset.NewAmount(params.TokenOut, raw)
	return domain.NewQuote(c.venueID, params.AmountIn, amountOut, resp.GasEstimate)
}

// Submit implements venueapp.VenueClient.
func (c *Client) Submit(ctx context.Context, params domain.TradeParams) (domain.ExecutionHandle, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "restquote.Submit")
	defer span.End()

	req := orderRequest{
		TokenIn:  params.TokenIn.Symbol(),
		TokenOut: params.TokenOut.Symbol(),
		AmountIn: params.AmountIn.Raw().String(),
	}

	var resp orderResponse
	if err := c.http.PostJSON(ctx, "/orders", req, &resp); err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, c.venueID)
	}
	if resp.OrderID == "" {
		return "", apperror.New(apperror.CodeSubmissionFailed,
			apperror.WithContext("venue returned no order id"))
	}

	c.log.Info(ctx, "order placed", "venue", c.venueID, "order_id", resp.OrderID)
	return domain.ExecutionHandle(resp.OrderID), nil
}

// WaitForOutcome implements venueapp.VenueClient by polling the order
// status endpoint until the order settles or timeout elapses.
func (c *Client) WaitForOutcome(ctx context.Context, handle domain.ExecutionHandle, timeout time.Duration) (*domain.Receipt, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "restquote.WaitForOutcome")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(orderPollInterval)
	defer ticker.Stop()

	for {
		var resp orderStatusResponse
		err := c.http.GetJSON(ctx, "/orders/"+string(handle), nil, &resp)
		switch {
		case ctx.Err() != nil:
			return nil, apperror.New(apperror.CodeExecutionTimeout, apperror.WithContext(string(handle)))
		case err != nil:
			return nil, apperror.Wrap(err, apperror.CodeVenueConnectionFailed, c.venueID)
		}

		switch resp.Status {
		case orderStatusFilled:
			return &domain.Receipt{
				Handle:  handle,
				Status:  domain.ReceiptStatusSuccess,
				GasUsed: resp.GasUsed,
			}, nil
		case orderStatusRejected:
			return &domain.Receipt{
				Handle: handle,
				Status: domain.ReceiptStatusReverted,
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeExecutionTimeout, apperror.WithContext(string(handle)))
		case <-ticker.C:
		}
	}
}
