package app

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

// Aggregator fans a quote request out to every configured venue
// concurrently and collects the answers.
type Aggregator struct {
	venues []VenueClient
	log    logger.LoggerInterface
	tracer apm.Tracer

	quoteRequests metric.Int64Counter
	quoteFailures metric.Int64Counter
	quoteLatency  metric.Float64Histogram
}

// NewAggregator creates an aggregator over the given venues. Venue
// order is preserved in results.
func NewAggregator(venues []VenueClient, log logger.LoggerInterface) (*Aggregator, error) {
	a := &Aggregator{
		venues: venues,
		log:    log,
		tracer: apm.NewTracer("venue.aggregator"),
	}
	if err := a.initMetrics(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Aggregator) initMetrics() error {
	meter := otel.Meter("venue.aggregator")

	var err error
	a.quoteRequests, err = meter.Int64Counter(
		"venue_quote_requests_total",
		metric.WithDescription("Quote requests sent to venues"),
	)
	if err != nil {
		return err
	}

	a.quoteFailures, err = meter.Int64Counter(
		"venue_quote_failures_total",
		metric.WithDescription("Quote requests that failed and were dropped"),
	)
	if err != nil {
		return err
	}

	a.quoteLatency, err = meter.Float64Histogram(
		"venue_quote_duration_seconds",
		metric.WithDescription("Per-venue quote latency"),
		metric.WithUnit("s"),
	)
	return err
}

// Venues returns the clients the aggregator fans out to, in order.
func (a *Aggregator) Venues() []VenueClient {
	return a.venues
}

// GetQuotes requests a quote from every venue concurrently and returns
// the successful ones, ordered as the venues were configured. Venue
// failures are logged and dropped; only invalid params produce an
// error. An empty result is valid and means no venue answered.
func (a *Aggregator) GetQuotes(ctx context.Context, params domain.TradeParams) ([]*domain.Quote, error) {
	ctx, span := a.tracer.StartSpanFromContext(ctx, "Aggregator.GetQuotes")
	defer span.End()

	if err := params.Validate(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("pair", params.Pair()),
		attribute.Int("venues", len(a.venues)),
	)

	// One slot per venue keeps the fan-in order-preserving without
	// coordination beyond the WaitGroup.
	slots := make([]*domain.Quote, len(a.venues))

	var wg sync.WaitGroup
	for i, venue := range a.venues {
		wg.Add(1)
		go func(i int, venue VenueClient) {
			defer wg.Done()
			slots[i] = a.quoteOne(ctx, venue, params)
		}(i, venue)
	}
	wg.Wait()

	quotes := make([]*domain.Quote, 0, len(slots))
	for _, q := range slots {
		if q != nil {
			quotes = append(quotes, q)
		}
	}

	a.log.Debug(ctx, "quote fan-out complete",
		"pair", params.Pair(),
		"requested", len(a.venues),
		"received", len(quotes))

	return quotes, nil
}

func (a *Aggregator) quoteOne(ctx context.Context, venue VenueClient, params domain.TradeParams) *domain.Quote {
	attrs := metric.WithAttributes(attribute.String("venue", venue.VenueID()))
	a.quoteRequests.Add(ctx, 1, attrs)

	start := time.Now()
	quote, err := venue.Quote(ctx, params)
	a.quoteLatency.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		a.quoteFailures.Add(ctx, 1, attrs)
		a.log.Warn(ctx, "venue quote failed, dropping venue from this round",
			"venue", venue.VenueID(),
			"pair", params.Pair(),
			"error", err.Error())
		return nil
	}
	return quote
}
