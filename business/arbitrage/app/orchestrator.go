package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/logger"
)

// TradeRequest carries the trade and the thresholds one attempt or
// watch session runs under.
type TradeRequest struct {
	Params         venuedomain.TradeParams
	MinProfitBps   decimal.Decimal
	MaxSlippagePct decimal.Decimal
	Costs          domain.CostModel
	OutcomeTimeout time.Duration
}

// Validate checks the request is executable.
func (r TradeRequest) Validate() error {
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.MinProfitBps.Sign() < 0 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("min_profit_bps must not be negative"))
	}
	if r.MaxSlippagePct.Sign() < 0 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("max_slippage_pct must not be negative"))
	}
	if r.OutcomeTimeout <= 0 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("outcome_timeout must be positive"))
	}
	return nil
}

// Orchestrator runs the pipeline end to end: aggregate quotes,
// evaluate the spread, verify risk, submit, and monitor. Each stage
// short-circuits the attempt when it rejects.
type Orchestrator struct {
	aggregator *venueapp.Aggregator
	evaluator  *Evaluator
	guard      *RiskGuard
	monitor    *TransactionMonitor
	venuesByID map[string]venueapp.VenueClient
	log        logger.LoggerInterface
	tracer     apm.Tracer

	attempts    metric.Int64Counter
	aborts      metric.Int64Counter
	watchRounds metric.Int64Counter
}

// NewOrchestrator wires the pipeline stages over the aggregator's
// venues.
func NewOrchestrator(
	aggregator *venueapp.Aggregator,
	evaluator *Evaluator,
	guard *RiskGuard,
	monitor *TransactionMonitor,
	log logger.LoggerInterface,
) (*Orchestrator, error) {
	byID := make(map[string]venueapp.VenueClient, len(aggregator.Venues()))
	for _, v := range aggregator.Venues() {
		byID[v.VenueID()] = v
	}

	o := &Orchestrator{
		aggregator: aggregator,
		evaluator:  evaluator,
		guard:      guard,
		monitor:    monitor,
		venuesByID: byID,
		log:        log,
		tracer:     apm.NewTracer("arbitrage.orchestrator"),
	}
	if err := o.initMetrics(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter("arbitrage.orchestrator")

	var err error
	o.attempts, err = meter.Int64Counter(
		"pipeline_attempts_total",
		metric.WithDescription("Execution attempts started"),
	)
	if err != nil {
		return err
	}

	o.aborts, err = meter.Int64Counter(
		"pipeline_aborts_total",
		metric.WithDescription("Attempts aborted before submission, by stage"),
	)
	if err != nil {
		return err
	}

	o.watchRounds, err = meter.Int64Counter(
		"pipeline_watch_rounds_total",
		metric.WithDescription("Scan rounds completed by watch sessions"),
	)
	return err
}

// Analyze runs the read-only half of the pipeline: one quote round and
// one evaluation. Nothing is submitted.
func (o *Orchestrator) Analyze(ctx context.Context, req TradeRequest) (*domain.Opportunity, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "Orchestrator.Analyze")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	quotes, err := o.aggregator.GetQuotes(ctx, req.Params)
	if err != nil {
		return nil, err
	}
	opp, _ := o.evaluate(quotes, req)
	return opp, nil
}

// evaluate prices the round and returns the opportunity together with
// the quote backing its buy leg, which the risk stage re-checks.
func (o *Orchestrator) evaluate(quotes []*venuedomain.Quote, req TradeRequest) (*domain.Opportunity, *venuedomain.Quote) {
	opp := o.evaluator.Evaluate(quotes, req.Params.AmountIn, req.MinProfitBps, req.Costs)
	if opp.Strategy == nil {
		return opp, nil
	}
	for _, q := range quotes {
		if q.VenueID == opp.Strategy.BuyVenue {
			return opp, q
		}
	}
	return opp, nil
}

// Attempt runs one full pipeline pass. It returns an error only for an
// invalid request; every in-pipeline rejection comes back as a result
// with AbortReason set. Stages run in order and the first rejection
// stops the attempt: nothing is submitted unless evaluation and risk
// both pass.
func (o *Orchestrator) Attempt(ctx context.Context, req TradeRequest, observer EventObserver) (*domain.ExecutionResult, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "Orchestrator.Attempt")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	o.attempts.Add(ctx, 1)
	span.SetAttributes(attribute.String("pair", req.Params.Pair()))

	quotes, err := o.aggregator.GetQuotes(ctx, req.Params)
	if err != nil {
		return nil, err
	}

	opp, buyQuote := o.evaluate(quotes, req)
	if !opp.Profitable {
		o.abort(ctx, "evaluation", opp.Reason)
		return domain.Aborted(opp, opp.Reason), nil
	}

	buyVenue, ok := o.venuesByID[opp.Strategy.BuyVenue]
	if !ok || buyQuote == nil {
		// Strategy names a venue the orchestrator cannot reach; treat
		// it like any other pre-submission rejection.
		reason := fmt.Sprintf("Venue %s is not executable", opp.Strategy.BuyVenue)
		o.abort(ctx, "routing", reason)
		return domain.Aborted(opp, reason), nil
	}

	assessment := o.guard.Verify(ctx, buyVenue, req.Params, req.MaxSlippagePct, buyQuote.EffectivePrice)
	if !assessment.IsSafe {
		o.abort(ctx, "risk", assessment.Reason)
		return domain.Aborted(opp, assessment.Reason), nil
	}

	handle, err := buyVenue.Submit(ctx, req.Params)
	if err != nil {
		reason := fmt.Sprintf("Submission to %s failed: %v", buyVenue.VenueID(), err)
		o.abort(ctx, "submission", reason)
		return domain.Aborted(opp, reason), nil
	}

	o.log.Info(ctx, "trade submitted",
		"venue", buyVenue.VenueID(),
		"execution_id", string(handle),
		"profit_bps", opp.ProfitBasisPoints.StringFixed(2))

	terminal := o.monitor.Run(ctx, buyVenue, handle, req.OutcomeTimeout, observer)

	return &domain.ExecutionResult{
		Success:        terminal.Status == domain.StatusSuccess,
		Opportunity:    opp,
		MonitorOutcome: &terminal,
	}, nil
}

func (o *Orchestrator) abort(ctx context.Context, stage, reason string) {
	o.aborts.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	o.log.Info(ctx, "attempt aborted", "stage", stage, "reason", reason)
}

// OpportunityHandler receives profitable opportunities found by a
// watch session.
type OpportunityHandler func(opp *domain.Opportunity)

// Watch scans for opportunities on a fixed interval until cancelled.
// The first scan runs immediately. Scans run one at a time on the
// session goroutine, so a slow round never overlaps the next one;
// ticks that fire mid-scan coalesce. The returned cancel is
// idempotent and blocks until the session goroutine has exited, after
// which the handler is guaranteed not to be invoked again.
func (o *Orchestrator) Watch(ctx context.Context, req TradeRequest, interval time.Duration, handler OpportunityHandler) (func(), error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("watch interval must be positive"))
	}
	if handler == nil {
		return nil, apperror.New(apperror.CodeRequiredField,
			apperror.WithContext("handler"))
	}

	sessionCtx, cancelCtx := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		o.log.Info(sessionCtx, "watch session started",
			"pair", req.Params.Pair(),
			"interval", interval.String())

		o.scanOnce(sessionCtx, req, handler)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-sessionCtx.Done():
				o.log.Info(context.WithoutCancel(sessionCtx), "watch session stopped",
					"pair", req.Params.Pair())
				return
			case <-ticker.C:
				o.scanOnce(sessionCtx, req, handler)
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(cancelCtx)
		<-done
	}
	return cancel, nil
}

func (o *Orchestrator) scanOnce(ctx context.Context, req TradeRequest, handler OpportunityHandler) {
	if ctx.Err() != nil {
		return
	}

	quotes, err := o.aggregator.GetQuotes(ctx, req.Params)
	if err != nil {
		o.log.Error(ctx, "watch scan failed", "error", err.Error())
		return
	}

	o.watchRounds.Add(ctx, 1)

	opp, _ := o.evaluate(quotes, req)

	// The session may have been cancelled while quoting. The handler
	// must never fire after cancellation.
	if ctx.Err() != nil {
		return
	}
	if opp.Profitable {
		handler(opp)
	}
}
