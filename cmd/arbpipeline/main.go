// Command arbpipeline runs the cross-venue arbitrage pipeline: it
// aggregates quotes from the configured venues, evaluates the spread,
// and either reports opportunities (watch mode) or executes one
// attempt end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	arbapp "github.com/fd1az/arb-pipeline/business/arbitrage/app"
	arbdomain "github.com/fd1az/arb-pipeline/business/arbitrage/domain"
	arbinfra "github.com/fd1az/arb-pipeline/business/arbitrage/infra"
	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	venuedomain "github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/business/venue/infra/evm"
	"github.com/fd1az/arb-pipeline/business/venue/infra/restquote"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/asset"
	"github.com/fd1az/arb-pipeline/internal/config"
	"github.com/fd1az/arb-pipeline/internal/health"
	"github.com/fd1az/arb-pipeline/internal/logger"
	"github.com/fd1az/arb-pipeline/internal/metrics"
)

var version = "dev"

const healthPort = 8081

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file")
	watch := flag.Bool("watch", false, "scan continuously instead of executing once")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return nil
	}

	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		if os.Getenv("OTEL_SERVICE_NAME") == "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}

		traceProvider := apm.NewTraceProvider(log, apm.WithProvider(apm.OTLPProvider, log))
		defer func() { _ = traceProvider.Stop() }()

		metricProvider := metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
		)
		defer func() { _ = metricProvider.Shutdown(context.Background()) }()

		go func() {
			if err := metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort))); err != nil {
				log.Error(ctx, "metrics server stopped", "error", err.Error())
			}
		}()
	}

	venues, err := buildVenues(ctx, cfg, log)
	if err != nil {
		return err
	}

	healthSrv := health.NewServer(healthPort, version)
	healthSrv.RegisterCheck("venues", func(ctx context.Context) (bool, string) {
		return len(venues) > 0, fmt.Sprintf("%d venues configured", len(venues))
	})
	if err := healthSrv.Start(); err != nil {
		return err
	}
	defer func() { _ = healthSrv.Stop(context.Background()) }()

	aggregator, err := venueapp.NewAggregator(venues, log)
	if err != nil {
		return err
	}
	monitor, err := arbapp.NewTransactionMonitor(arbinfra.NewLogAuditSink(log), log)
	if err != nil {
		return err
	}
	orch, err := arbapp.NewOrchestrator(aggregator, arbapp.NewEvaluator(), arbapp.NewRiskGuard(log), monitor, log)
	if err != nil {
		return err
	}

	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}

	log.Info(ctx, "pipeline starting",
		"version", version,
		"pair", req.Params.Pair(),
		"venues", len(venues),
		"watch", *watch)

	if *watch {
		return runWatch(ctx, orch, req, cfg, log)
	}
	return runOnce(ctx, orch, req, log)
}

func runWatch(ctx context.Context, orch *arbapp.Orchestrator, req arbapp.TradeRequest, cfg *config.Config, log logger.LoggerInterface) error {
	cancel, err := orch.Watch(ctx, req, cfg.Pipeline.PollInterval, func(opp *arbdomain.Opportunity) {
		log.Info(ctx, "opportunity found",
			"buy_venue", opp.Strategy.BuyVenue,
			"sell_venue", opp.Strategy.SellVenue,
			"profit_bps", opp.ProfitBasisPoints.StringFixed(2),
			"net_profit", opp.NetProfit.String())
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	cancel()
	log.Info(context.WithoutCancel(ctx), "watch session ended")
	return nil
}

func runOnce(ctx context.Context, orch *arbapp.Orchestrator, req arbapp.TradeRequest, log logger.LoggerInterface) error {
	result, err := orch.Attempt(ctx, req, func(event arbdomain.MonitorEvent) {
		log.Info(ctx, "execution update",
			"status", string(event.Status),
			"execution_id", string(event.ExecutionID))
	})
	if err != nil {
		return err
	}

	if !result.Success {
		reason := result.AbortReason
		if reason == "" && result.MonitorOutcome != nil {
			reason = result.MonitorOutcome.Message
		}
		log.Warn(ctx, "attempt did not succeed", "reason", reason)
		return nil
	}

	log.Info(ctx, "attempt succeeded",
		"profit_bps", result.Opportunity.ProfitBasisPoints.StringFixed(2),
		"net_profit", result.Opportunity.NetProfit.String())
	return nil
}

func buildVenues(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) ([]venueapp.VenueClient, error) {
	var venues []venueapp.VenueClient

	if len(cfg.Venues.EVM) > 0 {
		eth, err := ethclient.DialContext(ctx, cfg.Ethereum.HTTPURL)
		if err != nil {
			return nil, fmt.Errorf("dial ethereum node: %w", err)
		}

		chainID := new(big.Int).SetUint64(cfg.Ethereum.ChainID)
		sender, signTx, err := loadSigner(chainID)
		if err != nil {
			return nil, err
		}

		for _, vc := range cfg.Venues.EVM {
			client, err := evm.New(evm.Options{
				VenueID:        vc.Name,
				Backend:        eth,
				QuoterAddress:  vc.QuoterAddressHex(),
				RouterAddress:  vc.RouterAddressHex(),
				FeeTier:        int64(vc.FeeTier),
				ChainID:        chainID,
				Sender:         sender,
				SignTx:         signTx,
				RequestsPerSec: vc.RequestsPerSec,
				Logger:         log,
			})
			if err != nil {
				return nil, err
			}
			venues = append(venues, client)
		}
	}

	for _, vc := range cfg.Venues.REST {
		client, err := restquote.New(restquote.Options{
			VenueID: vc.Name,
			BaseURL: vc.BaseURL,
			APIKey:  vc.APIKey,
			Timeout: vc.Timeout,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		venues = append(venues, client)
	}

	return venues, nil
}

// loadSigner reads the hot key from the environment. Without one the
// pipeline still quotes and analyzes; only submission is disabled.
func loadSigner(chainID *big.Int) (sender common.Address, signTx evm.SignTxFunc, err error) {
	keyHex := os.Getenv("ARB_PRIVATE_KEY")
	if keyHex == "" {
		return common.Address{}, nil, nil
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("parse ARB_PRIVATE_KEY: %w", err)
	}

	signer := types.LatestSignerForChainID(chainID)
	signTx = func(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
		return types.SignTx(tx, signer, key)
	}
	return crypto.PubkeyToAddress(key.PublicKey), signTx, nil
}

func buildRequest(cfg *config.Config) (arbapp.TradeRequest, error) {
	registry := asset.DefaultRegistry()

	tokenIn, ok := registry.GetBySymbolAndChain(cfg.Pipeline.TokenIn, cfg.Ethereum.ChainID)
	if !ok {
		return arbapp.TradeRequest{}, fmt.Errorf("unknown token_in %q on chain %d", cfg.Pipeline.TokenIn, cfg.Ethereum.ChainID)
	}
	tokenOut, ok := registry.GetBySymbolAndChain(cfg.Pipeline.TokenOut, cfg.Ethereum.ChainID)
	if !ok {
		return arbapp.TradeRequest{}, fmt.Errorf("unknown token_out %q on chain %d", cfg.Pipeline.TokenOut, cfg.Ethereum.ChainID)
	}

	raw, ok := new(big.Int).SetString(cfg.Pipeline.AmountIn, 10)
	if !ok || raw.Sign() <= 0 {
		return arbapp.TradeRequest{}, fmt.Errorf("invalid pipeline.amount_in %q", cfg.Pipeline.AmountIn)
	}

	params, err := venuedomain.NewTradeParams(tokenIn, tokenOut, asset.NewAmount(tokenIn, raw))
	if err != nil {
		return arbapp.TradeRequest{}, err
	}

	return arbapp.TradeRequest{
		Params:         params,
		MinProfitBps:   cfg.Pipeline.MinProfitBpsDecimal(),
		MaxSlippagePct: cfg.Pipeline.MaxSlippagePctDecimal(),
		Costs:          arbdomain.NewCostModel(cfg.Pipeline.GasPriceOutUnitDecimal()),
		OutcomeTimeout: cfg.Pipeline.OutcomeTimeout,
	}, nil
}
