package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"

	venueapp "github.com/fd1az/arb-pipeline/business/venue/app"
	"github.com/fd1az/arb-pipeline/business/venue/domain"
	"github.com/fd1az/arb-pipeline/internal/apm"
	"github.com/fd1az/arb-pipeline/internal/apperror"
	"github.com/fd1az/arb-pipeline/internal/asset"
	"github.com/fd1az/arb-pipeline/internal/circuitbreaker"
	"github.com/fd1az/arb-pipeline/internal/logger"
	"github.com/fd1az/arb-pipeline/internal/ratelimit"
)

const receiptPollInterval = 2 * time.Second

// ethBackend is the slice of the JSON-RPC client the adapter uses.
// *ethclient.Client satisfies it.
type ethBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SignTxFunc signs a transaction for the configured sender. Key
// management stays outside the adapter.
type SignTxFunc func(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)

// Options configures a Client.
type Options struct {
	VenueID       string
	Backend       ethBackend
	QuoterAddress common.Address
	RouterAddress common.Address
	FeeTier       int64
	ChainID       *big.Int
	Sender        common.Address
	SignTx        SignTxFunc
	// RequestsPerSec caps quote traffic to the node. Zero means no limit.
	RequestsPerSec float64
	Logger         logger.LoggerInterface
}

var _ venueapp.VenueClient = (*Client)(nil)

// Client quotes and executes swaps on one on-chain venue. RPC reads go
// through a circuit breaker so a flapping node drops the venue out of
// rounds instead of slowing every round down.
type Client struct {
	venueID   string
	backend   ethBackend
	contracts *contracts
	quoter    common.Address
	router    common.Address
	feeTier   int64
	chainID   *big.Int
	sender    common.Address
	signTx    SignTxFunc
	breaker   *circuitbreaker.CircuitBreaker[[]byte]
	limiter   *ratelimit.Limiter
	log       logger.LoggerInterface
	tracer    apm.Tracer
}

// New creates an EVM venue client.
func New(opts Options) (*Client, error) {
	if opts.VenueID == "" {
		return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext("VenueID"))
	}
	if opts.Backend == nil {
		return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext("Backend"))
	}

	abis, err := newContracts()
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.Unlimited()
	if opts.RequestsPerSec > 0 {
		limiter = ratelimit.PerSecond(opts.RequestsPerSec, 1)
	}

	return &Client{
		venueID:   opts.VenueID,
		backend:   opts.Backend,
		contracts: abis,
		quoter:    opts.QuoterAddress,
		router:    opts.RouterAddress,
		feeTier:   opts.FeeTier,
		chainID:   opts.ChainID,
		sender:    opts.Sender,
		signTx:    opts.SignTx,
		breaker:   circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("evm-" + opts.VenueID)),
		limiter:   limiter,
		log:       opts.Logger,
		tracer:    apm.NewTracer("venue.evm"),
	}, nil
}

// VenueID implements venueapp.VenueClient.
func (c *Client) VenueID() string {
	return c.venueID
}

// Quote implements venueapp.VenueClient using the quoter contract's
// quoteExactInputSingle via eth_call.
func (c *Client) Quote(ctx context.Context, params domain.TradeParams) (*domain.Quote, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "evm.Quote")
	defer span.End()

	span.SetAttributes(
		attribute.String("venue", c.venueID),
		attribute.String("pair", params.Pair()),
	)

	tokenIn, tokenOut, err := c.tokenAddresses(params)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeRateLimitExceeded, c.venueID)
	}

	data, err := c.contracts.packQuote(tokenIn, tokenOut, params.AmountIn.Raw(), c.feeTier)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, "pack quote call")
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.quoter, Data: data}, nil)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeVenueRPCError, c.venueID)
	}

	result, err := c.contracts.unpackQuote(raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, c.venueID)
	}

	amountOut := asset.NewAmount(params.TokenOut, result.AmountOut)
	return domain.NewQuote(c.venueID, params.AmountIn, amountOut, result.GasEstimate)
}

// Submit implements venueapp.VenueClient: it signs and broadcasts an
// exactInputSingle swap and returns the transaction hash.
func (c *Client) Submit(ctx context.Context, params domain.TradeParams) (domain.ExecutionHandle, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "evm.Submit")
	defer span.End()

	if c.signTx == nil {
		return "", apperror.New(apperror.CodeInvalidState,
			apperror.WithContext("venue has no signer configured"))
	}

	tokenIn, tokenOut, err := c.tokenAddresses(params)
	if err != nil {
		return "", err
	}

	calldata, err := c.contracts.packSwap(tokenIn, tokenOut, c.sender, params.AmountIn.Raw(), big.NewInt(0), c.feeTier)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, "pack swap call")
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.sender)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, "fetch nonce")
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, "suggest gas price")
	}

	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: c.sender,
		To:   &c.router,
		Data: calldata,
	})
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeGasEstimationFailed, c.venueID)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.router,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := c.signTx(ctx, tx)
	if err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, "sign transaction")
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return "", apperror.Wrap(err, apperror.CodeSubmissionFailed, c.venueID)
	}

	hash := signed.Hash()
	c.log.Info(ctx, "swap broadcast",
		"venue", c.venueID,
		"tx_hash", hash.Hex(),
		"nonce", nonce,
		"gas_limit", gasLimit)

	return domain.ExecutionHandle(hash.Hex()), nil
}

// WaitForOutcome implements venueapp.VenueClient by polling for the
// transaction receipt until it lands or timeout elapses.
func (c *Client) WaitForOutcome(ctx context.Context, handle domain.ExecutionHandle, timeout time.Duration) (*domain.Receipt, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "evm.WaitForOutcome")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hash := common.HexToHash(string(handle))

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return &domain.Receipt{
				Handle:      handle,
				Status:      receipt.Status,
				GasUsed:     receipt.GasUsed,
				BlockNumber: receipt.BlockNumber.Uint64(),
			}, nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet, keep polling.
		case ctx.Err() != nil:
			return nil, apperror.New(apperror.CodeExecutionTimeout, apperror.WithContext(string(handle)))
		default:
			return nil, apperror.Wrap(err, apperror.CodeVenueRPCError, c.venueID)
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeExecutionTimeout, apperror.WithContext(string(handle)))
		case <-ticker.C:
		}
	}
}

// tokenAddresses resolves both legs to ERC-20 addresses. Native assets
// cannot be swapped through the router directly.
func (c *Client) tokenAddresses(params domain.TradeParams) (common.Address, common.Address, error) {
	tokenIn, ok := params.TokenIn.Address()
	if !ok {
		return common.Address{}, common.Address{}, apperror.New(apperror.CodeUnsupportedPair,
			apperror.WithContext(fmt.Sprintf("%s is not an ERC-20 token", params.TokenIn.Symbol())))
	}
	tokenOut, ok := params.TokenOut.Address()
	if !ok {
		return common.Address{}, common.Address{}, apperror.New(apperror.CodeUnsupportedPair,
			apperror.WithContext(fmt.Sprintf("%s is not an ERC-20 token", params.TokenOut.Symbol())))
	}
	return tokenIn, tokenOut, nil
}
