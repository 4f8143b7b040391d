// Package reconciler periodically compares the vault's on-chain contribution
// events against the ledger and flags anything the ledger never recorded.
package reconciler

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/tipx/tipx/internal/metrics"
	"github.com/tipx/tipx/pkg/config"
	"github.com/tipx/tipx/pkg/ethereum"
)

// Store is the ledger lookup the reconciler needs.
//
//go:generate mockery --name Store --output ./mocks --outpkg mocks
type Store interface {
	HasContribution(ctx context.Context, txHash string) (bool, error)
}

// Chain reads the settlement chain.
//
//go:generate mockery --name Chain --output ./mocks --outpkg mocks
type Chain interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterContributions(ctx context.Context, fromBlock, toBlock uint64) ([]ethereum.ContributionEvent, error)
}

// Reconciler runs the comparison on a fixed schedule.
type Reconciler struct {
	store     Store
	chain     Chain
	config    *config.ReconciliationConfig
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

// New creates a new Reconciler; call Start to begin scheduling.
func New(store Store, chain Chain, cfg *config.ReconciliationConfig, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		chain:  chain,
		config: cfg,
		logger: logger,
	}
}

// Start schedules periodic reconciliation runs until Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.config.Interval),
		gocron.NewTask(func() {
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Warn("Reconciliation run failed", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation job: %w", err)
	}

	scheduler.Start()
	r.scheduler = scheduler
	r.logger.Info("Reconciler started",
		zap.Duration("interval", r.config.Interval),
		zap.Int64("lookback_blocks", r.config.LookbackBlocks))
	return nil
}

// Stop shuts the scheduler down.
func (r *Reconciler) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}

// RunOnce scans the lookback window for vault contributions the ledger does
// not know about.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	latest, err := r.chain.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest block: %w", err)
	}

	lookback := uint64(r.config.LookbackBlocks)
	from := uint64(0)
	if latest > lookback {
		from = latest - lookback
	}

	events, err := r.chain.FilterContributions(ctx, from, latest)
	if err != nil {
		return fmt.Errorf("failed to filter contributions: %w", err)
	}

	missing := 0
	for _, event := range events {
		known, err := r.store.HasContribution(ctx, event.TxHash.Hex())
		if err != nil {
			return fmt.Errorf("failed to look up contribution %s: %w", event.TxHash.Hex(), err)
		}
		if known {
			continue
		}

		missing++
		metrics.MissingContributions.Inc()
		r.logger.Warn("On-chain contribution missing from ledger",
			zap.String("tx_hash", event.TxHash.Hex()),
			zap.String("patron", event.Patron.Hex()),
			zap.String("creator", event.Creator.Hex()),
			zap.String("amount", event.Amount.String()),
			zap.Uint64("block", event.BlockNumber))
	}

	r.logger.Debug("Reconciliation run complete",
		zap.Uint64("from_block", from),
		zap.Uint64("to_block", latest),
		zap.Int("events", len(events)),
		zap.Int("missing", missing))
	return nil
}
