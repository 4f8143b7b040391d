// Package service implements the contribution recording operation and the
// loyalty engine, plus the read-side queries behind the patron and creator
// endpoints.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tipx/tipx/internal/metrics"
	apperrors "github.com/tipx/tipx/pkg/app/errors"
	"github.com/tipx/tipx/pkg/ledger"
)

// DefaultThreshold is the contribution count between loyalty events for a
// (patron, creator) pair.
const DefaultThreshold = 3

// Store is the narrow data-access interface for the ledger service.
// Defined here to keep the service decoupled from ledgerstore implementation details.
//
//go:generate mockery --name Store --output mocks --outpkg mocks --filename mock_store.go --with-expecter
type Store interface {
	// WithPairLock runs fn inside one transaction serialized per
	// case-insensitive (patron, creator) pair. Writes issued through the
	// Store passed to fn commit and roll back together.
	WithPairLock(ctx context.Context, patron, creator string, fn func(ctx context.Context, s Store) error) error

	InsertContribution(ctx context.Context, c *ledger.Contribution) error
	CountContributions(ctx context.Context, patron, creator string) (int64, error)
	RecentAmounts(ctx context.Context, patron, creator string, limit int) ([]decimal.Decimal, error)
	InsertPayout(ctx context.Context, p *ledger.LoyaltyPayout) error
	TotalCashback(ctx context.Context, patron string) (decimal.Decimal, error)

	PatronDashboard(ctx context.Context, patron string) (*ledger.PatronDashboard, error)
	CreatorStats(ctx context.Context, creator string) (*ledger.CreatorStats, error)
}

// Distributor sends loyalty payouts on the settlement chain.
//
//go:generate mockery --name Distributor --output mocks --outpkg mocks --filename mock_distributor.go --with-expecter
type Distributor interface {
	// Enabled reports whether an operator wallet is configured.
	Enabled() bool
	// DistributeLoyalty submits the payout transaction and waits for its
	// receipt, returning the transaction hash.
	DistributeLoyalty(ctx context.Context, patron, creator string, cashback, bonus decimal.Decimal) (string, error)
}

// Service defines the ledger business logic consumed by the HTTP handlers
type Service interface {
	Record(ctx context.Context, req *RecordRequest) (*RecordResult, error)
	PatronDashboard(ctx context.Context, patron string) (*ledger.PatronDashboard, error)
	CreatorStats(ctx context.Context, creator string) (*ledger.CreatorStats, error)
}

// RecordRequest is a request to append one settled contribution.
type RecordRequest struct {
	Patron      string          `json:"patron" validate:"required"`
	Creator     string          `json:"creator" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Chain       string          `json:"chain"`
	TxHash      string          `json:"txHash" validate:"required"`
	CreatorName string          `json:"creatorName"`
}

// Payout describes the loyalty outcome of one recorded contribution.
type Payout struct {
	Triggered       bool             `json:"triggered"`
	UntilNextPayout int64            `json:"untilNextPayout,omitempty"`
	CashbackAmount  *decimal.Decimal `json:"cashbackAmount,omitempty"`
	BonusAmount     *decimal.Decimal `json:"bonusAmount,omitempty"`
	QualifyingTotal *decimal.Decimal `json:"qualifyingTotal,omitempty"`
	TxHash          *string          `json:"txHash,omitempty"`
	TotalCashback   *decimal.Decimal `json:"totalCashback,omitempty"`
}

// RecordResult is the outcome of a Record call.
type RecordResult struct {
	Success           bool   `json:"success"`
	ContributionCount int64  `json:"contributionCount"`
	Payout            Payout `json:"payout"`
}

type ledgerService struct {
	store       Store
	distributor Distributor
	payoutRate  decimal.Decimal
	threshold   int64
	logger      *zap.Logger
	validate    *validator.Validate
}

// NewService creates a new ledger service. distributor may be nil when no
// operator wallet is configured; loyalty events are still persisted.
func NewService(store Store, distributor Distributor, payoutRate decimal.Decimal, threshold int, logger *zap.Logger) Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ledgerService{
		store:       store,
		distributor: distributor,
		payoutRate:  payoutRate,
		threshold:   int64(threshold),
		logger:      logger,
		validate:    validator.New(),
	}
}

// Record appends a contribution and fires the loyalty engine when the
// pair's contribution count reaches a multiple of the threshold.
//
// The insert, the count, the trigger decision and the payout row are one
// transaction, serialized per pair, so concurrent records for the same pair
// cannot observe the same pre-insert count and a loyalty event is never
// skipped or duplicated. The on-chain distribution inside the trigger is
// best effort: its failure nulls the payout hash and nothing else.
func (s *ledgerService) Record(ctx context.Context, req *RecordRequest) (*RecordResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, "missing fields")
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.BadRequestError(nil, "amount must be positive")
	}
	// USDC carries 6 decimals; finer amounts cannot settle on-chain.
	if !req.Amount.Equal(req.Amount.Truncate(6)) {
		return nil, apperrors.BadRequestError(nil, "amount exceeds 6 decimal places")
	}

	chain := req.Chain
	if chain == "" {
		chain = ledger.ChainArbitrum
	}

	start := time.Now()
	var result *RecordResult

	err := s.store.WithPairLock(ctx, req.Patron, req.Creator, func(ctx context.Context, tx Store) error {
		now := time.Now().Unix()

		contribution := &ledger.Contribution{
			Patron:      req.Patron,
			Creator:     req.Creator,
			Amount:      req.Amount,
			Chain:       chain,
			TxHash:      req.TxHash,
			Timestamp:   now,
			CreatorName: req.CreatorName,
		}
		if err := tx.InsertContribution(ctx, contribution); err != nil {
			return fmt.Errorf("failed to insert contribution: %w", err)
		}

		count, err := tx.CountContributions(ctx, req.Patron, req.Creator)
		if err != nil {
			return fmt.Errorf("failed to count contributions: %w", err)
		}

		if count == 0 || count%s.threshold != 0 {
			result = &RecordResult{
				Success:           true,
				ContributionCount: count,
				Payout: Payout{
					Triggered:       false,
					UntilNextPayout: s.threshold - count%s.threshold,
				},
			}
			return nil
		}

		payout, err := s.runLoyaltyEvent(ctx, tx, req.Patron, req.Creator, chain, now)
		if err != nil {
			return err
		}

		result = &RecordResult{
			Success:           true,
			ContributionCount: count,
			Payout:            *payout,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ContributionsRecorded.WithLabelValues(chain).Inc()
	metrics.RecordDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("Contribution recorded",
		zap.String("patron", req.Patron),
		zap.String("creator", req.Creator),
		zap.String("amount", req.Amount.String()),
		zap.String("chain", chain),
		zap.Int64("count", result.ContributionCount),
		zap.Bool("payout_triggered", result.Payout.Triggered))

	return result, nil
}

// runLoyaltyEvent computes the qualifying total from the threshold most
// recently inserted contributions, attempts the on-chain distribution, and
// persists the payout row.
func (s *ledgerService) runLoyaltyEvent(
	ctx context.Context,
	tx Store,
	patron, creator, chain string,
	now int64,
) (*Payout, error) {
	amounts, err := tx.RecentAmounts(ctx, patron, creator, int(s.threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to load qualifying contributions: %w", err)
	}

	qualifyingTotal := decimal.Zero
	for _, a := range amounts {
		qualifyingTotal = qualifyingTotal.Add(a)
	}

	cashback := qualifyingTotal.Mul(s.payoutRate)
	bonus := qualifyingTotal.Mul(s.payoutRate)

	var txHash *string
	if s.distributor != nil && s.distributor.Enabled() && ledger.SettlementEligible(chain) {
		hash, err := s.distributor.DistributeLoyalty(ctx, patron, creator, cashback, bonus)
		if err != nil {
			// The ledger write stands regardless; only the hash is lost.
			s.logger.Error("Loyalty payout tx failed",
				zap.String("patron", patron),
				zap.String("creator", creator),
				zap.Error(err))
			metrics.LoyaltyPayouts.WithLabelValues("failed").Inc()
		} else {
			txHash = &hash
			metrics.LoyaltyPayouts.WithLabelValues("distributed").Inc()
			metrics.PayoutAmount.Observe(cashback.InexactFloat64())
			s.logger.Info("Loyalty payout sent", zap.String("tx_hash", hash))
		}
	} else {
		metrics.LoyaltyPayouts.WithLabelValues("skipped").Inc()
	}

	payout := &ledger.LoyaltyPayout{
		Patron:          patron,
		Creator:         creator,
		PatronCashback:  cashback,
		CreatorBonus:    bonus,
		QualifyingTotal: qualifyingTotal,
		TxHash:          txHash,
		Chain:           chain,
		Timestamp:       now,
	}
	if err := tx.InsertPayout(ctx, payout); err != nil {
		return nil, fmt.Errorf("failed to insert payout: %w", err)
	}

	totalCashback, err := tx.TotalCashback(ctx, patron)
	if err != nil {
		return nil, fmt.Errorf("failed to total cashback: %w", err)
	}

	return &Payout{
		Triggered:       true,
		CashbackAmount:  &cashback,
		BonusAmount:     &bonus,
		QualifyingTotal: &qualifyingTotal,
		TxHash:          txHash,
		TotalCashback:   &totalCashback,
	}, nil
}

func (s *ledgerService) PatronDashboard(ctx context.Context, patron string) (*ledger.PatronDashboard, error) {
	if patron == "" {
		return nil, apperrors.BadRequestError(nil, "address is required")
	}
	dashboard, err := s.store.PatronDashboard(ctx, patron)
	if err != nil {
		return nil, fmt.Errorf("failed to load patron dashboard: %w", err)
	}
	return dashboard, nil
}

func (s *ledgerService) CreatorStats(ctx context.Context, creator string) (*ledger.CreatorStats, error) {
	if creator == "" {
		return nil, apperrors.BadRequestError(nil, "address is required")
	}
	stats, err := s.store.CreatorStats(ctx, creator)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator stats: %w", err)
	}
	return stats, nil
}
