// Package ledgerstore is the PostgreSQL persistence layer for the
// contribution ledger.
package ledgerstore

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/tipx/tipx/pkg/ledger"
	"github.com/tipx/tipx/pkg/ledger/service"
)

const recentLimit = 20

type pgStore struct {
	db bun.IDB
}

// NewStore creates a new postgres implementation of the ledger store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

// pairLockKey derives the advisory lock key for a case-insensitive
// (patron, creator) pair.
func pairLockKey(patron, creator string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(ledger.PairKey(patron, creator)))
	return int64(h.Sum64())
}

// WithPairLock runs fn inside one transaction holding a pg advisory xact
// lock on the pair, so concurrent records for the same pair serialize while
// distinct pairs proceed. The lock releases with the transaction.
func (s *pgStore) WithPairLock(
	ctx context.Context,
	patron, creator string,
	fn func(ctx context.Context, tx service.Store) error,
) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", pairLockKey(patron, creator)); err != nil {
			return fmt.Errorf("failed to acquire pair lock: %w", err)
		}
		return fn(ctx, &pgStore{db: tx})
	})
}

func (s *pgStore) InsertContribution(ctx context.Context, c *ledger.Contribution) error {
	dao := toContributionDao(c)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert contribution: %w", err)
	}

	c.ID = dao.ID
	return nil
}

func (s *pgStore) CountContributions(ctx context.Context, patron, creator string) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*ContributionDao)(nil)).
		Where("lower(patron_address) = lower(?)", patron).
		Where("lower(creator_address) = lower(?)", creator).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count contributions: %w", err)
	}
	return int64(count), nil
}

// RecentAmounts returns the amounts of the limit most recently inserted
// contributions for the pair, newest first. Insertion order (id), not
// timestamp, defines recency.
func (s *pgStore) RecentAmounts(ctx context.Context, patron, creator string, limit int) ([]decimal.Decimal, error) {
	var amounts []decimal.Decimal
	err := s.db.NewSelect().
		Model((*ContributionDao)(nil)).
		Column("amount").
		Where("lower(patron_address) = lower(?)", patron).
		Where("lower(creator_address) = lower(?)", creator).
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx, &amounts)
	if err != nil {
		return nil, fmt.Errorf("failed to select recent amounts: %w", err)
	}
	return amounts, nil
}

func (s *pgStore) InsertPayout(ctx context.Context, p *ledger.LoyaltyPayout) error {
	dao := toPayoutDao(p)

	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}

	p.ID = dao.ID
	return nil
}

func (s *pgStore) TotalCashback(ctx context.Context, patron string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.NewSelect().
		Model((*LoyaltyPayoutDao)(nil)).
		ColumnExpr("COALESCE(SUM(patron_cashback), 0)").
		Where("lower(patron_address) = lower(?)", patron).
		Scan(ctx, &total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum cashback: %w", err)
	}
	return total, nil
}

func (s *pgStore) PatronDashboard(ctx context.Context, patron string) (*ledger.PatronDashboard, error) {
	var rollups []ledger.CreatorRollup
	err := s.db.NewSelect().
		Model((*ContributionDao)(nil)).
		ColumnExpr("c.creator_address AS creator").
		ColumnExpr(`COALESCE((SELECT c2.creator_name FROM contributions c2
			WHERE lower(c2.creator_address) = lower(c.creator_address)
			AND c2.creator_name IS NOT NULL
			ORDER BY c2.id DESC LIMIT 1), '') AS creator_name`).
		ColumnExpr("SUM(c.amount) AS total_amount").
		ColumnExpr("COUNT(*) AS contribution_count").
		ColumnExpr("MAX(c.timestamp) AS last_contribution").
		Where("lower(c.patron_address) = lower(?)", patron).
		GroupExpr("c.creator_address").
		OrderExpr("last_contribution DESC").
		Scan(ctx, &rollups)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator rollups: %w", err)
	}

	var payoutDaos []LoyaltyPayoutDao
	err = s.db.NewSelect().
		Model(&payoutDaos).
		Where("lower(patron_address) = lower(?)", patron).
		OrderExpr("timestamp DESC").
		Limit(recentLimit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent payouts: %w", err)
	}

	var contributionDaos []ContributionDao
	err = s.db.NewSelect().
		Model(&contributionDaos).
		Where("lower(patron_address) = lower(?)", patron).
		OrderExpr("timestamp DESC").
		Limit(recentLimit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent contributions: %w", err)
	}

	totalCashback, err := s.TotalCashback(ctx, patron)
	if err != nil {
		return nil, err
	}

	var totalContributed decimal.Decimal
	err = s.db.NewSelect().
		Model((*ContributionDao)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("lower(patron_address) = lower(?)", patron).
		Scan(ctx, &totalContributed)
	if err != nil {
		return nil, fmt.Errorf("failed to sum contributions: %w", err)
	}

	dashboard := &ledger.PatronDashboard{
		Creators:            rollups,
		RecentPayouts:       make([]ledger.LoyaltyPayout, len(payoutDaos)),
		RecentContributions: make([]ledger.Contribution, len(contributionDaos)),
		TotalCashback:       totalCashback,
		TotalContributed:    totalContributed,
	}
	for i := range payoutDaos {
		dashboard.RecentPayouts[i] = *toPayout(&payoutDaos[i])
	}
	for i := range contributionDaos {
		dashboard.RecentContributions[i] = *toContribution(&contributionDaos[i])
	}

	return dashboard, nil
}

func (s *pgStore) CreatorStats(ctx context.Context, creator string) (*ledger.CreatorStats, error) {
	var contributionDaos []ContributionDao
	err := s.db.NewSelect().
		Model(&contributionDaos).
		Where("lower(creator_address) = lower(?)", creator).
		OrderExpr("timestamp DESC").
		Limit(recentLimit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent contributions: %w", err)
	}

	stats := new(ledger.CreatorStats)
	err = s.db.NewSelect().
		Model((*ContributionDao)(nil)).
		ColumnExpr("COUNT(*) AS total_contributions").
		ColumnExpr("COALESCE(SUM(amount), 0) AS total_amount").
		ColumnExpr("COUNT(DISTINCT lower(patron_address)) AS unique_patrons").
		Where("lower(creator_address) = lower(?)", creator).
		Scan(ctx, &stats.Stats)
	if err != nil {
		return nil, fmt.Errorf("failed to load creator totals: %w", err)
	}

	stats.RecentContributions = make([]ledger.Contribution, len(contributionDaos))
	for i := range contributionDaos {
		stats.RecentContributions[i] = *toContribution(&contributionDaos[i])
	}

	return stats, nil
}

// HasContribution reports whether a settled contribution with the given
// transaction hash exists in the ledger. Used by the reconciler.
func (s *pgStore) HasContribution(ctx context.Context, txHash string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*ContributionDao)(nil)).
		Where("lower(tx_hash) = lower(?)", txHash).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check contribution exists: %w", err)
	}
	return exists, nil
}
