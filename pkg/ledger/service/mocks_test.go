package service

// TODO: generate these with mockery once the interfaces settle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tipx/tipx/pkg/ledger"
)

// MockStore is a mock implementation of Store. WithPairLock runs the
// callback against the mock itself unless overridden.
type MockStore struct {
	WithPairLockFunc        func(ctx context.Context, patron, creator string, fn func(ctx context.Context, s Store) error) error
	InsertContributionFunc  func(ctx context.Context, c *ledger.Contribution) error
	CountContributionsFunc  func(ctx context.Context, patron, creator string) (int64, error)
	RecentAmountsFunc       func(ctx context.Context, patron, creator string, limit int) ([]decimal.Decimal, error)
	InsertPayoutFunc        func(ctx context.Context, p *ledger.LoyaltyPayout) error
	TotalCashbackFunc       func(ctx context.Context, patron string) (decimal.Decimal, error)
	PatronDashboardFunc     func(ctx context.Context, patron string) (*ledger.PatronDashboard, error)
	CreatorStatsFunc        func(ctx context.Context, creator string) (*ledger.CreatorStats, error)

	InsertedContributions []*ledger.Contribution
	InsertedPayouts       []*ledger.LoyaltyPayout
}

func (m *MockStore) WithPairLock(ctx context.Context, patron, creator string, fn func(ctx context.Context, s Store) error) error {
	if m.WithPairLockFunc != nil {
		return m.WithPairLockFunc(ctx, patron, creator, fn)
	}
	return fn(ctx, m)
}

func (m *MockStore) InsertContribution(ctx context.Context, c *ledger.Contribution) error {
	if m.InsertContributionFunc != nil {
		if err := m.InsertContributionFunc(ctx, c); err != nil {
			return err
		}
	}
	m.InsertedContributions = append(m.InsertedContributions, c)
	return nil
}

func (m *MockStore) CountContributions(ctx context.Context, patron, creator string) (int64, error) {
	if m.CountContributionsFunc != nil {
		return m.CountContributionsFunc(ctx, patron, creator)
	}
	return int64(len(m.InsertedContributions)), nil
}

func (m *MockStore) RecentAmounts(ctx context.Context, patron, creator string, limit int) ([]decimal.Decimal, error) {
	if m.RecentAmountsFunc != nil {
		return m.RecentAmountsFunc(ctx, patron, creator, limit)
	}
	var amounts []decimal.Decimal
	for i := len(m.InsertedContributions) - 1; i >= 0 && len(amounts) < limit; i-- {
		amounts = append(amounts, m.InsertedContributions[i].Amount)
	}
	return amounts, nil
}

func (m *MockStore) InsertPayout(ctx context.Context, p *ledger.LoyaltyPayout) error {
	if m.InsertPayoutFunc != nil {
		if err := m.InsertPayoutFunc(ctx, p); err != nil {
			return err
		}
	}
	m.InsertedPayouts = append(m.InsertedPayouts, p)
	return nil
}

func (m *MockStore) TotalCashback(ctx context.Context, patron string) (decimal.Decimal, error) {
	if m.TotalCashbackFunc != nil {
		return m.TotalCashbackFunc(ctx, patron)
	}
	total := decimal.Zero
	for _, p := range m.InsertedPayouts {
		total = total.Add(p.PatronCashback)
	}
	return total, nil
}

func (m *MockStore) PatronDashboard(ctx context.Context, patron string) (*ledger.PatronDashboard, error) {
	if m.PatronDashboardFunc != nil {
		return m.PatronDashboardFunc(ctx, patron)
	}
	return &ledger.PatronDashboard{}, nil
}

func (m *MockStore) CreatorStats(ctx context.Context, creator string) (*ledger.CreatorStats, error) {
	if m.CreatorStatsFunc != nil {
		return m.CreatorStatsFunc(ctx, creator)
	}
	return &ledger.CreatorStats{}, nil
}

// MockDistributor is a mock implementation of Distributor
type MockDistributor struct {
	EnabledFunc           func() bool
	DistributeLoyaltyFunc func(ctx context.Context, patron, creator string, cashback, bonus decimal.Decimal) (string, error)

	Calls int
}

func (m *MockDistributor) Enabled() bool {
	if m.EnabledFunc != nil {
		return m.EnabledFunc()
	}
	return true
}

func (m *MockDistributor) DistributeLoyalty(ctx context.Context, patron, creator string, cashback, bonus decimal.Decimal) (string, error) {
	m.Calls++
	if m.DistributeLoyaltyFunc != nil {
		return m.DistributeLoyaltyFunc(ctx, patron, creator, cashback, bonus)
	}
	return "0xmock", nil
}

// MockService is a mock implementation of Service
type MockService struct {
	RecordFunc          func(ctx context.Context, req *RecordRequest) (*RecordResult, error)
	PatronDashboardFunc func(ctx context.Context, patron string) (*ledger.PatronDashboard, error)
	CreatorStatsFunc    func(ctx context.Context, creator string) (*ledger.CreatorStats, error)
}

func (m *MockService) Record(ctx context.Context, req *RecordRequest) (*RecordResult, error) {
	return m.RecordFunc(ctx, req)
}

func (m *MockService) PatronDashboard(ctx context.Context, patron string) (*ledger.PatronDashboard, error) {
	return m.PatronDashboardFunc(ctx, patron)
}

func (m *MockService) CreatorStats(ctx context.Context, creator string) (*ledger.CreatorStats, error) {
	return m.CreatorStatsFunc(ctx, creator)
}
