package reconciler

// TODO: generate these with mockery once the interfaces settle

import (
	"context"

	"github.com/tipx/tipx/pkg/ethereum"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	HasContributionFunc func(ctx context.Context, txHash string) (bool, error)

	Lookups []string
}

func (m *MockStore) HasContribution(ctx context.Context, txHash string) (bool, error) {
	m.Lookups = append(m.Lookups, txHash)
	if m.HasContributionFunc != nil {
		return m.HasContributionFunc(ctx, txHash)
	}
	return true, nil
}

// MockChain is a mock implementation of Chain
type MockChain struct {
	LatestBlockFunc         func(ctx context.Context) (uint64, error)
	FilterContributionsFunc func(ctx context.Context, fromBlock, toBlock uint64) ([]ethereum.ContributionEvent, error)
}

func (m *MockChain) LatestBlock(ctx context.Context) (uint64, error) {
	if m.LatestBlockFunc != nil {
		return m.LatestBlockFunc(ctx)
	}
	return 0, nil
}

func (m *MockChain) FilterContributions(ctx context.Context, fromBlock, toBlock uint64) ([]ethereum.ContributionEvent, error) {
	if m.FilterContributionsFunc != nil {
		return m.FilterContributionsFunc(ctx, fromBlock, toBlock)
	}
	return nil, nil
}
