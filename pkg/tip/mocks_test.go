package tip

// TODO: generate these with mockery once the interfaces settle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tipx/tipx/pkg/ledger/service"
)

// MockChainGateway is a mock implementation of ChainGateway. Its zero value
// behaves like a funded wallet already on the settlement chain.
type MockChainGateway struct {
	AddressFunc     func() string
	ActiveChainFunc func() string
	SwitchChainFunc func(ctx context.Context, chain string) error
	USDCBalanceFunc func(ctx context.Context) (decimal.Decimal, error)
	AllowanceFunc   func(ctx context.Context) (decimal.Decimal, error)
	ApproveFunc     func(ctx context.Context, amount decimal.Decimal) (string, error)
	ContributeFunc  func(ctx context.Context, creator string, amount decimal.Decimal) (*TxOutcome, error)

	Active          string
	SwitchedTo      []string
	ApprovedAmounts []decimal.Decimal
	Contributions   int
}

func (m *MockChainGateway) Address() string {
	if m.AddressFunc != nil {
		return m.AddressFunc()
	}
	return "0xWallet"
}

func (m *MockChainGateway) ActiveChain() string {
	if m.ActiveChainFunc != nil {
		return m.ActiveChainFunc()
	}
	return m.Active
}

func (m *MockChainGateway) SwitchChain(ctx context.Context, chain string) error {
	m.SwitchedTo = append(m.SwitchedTo, chain)
	if m.SwitchChainFunc != nil {
		return m.SwitchChainFunc(ctx, chain)
	}
	m.Active = chain
	return nil
}

func (m *MockChainGateway) USDCBalance(ctx context.Context) (decimal.Decimal, error) {
	if m.USDCBalanceFunc != nil {
		return m.USDCBalanceFunc(ctx)
	}
	return decimal.NewFromInt(1000), nil
}

func (m *MockChainGateway) Allowance(ctx context.Context) (decimal.Decimal, error) {
	if m.AllowanceFunc != nil {
		return m.AllowanceFunc(ctx)
	}
	return decimal.Zero, nil
}

func (m *MockChainGateway) Approve(ctx context.Context, amount decimal.Decimal) (string, error) {
	m.ApprovedAmounts = append(m.ApprovedAmounts, amount)
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, amount)
	}
	return "0xapprove", nil
}

func (m *MockChainGateway) Contribute(ctx context.Context, creator string, amount decimal.Decimal) (*TxOutcome, error) {
	m.Contributions++
	if m.ContributeFunc != nil {
		return m.ContributeFunc(ctx, creator, amount)
	}
	return &TxOutcome{Hash: "0xcontribute"}, nil
}

// MockBridgeGateway is a mock implementation of BridgeGateway
type MockBridgeGateway struct {
	BurnFunc   func(ctx context.Context, source string, amount decimal.Decimal) (*BridgeBurn, error)
	AttestFunc func(ctx context.Context, burn *BridgeBurn) (*BridgeResult, error)

	Burns   int
	Attests int
}

func (m *MockBridgeGateway) Burn(ctx context.Context, source string, amount decimal.Decimal) (*BridgeBurn, error) {
	m.Burns++
	if m.BurnFunc != nil {
		return m.BurnFunc(ctx, source, amount)
	}
	return &BridgeBurn{TxHash: "0xburn", Message: []byte{0x01}}, nil
}

func (m *MockBridgeGateway) Attest(ctx context.Context, burn *BridgeBurn) (*BridgeResult, error) {
	m.Attests++
	if m.AttestFunc != nil {
		return m.AttestFunc(ctx, burn)
	}
	return &BridgeResult{Outcome: BridgeSuccess, MintTxHash: "0xmint"}, nil
}

// MockRecorder is a mock implementation of Recorder
type MockRecorder struct {
	RecordFunc func(ctx context.Context, req service.RecordRequest) (*service.RecordResult, error)

	Requests []service.RecordRequest
}

func (m *MockRecorder) Record(ctx context.Context, req service.RecordRequest) (*service.RecordResult, error) {
	m.Requests = append(m.Requests, req)
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, req)
	}
	return &service.RecordResult{Success: true, ContributionCount: 1}, nil
}
