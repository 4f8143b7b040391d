package tip

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tipx/tipx/pkg/ledger"
	"github.com/tipx/tipx/pkg/ledger/service"
)

const settlement = "arbitrum"

// stepRecorder captures every step transition the orchestrator reports.
type stepRecorder struct {
	mu    sync.Mutex
	steps []Step
}

func (s *stepRecorder) observe(step Step, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step)
}

func (s *stepRecorder) recorded() []Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Step(nil), s.steps...)
}

func newTestOrchestrator(gateway *MockChainGateway, bridge *MockBridgeGateway, recorder *MockRecorder) (*Orchestrator, *stepRecorder) {
	steps := &stepRecorder{}
	var bridgeGateway BridgeGateway
	if bridge != nil {
		bridgeGateway = bridge
	}
	o := NewOrchestrator(gateway, bridgeGateway, recorder, settlement, zap.NewNop(), steps.observe)
	return o, steps
}

func directRequest() TipRequest {
	return TipRequest{
		Creator: "0xCreator",
		Amount:  decimal.NewFromInt(10),
		Route:   DirectRoute(settlement),
	}
}

func assertSteps(t *testing.T, got, want []Step) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected steps %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected steps %v, got %v", want, got)
		}
	}
}

func TestRun_DirectWithApproval(t *testing.T) {
	gateway := &MockChainGateway{Active: settlement}
	recorder := &MockRecorder{}
	o, steps := newTestOrchestrator(gateway, nil, recorder)

	result, err := o.Run(context.Background(), directRequest())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.TxHash != "0xcontribute" {
		t.Errorf("expected contribution hash, got %q", result.TxHash)
	}
	assertSteps(t, steps.recorded(), []Step{StepApproving, StepContributing, StepRecording, StepDone})

	if len(gateway.ApprovedAmounts) != 1 {
		t.Fatalf("expected 1 approval, got %d", len(gateway.ApprovedAmounts))
	}
	if !gateway.ApprovedAmounts[0].Equal(ApproveCeiling) {
		t.Errorf("expected approval for %s, got %s", ApproveCeiling, gateway.ApprovedAmounts[0])
	}

	if len(recorder.Requests) != 1 {
		t.Fatalf("expected 1 record call, got %d", len(recorder.Requests))
	}
	recorded := recorder.Requests[0]
	if recorded.Patron != "0xWallet" {
		t.Errorf("expected patron to be the wallet address, got %q", recorded.Patron)
	}
	if recorded.Chain != ledger.ChainArbitrum {
		t.Errorf("expected chain %q, got %q", ledger.ChainArbitrum, recorded.Chain)
	}
	if recorded.TxHash != "0xcontribute" {
		t.Errorf("expected recorded hash 0xcontribute, got %q", recorded.TxHash)
	}

	if step, _ := o.Status(); step != StepDone {
		t.Errorf("expected done status, got %s", step)
	}
}

func TestRun_SufficientAllowanceSkipsApproval(t *testing.T) {
	gateway := &MockChainGateway{
		Active: settlement,
		AllowanceFunc: func(context.Context) (decimal.Decimal, error) {
			return decimal.NewFromInt(500), nil
		},
	}
	o, steps := newTestOrchestrator(gateway, nil, &MockRecorder{})

	if _, err := o.Run(context.Background(), directRequest()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	assertSteps(t, steps.recorded(), []Step{StepContributing, StepRecording, StepDone})
	if len(gateway.ApprovedAmounts) != 0 {
		t.Errorf("expected no approvals, got %d", len(gateway.ApprovedAmounts))
	}
}

func TestRun_BridgeRoute(t *testing.T) {
	gateway := &MockChainGateway{Active: settlement}
	bridge := &MockBridgeGateway{}
	recorder := &MockRecorder{}
	o, steps := newTestOrchestrator(gateway, bridge, recorder)

	req := TipRequest{
		Creator: "0xCreator",
		Amount:  decimal.NewFromInt(25),
		Route:   BridgeRoute("base"),
	}
	if _, err := o.Run(context.Background(), req); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	assertSteps(t, steps.recorded(), []Step{
		StepSwitching, StepBridging, StepAttesting, StepSwitching,
		StepApproving, StepContributing, StepRecording, StepDone,
	})
	if len(gateway.SwitchedTo) != 2 || gateway.SwitchedTo[0] != "base" || gateway.SwitchedTo[1] != settlement {
		t.Errorf("expected switches [base %s], got %v", settlement, gateway.SwitchedTo)
	}
	if bridge.Burns != 1 || bridge.Attests != 1 {
		t.Errorf("expected one burn and one attest, got %d and %d", bridge.Burns, bridge.Attests)
	}
	if recorder.Requests[0].Chain != ledger.ChainBridge {
		t.Errorf("expected bridged chain tag, got %q", recorder.Requests[0].Chain)
	}
}

func TestRun_BridgePendingIsTerminal(t *testing.T) {
	gateway := &MockChainGateway{Active: "base"}
	bridge := &MockBridgeGateway{
		AttestFunc: func(context.Context, *BridgeBurn) (*BridgeResult, error) {
			return &BridgeResult{Outcome: BridgePending, Detail: "attestation for 0xburn not ready after 20m0s"}, nil
		},
	}
	recorder := &MockRecorder{}
	o, _ := newTestOrchestrator(gateway, bridge, recorder)

	req := TipRequest{
		Creator: "0xCreator",
		Amount:  decimal.NewFromInt(5),
		Route:   BridgeRoute("base"),
	}
	_, err := o.Run(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for pending bridge")
	}

	var stepErr *StepFailure
	if !errors.As(err, &stepErr) || stepErr.Step != StepAttesting {
		t.Fatalf("expected failure at attesting, got %v", err)
	}
	if !strings.Contains(err.Error(), "bridge pending") {
		t.Errorf("expected pending detail in error, got %v", err)
	}
	if len(recorder.Requests) != 0 {
		t.Error("nothing should be recorded when the bridge does not complete")
	}

	step, detail := o.Status()
	if step != StepError {
		t.Errorf("expected error status, got %s", step)
	}
	if detail == "" {
		t.Error("expected failure detail in status")
	}
}

func TestRun_BridgeFailed(t *testing.T) {
	gateway := &MockChainGateway{Active: "base"}
	bridge := &MockBridgeGateway{
		AttestFunc: func(context.Context, *BridgeBurn) (*BridgeResult, error) {
			return &BridgeResult{Outcome: BridgeFailed, Detail: "mint reverted: 0xmint"}, nil
		},
	}
	o, _ := newTestOrchestrator(gateway, bridge, &MockRecorder{})

	req := TipRequest{
		Creator: "0xCreator",
		Amount:  decimal.NewFromInt(5),
		Route:   BridgeRoute("base"),
	}
	_, err := o.Run(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for failed bridge")
	}
	if !strings.Contains(err.Error(), "bridge failed") {
		t.Errorf("expected failed detail in error, got %v", err)
	}
}

func TestRun_InsufficientBalance(t *testing.T) {
	gateway := &MockChainGateway{
		Active: settlement,
		USDCBalanceFunc: func(context.Context) (decimal.Decimal, error) {
			return decimal.NewFromInt(3), nil
		},
	}
	recorder := &MockRecorder{}
	o, _ := newTestOrchestrator(gateway, nil, recorder)

	_, err := o.Run(context.Background(), directRequest())
	if err == nil {
		t.Fatal("expected error for insufficient balance")
	}
	var stepErr *StepFailure
	if !errors.As(err, &stepErr) || stepErr.Step != StepChecking {
		t.Fatalf("expected failure at the balance check, got %v", err)
	}
	if !strings.Contains(err.Error(), "insufficient USDC balance: have 3, need 10") {
		t.Errorf("unexpected error: %v", err)
	}
	if gateway.Contributions != 0 {
		t.Error("contribute should not be called without funds")
	}
	if len(recorder.Requests) != 0 {
		t.Error("nothing should be recorded")
	}
}

func TestRun_ContributionReverted(t *testing.T) {
	gateway := &MockChainGateway{
		Active: settlement,
		ContributeFunc: func(context.Context, string, decimal.Decimal) (*TxOutcome, error) {
			return &TxOutcome{Hash: "0xreverted", Reverted: true}, nil
		},
	}
	recorder := &MockRecorder{}
	o, _ := newTestOrchestrator(gateway, nil, recorder)

	_, err := o.Run(context.Background(), directRequest())
	if err == nil {
		t.Fatal("expected error for reverted contribution")
	}

	var stepErr *StepFailure
	if !errors.As(err, &stepErr) || stepErr.Step != StepContributing {
		t.Fatalf("expected failure at contributing, got %v", err)
	}
	if !strings.Contains(err.Error(), "contribution reverted: 0xreverted") {
		t.Errorf("unexpected error: %v", err)
	}
	if len(recorder.Requests) != 0 {
		t.Error("a reverted contribution must not be recorded")
	}
}

func TestRun_BridgeRouteWithoutBridgeGateway(t *testing.T) {
	gateway := &MockChainGateway{Active: settlement}
	o, _ := newTestOrchestrator(gateway, nil, &MockRecorder{})

	req := TipRequest{
		Creator: "0xCreator",
		Amount:  decimal.NewFromInt(5),
		Route:   BridgeRoute("base"),
	}
	_, err := o.Run(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "no bridge gateway configured") {
		t.Fatalf("expected bridge gateway error, got %v", err)
	}
}

func TestRetry_ReusesInputs(t *testing.T) {
	calls := 0
	gateway := &MockChainGateway{
		Active: settlement,
		ContributeFunc: func(_ context.Context, creator string, amount decimal.Decimal) (*TxOutcome, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("rpc timeout")
			}
			if creator != "0xCreator" || !amount.Equal(decimal.NewFromInt(10)) {
				t.Errorf("retry changed inputs: %s %s", creator, amount)
			}
			return &TxOutcome{Hash: "0xsecond"}, nil
		},
	}
	o, _ := newTestOrchestrator(gateway, nil, &MockRecorder{})

	if _, err := o.Run(context.Background(), directRequest()); err == nil {
		t.Fatal("expected first run to fail")
	}
	if step, detail := o.Status(); step != StepError || detail == "" {
		t.Fatalf("expected error status with detail, got %s %q", step, detail)
	}

	result, err := o.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry() failed: %v", err)
	}
	if result.TxHash != "0xsecond" {
		t.Errorf("expected retried hash 0xsecond, got %q", result.TxHash)
	}
	if calls != 2 {
		t.Errorf("expected 2 contribute calls, got %d", calls)
	}
}

func TestRetry_NothingToRetry(t *testing.T) {
	o, _ := newTestOrchestrator(&MockChainGateway{Active: settlement}, nil, &MockRecorder{})

	if _, err := o.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry, got %v", err)
	}
}

func TestRetry_AfterSuccessRejected(t *testing.T) {
	o, _ := newTestOrchestrator(&MockChainGateway{Active: settlement}, nil, &MockRecorder{})

	if _, err := o.Run(context.Background(), directRequest()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if _, err := o.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry after success, got %v", err)
	}
}

func TestRun_RejectsConcurrentTip(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gateway := &MockChainGateway{
		Active: settlement,
		USDCBalanceFunc: func(context.Context) (decimal.Decimal, error) {
			close(started)
			<-release
			return decimal.NewFromInt(1000), nil
		},
	}
	o, _ := newTestOrchestrator(gateway, nil, &MockRecorder{})

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(context.Background(), directRequest())
		done <- err
	}()

	<-started
	if _, err := o.Run(context.Background(), directRequest()); !errors.Is(err, ErrTipInFlight) {
		t.Fatalf("expected ErrTipInFlight, got %v", err)
	}
	close(release)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first run did not finish")
	}
}

func TestRun_TruncatesLongErrorDetail(t *testing.T) {
	long := strings.Repeat("x", 2*maxErrorDetail)
	gateway := &MockChainGateway{
		Active: settlement,
		ContributeFunc: func(context.Context, string, decimal.Decimal) (*TxOutcome, error) {
			return nil, errors.New(long)
		},
	}
	o, _ := newTestOrchestrator(gateway, nil, &MockRecorder{})

	if _, err := o.Run(context.Background(), directRequest()); err == nil {
		t.Fatal("expected error")
	}

	_, detail := o.Status()
	if len(detail) != maxErrorDetail+len("...") {
		t.Errorf("expected detail truncated to %d chars plus ellipsis, got %d", maxErrorDetail, len(detail))
	}
	if !strings.HasSuffix(detail, "...") {
		t.Errorf("expected truncation marker, got %q", detail[len(detail)-10:])
	}
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name          string
		route         Route
		activeChain   string
		needsApproval bool
		want          []Step
	}{
		{
			name:        "direct on settlement chain no approval",
			route:       DirectRoute(settlement),
			activeChain: settlement,
			want:        []Step{StepContributing, StepRecording, StepDone},
		},
		{
			name:          "direct with approval",
			route:         DirectRoute(settlement),
			activeChain:   settlement,
			needsApproval: true,
			want:          []Step{StepApproving, StepContributing, StepRecording, StepDone},
		},
		{
			name:        "direct from wrong chain",
			route:       DirectRoute(settlement),
			activeChain: "base",
			want:        []Step{StepSwitching, StepContributing, StepRecording, StepDone},
		},
		{
			name:          "bridge from other chain with approval",
			route:         BridgeRoute("base"),
			activeChain:   settlement,
			needsApproval: true,
			want: []Step{
				StepSwitching, StepBridging, StepAttesting, StepSwitching,
				StepApproving, StepContributing, StepRecording, StepDone,
			},
		},
		{
			name:        "bridge already on source chain",
			route:       BridgeRoute("base"),
			activeChain: "base",
			want: []Step{
				StepBridging, StepAttesting, StepSwitching,
				StepContributing, StepRecording, StepDone,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transitions(tt.route, tt.activeChain, settlement, tt.needsApproval)
			assertSteps(t, got, tt.want)
		})
	}
}

func TestRoute_RecordChain(t *testing.T) {
	if got := DirectRoute(settlement).RecordChain(); got != ledger.ChainArbitrum {
		t.Errorf("expected %q for direct route, got %q", ledger.ChainArbitrum, got)
	}
	if got := BridgeRoute("base").RecordChain(); got != ledger.ChainBridge {
		t.Errorf("expected %q for bridge route, got %q", ledger.ChainBridge, got)
	}
}

func TestRoute_Validate(t *testing.T) {
	if err := DirectRoute(settlement).Validate(); err != nil {
		t.Errorf("expected valid direct route, got %v", err)
	}
	if err := (Route{Kind: "teleport", Source: "base"}).Validate(); err == nil {
		t.Error("expected error for unknown route kind")
	}
	if err := (Route{Kind: RouteDirect}).Validate(); err == nil {
		t.Error("expected error for missing source chain")
	}
}

func TestStepFailure_FormatAndUnwrap(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := &StepFailure{Step: StepBridging, Err: cause}

	if err.Error() != "bridging: rpc timeout" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to unwrap")
	}
}

func TestRecorderIsCalledWithResult(t *testing.T) {
	want := &service.RecordResult{
		Success:           true,
		ContributionCount: 3,
		Payout:            service.Payout{Triggered: true},
	}
	recorder := &MockRecorder{
		RecordFunc: func(context.Context, service.RecordRequest) (*service.RecordResult, error) {
			return want, nil
		},
	}
	o, _ := newTestOrchestrator(&MockChainGateway{Active: settlement}, nil, recorder)

	result, err := o.Run(context.Background(), directRequest())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Record != want {
		t.Error("expected ledger result passed through")
	}
}
