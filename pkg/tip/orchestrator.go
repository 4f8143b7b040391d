package tip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tipx/tipx/internal/metrics"
	"github.com/tipx/tipx/pkg/ledger/service"
)

// Step is the orchestrator's externally visible state.
type Step string

const (
	StepIdle         Step = "idle"
	StepSwitching    Step = "switching"
	StepBridging     Step = "bridging"
	StepAttesting    Step = "attesting"
	// StepChecking tags pre-flight balance failures. It is a failure locus
	// only, never emitted as a transition.
	StepChecking     Step = "checking"
	StepApproving    Step = "approving"
	StepContributing Step = "contributing"
	StepRecording    Step = "recording"
	StepDone         Step = "done"
	StepError        Step = "error"
)

// ApproveCeiling is the allowance granted when the vault's current allowance
// cannot cover a tip, so subsequent tips skip the approval step.
var ApproveCeiling = decimal.NewFromInt(999999)

// BridgeOutcome classifies how a bridge transfer ended. Pending is terminal
// for the tip; the transfer may still complete on-chain later.
type BridgeOutcome string

const (
	BridgeSuccess BridgeOutcome = "success"
	BridgePending BridgeOutcome = "pending"
	BridgeFailed  BridgeOutcome = "failed"
)

// BridgeBurn identifies a burn submitted on the source chain.
type BridgeBurn struct {
	TxHash  string
	Message []byte
}

// BridgeResult is the outcome of attesting and minting a bridged transfer.
type BridgeResult struct {
	Outcome    BridgeOutcome
	Detail     string
	MintTxHash string
}

// TxOutcome is the mined result of a wallet transaction.
type TxOutcome struct {
	Hash     string
	Reverted bool
}

// ChainGateway executes wallet operations against whichever chain is active.
//
//go:generate mockery --name ChainGateway --output ./mocks --outpkg mocks
type ChainGateway interface {
	Address() string
	ActiveChain() string
	SwitchChain(ctx context.Context, chain string) error
	// USDCBalance reads the wallet's USDC balance on the active chain.
	USDCBalance(ctx context.Context) (decimal.Decimal, error)
	// Allowance reads the vault's spend allowance on the settlement chain.
	Allowance(ctx context.Context) (decimal.Decimal, error)
	// Approve raises the vault allowance and waits for the receipt.
	Approve(ctx context.Context, amount decimal.Decimal) (string, error)
	// Contribute calls the vault and waits for the receipt.
	Contribute(ctx context.Context, creator string, amount decimal.Decimal) (*TxOutcome, error)
}

// BridgeGateway moves USDC from a source chain to the settlement chain.
//
//go:generate mockery --name BridgeGateway --output ./mocks --outpkg mocks
type BridgeGateway interface {
	// Burn burns USDC on the source chain and returns the message to attest.
	Burn(ctx context.Context, source string, amount decimal.Decimal) (*BridgeBurn, error)
	// Attest waits for the attestation and mints on the settlement chain.
	Attest(ctx context.Context, burn *BridgeBurn) (*BridgeResult, error)
}

// Recorder reports a settled contribution to the ledger API.
//
//go:generate mockery --name Recorder --output ./mocks --outpkg mocks
type Recorder interface {
	Record(ctx context.Context, req service.RecordRequest) (*service.RecordResult, error)
}

// TipRequest carries the inputs of one tip.
type TipRequest struct {
	Creator     string
	CreatorName string
	Amount      decimal.Decimal
	Route       Route
}

// TipResult is the outcome of a completed tip.
type TipResult struct {
	TxHash string
	Record *service.RecordResult
}

// Observer is notified on every step transition.
type Observer func(step Step, detail string)

// Orchestrator walks one tip at a time through its steps. A failed tip stays
// held so Retry can rerun it with the same inputs.
type Orchestrator struct {
	gateway         ChainGateway
	bridge          BridgeGateway
	recorder        Recorder
	settlementChain string
	logger          *zap.Logger
	observer        Observer

	mu        sync.Mutex
	running   bool
	step      Step
	stepStart time.Time
	lastErr   string
	lastReq   *TipRequest
	opID      string
}

// NewOrchestrator creates a tip orchestrator. The bridge gateway may be nil
// when only direct routes are used; observer may be nil.
func NewOrchestrator(
	gateway ChainGateway,
	bridge BridgeGateway,
	recorder Recorder,
	settlementChain string,
	logger *zap.Logger,
	observer Observer,
) *Orchestrator {
	return &Orchestrator{
		gateway:         gateway,
		bridge:          bridge,
		recorder:        recorder,
		settlementChain: settlementChain,
		logger:          logger,
		observer:        observer,
		step:            StepIdle,
	}
}

// Status returns the current step and, when in the error step, the failure detail.
func (o *Orchestrator) Status() (Step, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step, o.lastErr
}

// Transitions lists the steps a tip will walk for the given route, active
// chain, and whether an allowance increase is expected.
func Transitions(route Route, activeChain, settlementChain string, needsApproval bool) []Step {
	var steps []Step
	if activeChain != route.Source {
		steps = append(steps, StepSwitching)
	}
	if route.Kind == RouteBridge {
		steps = append(steps, StepBridging, StepAttesting)
		if route.Source != settlementChain {
			steps = append(steps, StepSwitching)
		}
	}
	if needsApproval {
		steps = append(steps, StepApproving)
	}
	return append(steps, StepContributing, StepRecording, StepDone)
}

// Run executes one tip. It rejects a second call while a tip is in flight.
func (o *Orchestrator) Run(ctx context.Context, req TipRequest) (*TipResult, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrTipInFlight
	}
	o.running = true
	o.lastReq = &req
	o.lastErr = ""
	o.opID = uuid.NewString()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	o.logger.Info("Starting tip",
		zap.String("op_id", o.opID),
		zap.String("creator", req.Creator),
		zap.String("amount", req.Amount.String()),
		zap.String("route", string(req.Route.Kind)),
		zap.String("source_chain", req.Route.Source))

	result, stepErr := o.run(ctx, req)
	if stepErr != nil {
		detail := truncateDetail(stepErr.Error())
		o.logger.Error("Tip failed",
			zap.String("op_id", o.opID),
			zap.String("step", string(stepErr.Step)),
			zap.Error(stepErr.Err))
		o.setStep(StepError, detail)
		o.mu.Lock()
		o.lastErr = detail
		o.mu.Unlock()
		metrics.TipsTotal.WithLabelValues(string(req.Route.Kind), "error").Inc()
		return nil, stepErr
	}

	o.setStep(StepDone, result.TxHash)
	metrics.TipsTotal.WithLabelValues(string(req.Route.Kind), "success").Inc()
	o.logger.Info("Tip complete",
		zap.String("op_id", o.opID),
		zap.String("tx_hash", result.TxHash))
	return result, nil
}

// Retry reruns the last failed tip with its original inputs.
func (o *Orchestrator) Retry(ctx context.Context) (*TipResult, error) {
	o.mu.Lock()
	req := o.lastReq
	failed := o.step == StepError
	o.mu.Unlock()

	if req == nil || !failed {
		return nil, ErrNothingToRetry
	}

	o.setStep(StepIdle, "")
	return o.Run(ctx, *req)
}

func (o *Orchestrator) run(ctx context.Context, req TipRequest) (*TipResult, *StepFailure) {
	if req.Creator == "" {
		return nil, &StepFailure{Step: StepIdle, Err: fmt.Errorf("creator address is required")}
	}
	if !req.Amount.IsPositive() {
		return nil, &StepFailure{Step: StepIdle, Err: fmt.Errorf("amount must be positive")}
	}
	if err := req.Route.Validate(); err != nil {
		return nil, &StepFailure{Step: StepIdle, Err: err}
	}
	if req.Route.Kind == RouteBridge && o.bridge == nil {
		return nil, &StepFailure{Step: StepIdle, Err: fmt.Errorf("no bridge gateway configured")}
	}

	if o.gateway.ActiveChain() != req.Route.Source {
		o.setStep(StepSwitching, req.Route.Source)
		if err := o.gateway.SwitchChain(ctx, req.Route.Source); err != nil {
			return nil, &StepFailure{Step: StepSwitching, Err: err}
		}
	}

	if req.Route.Kind == RouteBridge {
		o.setStep(StepBridging, req.Route.Source)
		burn, err := o.bridge.Burn(ctx, req.Route.Source, req.Amount)
		if err != nil {
			return nil, &StepFailure{Step: StepBridging, Err: err}
		}

		o.setStep(StepAttesting, burn.TxHash)
		res, err := o.bridge.Attest(ctx, burn)
		if err != nil {
			return nil, &StepFailure{Step: StepAttesting, Err: err}
		}
		if res.Outcome != BridgeSuccess {
			return nil, &StepFailure{
				Step: StepAttesting,
				Err:  fmt.Errorf("bridge %s: %s", res.Outcome, res.Detail),
			}
		}

		if o.gateway.ActiveChain() != o.settlementChain {
			o.setStep(StepSwitching, o.settlementChain)
			if err := o.gateway.SwitchChain(ctx, o.settlementChain); err != nil {
				return nil, &StepFailure{Step: StepSwitching, Err: err}
			}
		}
	}

	balance, err := o.gateway.USDCBalance(ctx)
	if err != nil {
		return nil, &StepFailure{Step: StepChecking, Err: err}
	}
	if balance.LessThan(req.Amount) {
		return nil, &StepFailure{
			Step: StepChecking,
			Err:  fmt.Errorf("insufficient USDC balance: have %s, need %s", balance, req.Amount),
		}
	}

	allowance, err := o.gateway.Allowance(ctx)
	if err != nil {
		return nil, &StepFailure{Step: StepApproving, Err: err}
	}
	if allowance.LessThan(req.Amount) {
		o.setStep(StepApproving, ApproveCeiling.String())
		if _, err := o.gateway.Approve(ctx, ApproveCeiling); err != nil {
			return nil, &StepFailure{Step: StepApproving, Err: err}
		}
	}

	o.setStep(StepContributing, req.Amount.String())
	outcome, err := o.gateway.Contribute(ctx, req.Creator, req.Amount)
	if err != nil {
		return nil, &StepFailure{Step: StepContributing, Err: err}
	}
	if outcome.Reverted {
		return nil, &StepFailure{
			Step: StepContributing,
			Err:  fmt.Errorf("contribution reverted: %s", outcome.Hash),
		}
	}

	o.setStep(StepRecording, outcome.Hash)
	record, err := o.recorder.Record(ctx, service.RecordRequest{
		Patron:      o.gateway.Address(),
		Creator:     req.Creator,
		Amount:      req.Amount,
		Chain:       req.Route.RecordChain(),
		TxHash:      outcome.Hash,
		CreatorName: req.CreatorName,
	})
	if err != nil {
		return nil, &StepFailure{Step: StepRecording, Err: err}
	}

	return &TipResult{TxHash: outcome.Hash, Record: record}, nil
}

func (o *Orchestrator) setStep(step Step, detail string) {
	o.mu.Lock()
	prev := o.step
	if !o.stepStart.IsZero() && prev != StepIdle && prev != StepDone && prev != StepError {
		metrics.TipStepDuration.WithLabelValues(string(prev)).Observe(time.Since(o.stepStart).Seconds())
	}
	o.step = step
	o.stepStart = time.Now()
	observer := o.observer
	o.mu.Unlock()

	if observer != nil {
		observer(step, detail)
	}
}
