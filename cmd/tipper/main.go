package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tipx/tipx/pkg/bridge"
	"github.com/tipx/tipx/pkg/config"
	"github.com/tipx/tipx/pkg/gateway"
	"github.com/tipx/tipx/pkg/tip"
)

var (
	configPath  = flag.String("config", "config.tipper.yaml", "Path to configuration file")
	creator     = flag.String("creator", "", "Creator wallet address")
	creatorName = flag.String("name", "", "Creator display name (optional)")
	amountFlag  = flag.String("amount", "", "Tip amount in USDC")
	routeFlag   = flag.String("route", "", "Funding chain (defaults to the settlement chain)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadTipper(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}

	if *creator == "" {
		fatalf("-creator is required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		fatalf("invalid -amount %q: %v", *amountFlag, err)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	route := tip.DirectRoute(cfg.SettlementChain)
	if *routeFlag != "" && *routeFlag != cfg.SettlementChain {
		route = tip.BridgeRoute(*routeFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainGateway, err := gateway.NewEVMGateway(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize gateway: %v", err)
	}
	defer chainGateway.Close()

	var bridgeGateway tip.BridgeGateway
	if route.Kind == tip.RouteBridge {
		bridgeClient, err := bridge.NewClient(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize bridge: %v", err)
		}
		defer bridgeClient.Close()
		bridgeGateway = bridgeClient
	}

	recorder := tip.NewHTTPRecorder(cfg.APIURL)

	observer := func(step tip.Step, detail string) {
		if detail != "" {
			fmt.Printf("step: %-12s %s\n", step, detail)
		} else {
			fmt.Printf("step: %s\n", step)
		}
	}

	orchestrator := tip.NewOrchestrator(
		chainGateway,
		bridgeGateway,
		recorder,
		cfg.SettlementChain,
		logger,
		observer,
	)

	result, err := orchestrator.Run(ctx, tip.TipRequest{
		Creator:     *creator,
		CreatorName: *creatorName,
		Amount:      amount,
		Route:       route,
	})
	if err != nil {
		logger.Error("Tip failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("contribution tx: %s\n", result.TxHash)

	payout := result.Record.Payout
	if payout.Triggered {
		fmt.Printf("loyalty payout triggered: cashback %s, bonus %s (qualifying total %s)\n",
			payout.CashbackAmount, payout.BonusAmount, payout.QualifyingTotal)
		if payout.TxHash != nil {
			fmt.Printf("payout tx: %s\n", *payout.TxHash)
		} else {
			fmt.Println("payout tx: pending (distribution failed, recorded off-chain)")
		}
		if payout.TotalCashback != nil {
			fmt.Printf("total cashback to date: %s\n", payout.TotalCashback)
		}
	} else if payout.UntilNextPayout > 0 {
		fmt.Printf("%d more tip(s) until the next loyalty payout\n", payout.UntilNextPayout)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
