// Package tip implements the client-side orchestrator that walks a tip from
// the patron's funding chain to the settlement vault.
package tip

import (
	"fmt"

	"github.com/tipx/tipx/pkg/ledger"
)

// RouteKind tags how a tip reaches the settlement chain.
type RouteKind string

const (
	// RouteDirect funds the tip on the settlement chain itself.
	RouteDirect RouteKind = "direct"
	// RouteBridge burns USDC on another chain and mints it on the
	// settlement chain before contributing.
	RouteBridge RouteKind = "bridge"
)

// Route describes the path a tip takes. Source names the funding chain; for
// direct routes it equals the settlement chain.
type Route struct {
	Kind   RouteKind
	Source string
}

// DirectRoute builds a route funded on the settlement chain.
func DirectRoute(settlementChain string) Route {
	return Route{Kind: RouteDirect, Source: settlementChain}
}

// BridgeRoute builds a route funded on another chain and bridged over.
func BridgeRoute(source string) Route {
	return Route{Kind: RouteBridge, Source: source}
}

// RecordChain returns the chain label written to the contribution ledger.
func (r Route) RecordChain() string {
	if r.Kind == RouteBridge {
		return ledger.ChainBridge
	}
	return ledger.ChainArbitrum
}

// Validate checks the route is well formed.
func (r Route) Validate() error {
	switch r.Kind {
	case RouteDirect, RouteBridge:
	default:
		return fmt.Errorf("unknown route kind: %q", r.Kind)
	}
	if r.Source == "" {
		return fmt.Errorf("route source chain is required")
	}
	return nil
}
