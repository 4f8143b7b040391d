// Package ledger defines the domain model for the contribution ledger and
// loyalty engine: settled tips, loyalty payouts, and the read-side
// aggregations served to patrons and creators.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Chain tags recorded with a contribution. Direct tips settle on Arbitrum;
// bridged tips also settle on Arbitrum but keep their origin tagged.
const (
	ChainArbitrum = "arbitrum"
	ChainBridge   = "bridge"
)

// SettlementEligible reports whether loyalty payouts can be distributed
// on-chain for a contribution recorded with the given chain tag. Bridged
// contributions land on the settlement chain, so they qualify too.
func SettlementEligible(chain string) bool {
	return chain == "" || chain == ChainArbitrum || chain == ChainBridge
}

// PairKey returns the canonical case-insensitive identity of a
// (patron, creator) relationship.
func PairKey(patron, creator string) string {
	return strings.ToLower(patron) + "|" + strings.ToLower(creator)
}

// Contribution is a single settled tip from a patron to a creator.
// Rows are append-only; a recorded contribution is never updated or removed.
type Contribution struct {
	ID          int64           `json:"id,omitempty"`
	Patron      string          `json:"patron_address"`
	Creator     string          `json:"creator_address"`
	Amount      decimal.Decimal `json:"amount"`
	Chain       string          `json:"chain"`
	TxHash      string          `json:"tx_hash"`
	Timestamp   int64           `json:"timestamp"`
	CreatorName string          `json:"creator_name,omitempty"`
}

// LoyaltyPayout is the durable record of a loyalty event. TxHash is nil when
// the on-chain distribution was skipped or failed; the payout row is kept
// either way.
type LoyaltyPayout struct {
	ID              int64           `json:"id,omitempty"`
	Patron          string          `json:"patron_address"`
	Creator         string          `json:"creator_address"`
	PatronCashback  decimal.Decimal `json:"patron_cashback"`
	CreatorBonus    decimal.Decimal `json:"creator_bonus"`
	QualifyingTotal decimal.Decimal `json:"qualifying_total"`
	TxHash          *string         `json:"tx_hash"`
	Chain           string          `json:"chain"`
	Timestamp       int64           `json:"timestamp"`
}

// CreatorRollup aggregates a patron's history with one creator.
type CreatorRollup struct {
	Creator           string          `json:"creator_address"`
	CreatorName       string          `json:"creator_name,omitempty"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	ContributionCount int64           `json:"contribution_count"`
	LastContribution  int64           `json:"last_contribution"`
}

// PatronDashboard is the read model behind the patron endpoint.
type PatronDashboard struct {
	Creators            []CreatorRollup `json:"creators"`
	RecentPayouts       []LoyaltyPayout `json:"recentPayouts"`
	RecentContributions []Contribution  `json:"recentContributions"`
	TotalCashback       decimal.Decimal `json:"totalCashback"`
	TotalContributed    decimal.Decimal `json:"totalContributed"`
}

// CreatorStats is the read model behind the creator endpoint.
type CreatorStats struct {
	RecentContributions []Contribution `json:"recentContributions"`
	Stats               struct {
		TotalContributions int64           `json:"total_contributions"`
		TotalAmount        decimal.Decimal `json:"total_amount"`
		UniquePatrons      int64           `json:"unique_patrons"`
	} `json:"stats"`
}
