package ledgerstore

import (
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/tipx/tipx/pkg/ledger"
)

// ContributionDao is a data access object that maps directly to the
// 'contributions' table in PostgreSQL.
type ContributionDao struct {
	bun.BaseModel  `bun:"table:contributions,alias:c"`
	ID             int64           `bun:"id,pk,autoincrement"`
	PatronAddress  string          `bun:"patron_address,notnull,type:varchar(64)"`
	CreatorAddress string          `bun:"creator_address,notnull,type:varchar(64)"`
	Amount         decimal.Decimal `bun:"amount,notnull,type:numeric(38,18)"`
	Chain          string          `bun:"chain,notnull,default:'arbitrum',type:varchar(32)"`
	TxHash         string          `bun:"tx_hash,notnull,type:varchar(80)"`
	Timestamp      int64           `bun:"timestamp,notnull"`
	CreatorName    *string         `bun:"creator_name,type:varchar(255)"`
}

// LoyaltyPayoutDao is a data access object that maps directly to the
// 'loyalty_payouts' table in PostgreSQL.
type LoyaltyPayoutDao struct {
	bun.BaseModel   `bun:"table:loyalty_payouts,alias:lp"`
	ID              int64           `bun:"id,pk,autoincrement"`
	PatronAddress   string          `bun:"patron_address,notnull,type:varchar(64)"`
	CreatorAddress  string          `bun:"creator_address,notnull,type:varchar(64)"`
	PatronCashback  decimal.Decimal `bun:"patron_cashback,notnull,type:numeric(38,18)"`
	CreatorBonus    decimal.Decimal `bun:"creator_bonus,notnull,type:numeric(38,18)"`
	QualifyingTotal decimal.Decimal `bun:"qualifying_total,notnull,type:numeric(38,18)"`
	TxHash          *string         `bun:"tx_hash,type:varchar(80)"`
	Chain           string          `bun:"chain,notnull,type:varchar(32)"`
	Timestamp       int64           `bun:"timestamp,notnull"`
}

// toContributionDao converts a ledger.Contribution to ContributionDao.
func toContributionDao(c *ledger.Contribution) *ContributionDao {
	dao := &ContributionDao{
		ID:             c.ID,
		PatronAddress:  c.Patron,
		CreatorAddress: c.Creator,
		Amount:         c.Amount,
		Chain:          c.Chain,
		TxHash:         c.TxHash,
		Timestamp:      c.Timestamp,
	}
	if c.CreatorName != "" {
		dao.CreatorName = &c.CreatorName
	}
	return dao
}

// toContribution converts a ContributionDao to ledger.Contribution.
func toContribution(dao *ContributionDao) *ledger.Contribution {
	c := &ledger.Contribution{
		ID:        dao.ID,
		Patron:    dao.PatronAddress,
		Creator:   dao.CreatorAddress,
		Amount:    dao.Amount,
		Chain:     dao.Chain,
		TxHash:    dao.TxHash,
		Timestamp: dao.Timestamp,
	}
	if dao.CreatorName != nil {
		c.CreatorName = *dao.CreatorName
	}
	return c
}

// toPayoutDao converts a ledger.LoyaltyPayout to LoyaltyPayoutDao.
func toPayoutDao(p *ledger.LoyaltyPayout) *LoyaltyPayoutDao {
	return &LoyaltyPayoutDao{
		ID:              p.ID,
		PatronAddress:   p.Patron,
		CreatorAddress:  p.Creator,
		PatronCashback:  p.PatronCashback,
		CreatorBonus:    p.CreatorBonus,
		QualifyingTotal: p.QualifyingTotal,
		TxHash:          p.TxHash,
		Chain:           p.Chain,
		Timestamp:       p.Timestamp,
	}
}

// toPayout converts a LoyaltyPayoutDao to ledger.LoyaltyPayout.
func toPayout(dao *LoyaltyPayoutDao) *ledger.LoyaltyPayout {
	return &ledger.LoyaltyPayout{
		ID:              dao.ID,
		Patron:          dao.PatronAddress,
		Creator:         dao.CreatorAddress,
		PatronCashback:  dao.PatronCashback,
		CreatorBonus:    dao.CreatorBonus,
		QualifyingTotal: dao.QualifyingTotal,
		TxHash:          dao.TxHash,
		Chain:           dao.Chain,
		Timestamp:       dao.Timestamp,
	}
}
