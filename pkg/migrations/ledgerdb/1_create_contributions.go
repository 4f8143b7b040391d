package ledgerdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/tipx/tipx/pkg/ledgerstore"
	mghelper "github.com/tipx/tipx/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating contributions table...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.ContributionDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &ledgerstore.ContributionDao{}, "tx_hash"); err != nil {
			return err
		}
		// Expression indexes backing the case-insensitive lookups
		if err := mghelper.CreateIndexExpr(ctx, db, "contributions", "idx_contributions_patron", "lower(patron_address)"); err != nil {
			return err
		}
		if err := mghelper.CreateIndexExpr(ctx, db, "contributions", "idx_contributions_creator", "lower(creator_address)"); err != nil {
			return err
		}
		return mghelper.CreateIndexExpr(ctx, db, "contributions", "idx_contributions_pair",
			"lower(patron_address), lower(creator_address)")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping contributions table...")
		return mghelper.DropTables(ctx, db, &ledgerstore.ContributionDao{})
	})
}
