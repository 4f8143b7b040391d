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
		log.Println("creating loyalty_payouts table...")
		if err := mghelper.CreateSchema(ctx, db, &ledgerstore.LoyaltyPayoutDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateIndexExpr(ctx, db, "loyalty_payouts", "idx_loyalty_payouts_patron", "lower(patron_address)"); err != nil {
			return err
		}
		return mghelper.CreateIndexExpr(ctx, db, "loyalty_payouts", "idx_loyalty_payouts_creator", "lower(creator_address)")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping loyalty_payouts table...")
		return mghelper.DropTables(ctx, db, &ledgerstore.LoyaltyPayoutDao{})
	})
}
