package orders

import (
	"context"

	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/ariefcatur/pizza-club-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// PgUnitOfWork binds the catalog, staging and order repositories to one pgx transaction.
type PgUnitOfWork struct{ DB postgres.Beginner }

func (u *PgUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return postgres.InTx(ctx, u.DB, func(tx pgx.Tx) error {
		return fn(ctx, Stores{
			Catalog: &catalog.Repo{DB: tx},
			Staging: &StagingRepo{DB: tx},
			Orders:  &OrderRepo{DB: tx},
		})
	})
}
