package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction and hands the
// transaction handle to fn as tx. Repositories receiving a non-nil tx must run
// on it and lock rows they read (SELECT ... FOR UPDATE); a nil tx means the
// pooled, non-transactional path.
//
// fn returning an error rolls the whole transaction back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
