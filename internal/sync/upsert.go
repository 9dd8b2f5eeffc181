package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/sevensync/sevensync/internal/sink"
)

// WarnRowThreshold is the batch size above which Upsert logs a warning:
// staging that many rows holds the write lock longer than a sync step
// should.
const WarnRowThreshold = 5000

// scratchPrefix marks the per-call staging tables.
const scratchPrefix = "upsert_tmp_"

// Upserter performs idempotent insert-or-replace writes against a sink that
// has no native upsert usable from the tabular-write primitives.
//
// The protocol: stage the batch in a scratch table, delete destination rows
// whose key appears in the staged set, then append the batch, all in one
// transaction. Re-running with the same batch is a no-op in effect;
// re-running with updated rows fully supersedes the old ones.
type Upserter struct {
	db     *sink.DB
	logger *log.Logger
}

// NewUpserter creates an Upserter over the given sink. If logger is nil, a
// default logger writing to stderr is used.
func NewUpserter(db *sink.DB, logger *log.Logger) *Upserter {
	if logger == nil {
		logger = log.New(os.Stderr, "[upsert] ", log.LstdFlags)
	}
	return &Upserter{db: db, logger: logger}
}

// Upsert writes the batch into its destination table and returns the rows
// written. An empty batch is a no-op returning 0. If the destination table
// does not exist yet, the batch becomes the fresh table wholesale.
//
// The delete step matches on the first key column only, even for composite
// keys; composite keys are synthesized so their first column is already
// unique, which keeps that shortcut safe.
func (u *Upserter) Upsert(ctx context.Context, batch Batch) (int, error) {
	if len(batch.Rows) == 0 {
		return 0, nil
	}

	cols := batch.Columns()

	exists, err := u.db.TableExists(ctx, batch.Table)
	if err != nil {
		return 0, err
	}
	if !exists {
		var written int
		err := u.db.InTx(ctx, func(tx *sink.Tx) error {
			written, err = tx.CreateFromRows(ctx, batch.Table, cols, batch.Keys, batch.Rows)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("failed to create %s from batch: %w", batch.Table, err)
		}
		return written, nil
	}

	if len(batch.Rows) > WarnRowThreshold {
		u.logger.Printf("Warning: %d rows supplied to upsert of %s, recommend < %d",
			len(batch.Rows), batch.Table, WarnRowThreshold)
	}

	if len(batch.Keys) == 0 {
		return 0, fmt.Errorf("table %s: %w", batch.Table, ErrNoKeyColumns)
	}

	scratch := scratchName(batch.Table)
	// The transaction drops the scratch table on the happy path; this
	// covers failure paths where the rollback itself leaves it behind.
	defer func() {
		if err := u.db.DropTableIfExists(context.WithoutCancel(ctx), scratch); err != nil {
			u.logger.Printf("Warning: failed to clean up scratch table %s: %v", scratch, err)
		}
	}()

	var written int
	err = u.db.InTx(ctx, func(tx *sink.Tx) error {
		if _, err := tx.CreateFromRows(ctx, scratch, cols, nil, batch.Rows); err != nil {
			return err
		}
		if err := tx.DeleteWhereKeyIn(ctx, batch.Table, batch.Keys[0], scratch); err != nil {
			return err
		}
		if err := tx.DropTable(ctx, scratch); err != nil {
			return err
		}
		written, err = tx.AppendRows(ctx, batch.Table, cols, batch.Rows)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert into %s: %w", batch.Table, err)
	}
	return written, nil
}

// scratchName builds a staging table name unique to this call, so
// concurrent upserts against the same destination cannot collide.
func scratchName(table string) string {
	suffix := strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	return scratchPrefix + table + "_" + suffix
}
