// Package db provides shared PostgreSQL helpers for bulk COPY loads.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows sent per COPY when no batch size
// is given.
const DefaultBatchSize = 50000

// CopyFromSchema bulk-inserts rows into a schema-qualified table in
// batches of batchSize rows (0 = DefaultBatchSize). On error it returns
// the rows copied by earlier batches.
func CopyFromSchema(ctx context.Context, c Copier, schema, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", schema+"."+table),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		n, err := c.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s.%s (batch %d-%d)", schema, table, i, end)
		}
		total += n

		log.Debug("batch copied",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}
	return total, nil
}
