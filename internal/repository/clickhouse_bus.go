package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	drepo "FeedRelay/internal/domain/repository"
	"FeedRelay/pkg/async"
)

// ClickHouseBus archives every record as a raw row (topic, key, payload) in
// a MergeTree table ordered by topic, key and enqueue time, so replays read
// back in per-symbol order.
type ClickHouseBus struct {
	db    *sql.DB
	table string
	q     *batchQueue
}

// ClickHouseBusSchema returns the DDL for table.
func ClickHouseBusSchema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	topic String,
	ordering_key String,
	payload String,
	enqueued_at DateTime64(6, 'UTC')
) ENGINE = MergeTree ORDER BY (topic, ordering_key, enqueued_at)`, table)
}

// NewClickHouseBus creates a table-backed bus. Rows are inserted in batches of
// up to batch rows or every linger.
func NewClickHouseBus(db *sql.DB, table string, capacity, batch int, linger time.Duration) drepo.Bus {
	b := &ClickHouseBus{db: db, table: table}
	b.q = newBatchQueue(capacity, batch, linger, 0, b.flush)
	return b
}

func (b *ClickHouseBus) Publish(topic, orderingKey string, data []byte) *async.Result {
	return b.q.enqueue(topic, orderingKey, data)
}

func (b *ClickHouseBus) flush(ctx context.Context, batch []*busMessage) {
	err := b.insert(ctx, batch)
	for _, m := range batch {
		m.res.Complete("", err)
	}
}

// insert writes one batch through a prepared statement inside a transaction,
// which clickhouse-go sends as a single block.
func (b *ClickHouseBus) insert(ctx context.Context, batch []*busMessage) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clickhouse begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (topic, ordering_key, payload, enqueued_at)", b.table))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clickhouse prepare: %w", err)
	}
	defer stmt.Close()
	for _, m := range batch {
		if _, err := stmt.ExecContext(ctx, m.topic, m.key, string(m.data), m.at.UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clickhouse append: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clickhouse commit: %w", err)
	}
	return nil
}

// Close flushes buffered rows and closes the pool.
func (b *ClickHouseBus) Close() error {
	b.q.close()
	return b.db.Close()
}
