package kafka

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultRelayInterval = 2 * time.Second
	defaultRelayBatch    = 100
)

// OutboxRelay drains the transactional outbox into Kafka. Rows are claimed
// with SKIP LOCKED so multiple instances can relay concurrently without
// duplicating work, and marked published only after the broker acknowledges.
type OutboxRelay struct {
	db       *sql.DB
	producer *Producer
	topic    string
	logger   *slog.Logger

	interval time.Duration
	batch    int
}

// NewOutboxRelay constructs a relay for the audit topic.
func NewOutboxRelay(db *sql.DB, producer *Producer, topic string, logger *slog.Logger) *OutboxRelay {
	return &OutboxRelay{
		db:       db,
		producer: producer,
		topic:    topic,
		logger:   logger,
		interval: defaultRelayInterval,
		batch:    defaultRelayBatch,
	}
}

// Run polls the outbox until the context is cancelled. Cancellation is the
// normal shutdown path and returns nil.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", "error", err.Error())
			}
		}
	}
}

type outboxRow struct {
	id        string
	aggregate string
	payload   []byte
}

func (r *OutboxRelay) drainOnce(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batch)
	if err != nil {
		return fmt.Errorf("claim outbox rows: %w", err)
	}

	var claimed []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.aggregate, &row.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox row: %w", err)
		}
		claimed = append(claimed, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(claimed) == 0 {
		return tx.Commit()
	}

	for _, row := range claimed {
		if err := r.producer.Produce(ctx, r.topic, []byte(row.aggregate), row.payload); err != nil {
			// Leave the row unclaimed; the next pass retries it.
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = $2 WHERE id = $1`, row.id, time.Now()); err != nil {
			return fmt.Errorf("mark outbox row published: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox tx: %w", err)
	}
	r.logger.DebugContext(ctx, "relayed outbox batch", "count", len(claimed))
	return nil
}
