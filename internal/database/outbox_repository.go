package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/krekz/maulocum-sub000/internal/domain"
)

// retryBackoffBase is the delay before the first redelivery. Each further
// failure doubles it.
const retryBackoffBase = time.Minute

const outboxColumns = `id, event_type, recipient_kind, recipient_id, application_id, payload,
	status, retry_count, max_retries, error_message, created_at, updated_at,
	published_at, next_retry_at`

// OutboxRepository is the dispatcher's view of notification_outbox. Rows are
// written by Tx.EnqueueNotification inside the booking transaction.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates an OutboxRepository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// FetchPending claims up to limit new notifications, oldest first.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.Notification, error) {
	return r.claim(ctx, "fetch pending", limit,
		`status = $3`,
		`created_at ASC`,
		domain.NotificationPending)
}

// FetchRetryable claims up to limit failed notifications whose backoff has
// elapsed and whose retry budget is not spent.
func (r *OutboxRepository) FetchRetryable(ctx context.Context, limit int) ([]domain.Notification, error) {
	return r.claim(ctx, "fetch retryable", limit,
		`status = $3 AND retry_count < max_retries AND (next_retry_at IS NULL OR next_retry_at <= NOW())`,
		`next_retry_at ASC NULLS FIRST`,
		domain.NotificationFailed)
}

// claim moves the selected rows to publishing and returns them. SKIP LOCKED
// lets several dispatchers poll the same table.
func (r *OutboxRepository) claim(
	ctx context.Context,
	op string,
	limit int,
	filter, order string,
	from domain.NotificationStatus,
) ([]domain.Notification, error) {
	query := `
		UPDATE notification_outbox
		SET status = $2, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_outbox
			WHERE ` + filter + `
			ORDER BY ` + order + `
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	claimed := make([]domain.Notification, 0, limit)
	if err := r.db.SelectContext(ctx, &claimed, query, limit, domain.NotificationPublishing, from); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claimed, nil
}

// MarkPublished records a successful delivery.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string) error {
	return r.settle(ctx, "mark published", `
		UPDATE notification_outbox
		SET status = $2, published_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, domain.NotificationPublished)
}

// MarkFailed records a delivery failure and schedules the next attempt with
// exponential backoff.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id, errorMsg string) error {
	return r.settle(ctx, "mark failed", `
		UPDATE notification_outbox
		SET status = $2,
		    error_message = $3,
		    retry_count = retry_count + 1,
		    next_retry_at = NOW() + ($4::interval * POWER(2, retry_count)),
		    updated_at = NOW()
		WHERE id = $1`,
		id, domain.NotificationFailed, errorMsg, retryBackoffBase.String())
}

// settle updates exactly one row and returns domain.ErrNotFound when the id
// is unknown.
func (r *OutboxRepository) settle(ctx context.Context, op, query string, args ...any) error {
	n, err := r.affected(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ResetToPending releases rows left in publishing by a dispatcher that died
// before settling them.
func (r *OutboxRepository) ResetToPending(ctx context.Context, olderThan time.Duration) (int64, error) {
	return r.affected(ctx, "reset to pending", `
		UPDATE notification_outbox
		SET status = $2, updated_at = NOW()
		WHERE status = $3 AND updated_at < NOW() - $1::interval`,
		olderThan.String(), domain.NotificationPending, domain.NotificationPublishing)
}

// CleanupPublished deletes delivered rows older than the retention window.
func (r *OutboxRepository) CleanupPublished(ctx context.Context, olderThan time.Duration) (int64, error) {
	return r.affected(ctx, "cleanup published", `
		DELETE FROM notification_outbox
		WHERE status = $2 AND published_at < NOW() - $1::interval`,
		olderThan.String(), domain.NotificationPublished)
}

func (r *OutboxRepository) affected(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(fmt.Errorf("%s: rows affected", op), err)
	}
	return n, nil
}

// GetStats counts rows per delivery state and the recent publish lag.
func (r *OutboxRepository) GetStats(ctx context.Context) (*domain.NotificationStats, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'publishing') AS publishing,
			COUNT(*) FILTER (WHERE status = 'published') AS published,
			COUNT(*) FILTER (WHERE status = 'failed' AND retry_count < max_retries) AS failed_retryable,
			COUNT(*) FILTER (WHERE status = 'failed' AND retry_count >= max_retries) AS failed_exhausted,
			COALESCE(AVG(EXTRACT(EPOCH FROM (published_at - created_at)))
				FILTER (WHERE status = 'published' AND published_at > NOW() - INTERVAL '1 hour'), 0)
				AS avg_publish_lag_seconds
		FROM notification_outbox`

	var stats domain.NotificationStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("outbox stats: %w", err)
	}
	return &stats, nil
}
