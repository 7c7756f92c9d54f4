package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stepnotify/internal/types"
)

// Compile-time assertion that NotificationRepository implements the store
// interface the service and worker depend on.
var _ types.NotificationStore = (*NotificationRepository)(nil)

// NotificationRepository provides data access for the step_notifications
// table. The subscription snapshot is denormalized into endpoint/p256dh/auth
// columns so delivery never joins against the live subscriptions table.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a NotificationRepository backed by the
// given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, user_id, day, step_index, end_ts, url, step_title,
	 endpoint, p256dh, auth, COALESCE(job_id, ''), sent, created_at`

// Get loads a notification by id. Returns (nil, nil) when the record does
// not exist; absence is an expected condition for the worker's idempotency
// check.
func (r *NotificationRepository) Get(ctx context.Context, id string) (*types.StepNotification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+notificationColumns+`
		 FROM step_notifications
		 WHERE id = $1`,
		id,
	)
	return scanNotification(row)
}

// FindActive returns the non-sent notification for the composite key, or
// (nil, nil) when none exists.
func (r *NotificationRepository) FindActive(ctx context.Context, key types.StepKey) (*types.StepNotification, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+notificationColumns+`
		 FROM step_notifications
		 WHERE user_id = $1 AND day = $2 AND step_index = $3 AND NOT sent
		 ORDER BY created_at DESC
		 LIMIT 1`,
		key.UserID, key.Day, key.StepIndex,
	)
	return scanNotification(row)
}

// Create inserts a new notification record and returns its id. If the
// caller left the ID empty, a UUID is generated.
func (r *NotificationRepository) Create(ctx context.Context, n *types.StepNotification) (string, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO step_notifications
		 (id, user_id, day, step_index, end_ts, url, step_title,
		  endpoint, p256dh, auth, job_id, sent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, COALESCE($13, NOW()))`,
		n.ID,
		n.UserID,
		n.Day,
		n.StepIndex,
		n.EndTS,
		n.URL,
		n.StepTitle,
		n.Subscription.Endpoint,
		n.Subscription.P256dh,
		n.Subscription.Auth,
		n.JobID,
		n.Sent,
		nilIfZeroTime(n.CreatedAt),
	)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to create step notification", err)
	}
	return n.ID, nil
}

// Update applies a partial update. Nil patch fields are left unchanged.
// Updating an absent record returns a not-found error so the service never
// reports success for a write that did not commit.
func (r *NotificationRepository) Update(ctx context.Context, id string, patch types.NotificationPatch) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if patch.EndTS != nil {
		args = append(args, *patch.EndTS)
		sets = append(sets, fmt.Sprintf("end_ts = $%d", len(args)))
	}
	if patch.JobID != nil {
		args = append(args, *patch.JobID)
		sets = append(sets, fmt.Sprintf("job_id = NULLIF($%d, '')", len(args)))
	}
	if patch.Sent != nil {
		args = append(args, *patch.Sent)
		sets = append(sets, fmt.Sprintf("sent = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf("UPDATE step_notifications SET %s WHERE id = $%d",
			strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update step notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "step notification not found", nil)
	}
	return nil
}

// Delete removes the record. Deleting an absent record is a no-op: the
// worker and service both rely on delete being idempotent.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM step_notifications WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete step notification", err)
	}
	return nil
}

// scanNotification maps a single-row query result onto a StepNotification,
// translating pgx.ErrNoRows into (nil, nil).
func scanNotification(row pgx.Row) (*types.StepNotification, error) {
	var n types.StepNotification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Day,
		&n.StepIndex,
		&n.EndTS,
		&n.URL,
		&n.StepTitle,
		&n.Subscription.Endpoint,
		&n.Subscription.P256dh,
		&n.Subscription.Auth,
		&n.JobID,
		&n.Sent,
		&n.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan step notification", err)
	}
	return &n, nil
}
