package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"stepnotify/internal/types"
)

// Compile-time assertion that SubscriptionRepository implements the store
// interface.
var _ types.SubscriptionStore = (*SubscriptionRepository)(nil)

// SubscriptionRepository provides data access for the push_subscriptions
// table. A user may hold several rows (one per device); endpoint is unique
// across the table.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a SubscriptionRepository backed by the
// given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindForUser returns the user's most recently registered subscription as
// a snapshot, or (nil, nil) when the user has none.
func (r *SubscriptionRepository) FindForUser(ctx context.Context, userID string) (*types.SubscriptionSnapshot, error) {
	row := r.db.QueryRow(ctx,
		`SELECT endpoint, p256dh, auth
		 FROM push_subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	)

	var snap types.SubscriptionSnapshot
	err := row.Scan(&snap.Endpoint, &snap.P256dh, &snap.Auth)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load push subscription", err)
	}
	return &snap, nil
}

// Save registers a subscription. A re-registration of an existing endpoint
// (key rotation on the same device) replaces the stored keys and owner.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *types.PushSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		 ON CONFLICT (endpoint) DO UPDATE
		 SET user_id = EXCLUDED.user_id,
		     p256dh = EXCLUDED.p256dh,
		     auth = EXCLUDED.auth,
		     created_at = NOW()`,
		sub.ID,
		sub.UserID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		nilIfZeroTime(sub.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save push subscription", err)
	}
	return nil
}

// DeleteByEndpoint prunes a subscription by endpoint. Deleting an absent
// endpoint is a no-op: the worker may race a user-initiated revoke.
func (r *SubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = $1`, endpoint)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete push subscription", err)
	}
	return nil
}
