package notify

import (
	"context"
	"fmt"
	"log/slog"

	"stepnotify/internal/types"
)

// Worker executes due delivery jobs. Its handler is deliberately
// idempotent: the scheduler is at-least-once, and a cancel can race an
// in-flight execution, so the record itself is re-checked at fire time.
//
// Failure semantics are asymmetric by design:
//   - record absent or already sent: silent success (duplicate attempt)
//   - malformed subscription snapshot: logged and dropped (retrying a
//     data-integrity bug cannot succeed)
//   - permanent delivery failure: the dead subscription is pruned, then
//     the job is treated as handled
//   - transient delivery failure: the error propagates so the dispatcher
//     retries with backoff
type Worker struct {
	store     types.NotificationStore
	subs      types.SubscriptionStore
	transport types.PushTransport
	clock     types.Clock
	telemetry types.Telemetry
	logger    *slog.Logger
}

// NewWorker creates the push delivery worker.
func NewWorker(
	store types.NotificationStore,
	subs types.SubscriptionStore,
	transport types.PushTransport,
	clock types.Clock,
	telemetry types.Telemetry,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		store:     store,
		subs:      subs,
		transport: transport,
		clock:     clock,
		telemetry: telemetry,
		logger:    logger,
	}
}

// HandleJob processes one delivery job attempt. It is registered as the
// dispatcher's handler.
func (w *Worker) HandleJob(ctx context.Context, job types.DeliveryJob) error {
	logger := w.logger.With(
		"notification_id", job.NotificationID,
		"trace_id", job.TraceID,
	)

	n, err := w.store.Get(ctx, job.NotificationID)
	if err != nil {
		// Storage trouble is worth retrying; the record may load fine on
		// the next attempt.
		return err
	}
	if n == nil || n.Sent {
		logger.InfoContext(ctx, "notification gone or already sent, skipping")
		return nil
	}

	if err := n.Subscription.Validate(); err != nil {
		logger.ErrorContext(ctx, "stored subscription snapshot is malformed, dropping job", "error", err)
		return nil
	}

	start := w.clock.Now()
	result, err := w.transport.Send(ctx, n.Subscription, buildPayload(n))
	if err != nil {
		return err
	}
	w.telemetry.DeliveryAttempt(ctx, result.Outcome)
	w.telemetry.DeliveryLatency(ctx, w.clock.Now().Sub(start))

	switch result.Outcome {
	case types.OutcomeSuccess:
		// Deletion doubles as the sent marker: there is no post-send read
		// path, and a duplicate attempt finds no record.
		if err := w.store.Delete(ctx, n.ID); err != nil {
			return err
		}
		logger.InfoContext(ctx, "notification delivered", "status", result.StatusCode)
		w.telemetry.StateTransition(ctx, types.TransitionSent)
		return nil

	case types.OutcomePermanent:
		// The endpoint is provably dead; prune it so future notifications
		// never target this device again, and do not retry the job.
		logger.WarnContext(ctx, "endpoint gone, pruning subscription",
			"status", result.StatusCode,
			"reason", result.Reason,
		)
		if err := w.subs.DeleteByEndpoint(ctx, n.Subscription.Endpoint); err != nil {
			return err
		}
		return nil

	default:
		return types.NewAppError(types.ErrCodeDeliveryTransient,
			fmt.Sprintf("push delivery failed: %s", result.Reason), nil)
	}
}

// buildPayload renders the push message for a notification.
func buildPayload(n *types.StepNotification) types.PushPayload {
	body := "Time for the next step!"
	if n.StepTitle != "" {
		body = fmt.Sprintf("%q is complete. Time for the next step!", n.StepTitle)
	}
	return types.PushPayload{
		Title: "Step complete",
		Body:  body,
		URL:   n.URL,
	}
}
