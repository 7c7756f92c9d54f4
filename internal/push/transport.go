// Package push implements the Web Push transport behind the PushTransport
// port. Outbound sends are routed through a circuit breaker so a failing
// push service trips open instead of burning worker attempts, and every
// response status is classified into a delivery outcome the worker can act
// on.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sony/gobreaker/v2"

	"stepnotify/internal/types"
)

// Compile-time assertion that Transport implements the PushTransport port.
var _ types.PushTransport = (*Transport)(nil)

// sendFunc matches webpush.SendNotificationWithContext and is injectable
// for testing.
type sendFunc func(ctx context.Context, message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Transport delivers push payloads over the Web Push protocol with VAPID
// authentication.
type Transport struct {
	cfg     types.PushConfig
	breaker *gobreaker.CircuitBreaker[*http.Response]
	send    sendFunc
	logger  *slog.Logger
}

// TransportOption is a functional option for configuring a Transport.
type TransportOption func(*Transport)

// WithSendFunc overrides the underlying Web Push send call. Intended for
// testing.
func WithSendFunc(fn sendFunc) TransportOption {
	return func(t *Transport) {
		t.send = fn
	}
}

// NewTransport creates a Transport with the given VAPID configuration.
func NewTransport(cfg types.PushConfig, logger *slog.Logger, opts ...TransportOption) *Transport {
	t := &Transport{
		cfg:    cfg,
		send:   webpush.SendNotificationWithContext,
		logger: logger,
	}
	t.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "webpush",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send delivers the payload to the subscription's endpoint and classifies
// the result:
//
//   - 2xx            -> OutcomeSuccess
//   - 404, 410       -> OutcomePermanent (endpoint gone; prune subscription)
//   - anything else  -> OutcomeTransient (worth retrying)
//
// Network errors and an open circuit breaker are transient outcomes, not
// errors: the returned error is reserved for payloads that cannot be
// serialized at all.
func (t *Transport) Send(ctx context.Context, sub types.SubscriptionSnapshot, payload types.PushPayload) (*types.DeliveryResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal push payload", err)
	}

	resp, err := t.breaker.Execute(func() (*http.Response, error) {
		return t.send(ctx, body, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      t.cfg.Subscriber,
			VAPIDPublicKey:  t.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: t.cfg.VAPIDPrivateKey,
			TTL:             t.cfg.TTL,
		})
	})
	if err != nil {
		t.logger.WarnContext(ctx, "push send failed", "error", err)
		return &types.DeliveryResult{
			Outcome: types.OutcomeTransient,
			Reason:  err.Error(),
		}, nil
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	return &types.DeliveryResult{
		Outcome:    classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Reason:     fmt.Sprintf("push service returned %d", resp.StatusCode),
	}, nil
}

// classifyStatus maps a push service response status onto a delivery
// outcome.
func classifyStatus(status int) types.DeliveryOutcome {
	switch {
	case status >= 200 && status < 300:
		return types.OutcomeSuccess
	case status == http.StatusNotFound, status == http.StatusGone:
		return types.OutcomePermanent
	default:
		return types.OutcomeTransient
	}
}
