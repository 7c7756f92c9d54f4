package types

import (
	"github.com/go-playground/validator/v10"
)

// snapshotValidator validates SubscriptionSnapshot struct tags. A single
// instance is safe for concurrent use.
var snapshotValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the snapshot carries everything the Web Push
// protocol needs: an endpoint URL and both cryptographic keys. A snapshot
// that fails here is a data-integrity bug on the stored record, not a
// retryable condition.
func (s SubscriptionSnapshot) Validate() error {
	if err := snapshotValidator.Struct(s); err != nil {
		return NewAppError(ErrCodeValidationMalformedSub,
			"subscription snapshot is missing endpoint or keys", err)
	}
	return nil
}
