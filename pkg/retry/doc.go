// Package retry provides exponential backoff and retry logic for handling
// transient failures in network operations, particularly feed page fetches.
//
// Features:
//   - Multiple backoff strategies (exponential, linear, constant)
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Configurable retry predicates
//   - Integration with the sproutbook client error types
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		return pushWatermarkState()
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	err := retry.Do(operation, cfg)
//
//	// Retry with a result, as the feed pager does per page
//	notes, err := retry.DoWithResult(func() ([]sproutbook.Note, error) {
//		return client.FetchNotesPage(enrollmentID, before, count, nil)
//	}, cfg)
//
// Error type handling:
//
// DefaultRetryIf consults the error taxonomy in pkg/errors: network,
// rate-limit, and server errors retry; auth, not-found, config, and feed
// errors fail immediately. FeedBackoff seeds the exponential strategy
// from the configured retry delay so operators tune one knob.
package retry
