// Package ratelimit provides rate limiting for requests against the
// Sproutbook service.
//
// Feed pages and media downloads share one limiter so the combined request
// rate stays under the configured ceiling regardless of how the work is
// split between pagination and the download pool.
//
// Available Implementations:
//
// Token Bucket:
//   - Fixed capacity bucket that refills after a specified period
//   - Suitable for burst traffic followed by quiet periods
//
// Sliding Window:
//   - Tracks requests within a moving time window
//   - More accurate rate limiting over time
//   - Default implementation used by the syncer
//
// Interface:
//
// All rate limiters implement the Limiter interface:
//   - Allow() bool - Check if a request is allowed
//   - Wait() - Block until a request is allowed
//   - Reset() - Reset the limiter state
//
// Usage:
//
//	// Sliding window: 60 requests per minute
//	limiter := ratelimit.PerMinute(60)
//
//	// Block until allowed
//	limiter.Wait()
//	// Proceed with request
package ratelimit
