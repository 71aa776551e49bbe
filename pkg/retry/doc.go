// Package retry runs a function with exponential backoff.
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
//	    return store.Insert(ctx, run)
//	})
//
// DoWithRetryable takes a predicate for callers whose transient errors are not
// network errors, e.g. a busy SQLite database. For HTTP with status code and
// Retry-After handling use internal/platform/httpclient.
package retry
