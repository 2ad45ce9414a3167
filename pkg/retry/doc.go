// Package retry retries transient transport failures with exponential backoff.
//
// Only network and 5xx failures are retried by default. Rate-limit rejections
// are returned to the caller untouched so the request queue can suspend all
// traffic instead of a single request hammering the endpoint.
//
//	err := retry.Do(func() error {
//		return client.post(ctx, path, body, &out)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//		Context:     ctx,
//		Logger:      log,
//	})
//
// Wait is also used on its own wherever a component needs a cancellable sleep.
package retry
