// Package ratelimit paces outgoing requests.
//
// Pacer enforces a minimum gap of 1/rps between request starts. It is driven
// by the single drain loop of the request queue, so it never has to arbitrate
// between concurrent callers:
//
//	pacer := ratelimit.NewPacer(3)
//	for task := range tasks {
//		if err := pacer.Wait(ctx); err != nil {
//			return err
//		}
//		task()
//	}
//
// The queue hands its limiter to each task through WithLimiter, so a task
// that retries a failed request waits for its own slot before the retry.
package ratelimit
