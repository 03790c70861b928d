package hdrmeta

import "context"

// Result is the single value delivered by [EstimateAsync].
type Result struct {
	Metadata Metadata
	Err      error
}

// EstimateAsync runs [Estimate] on its own goroutine and delivers exactly one
// Result on the returned channel, which is buffered so the goroutine never
// leaks when the caller stops listening.
func EstimateAsync(ctx context.Context, src FrameSource) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		m, err := Estimate(ctx, src)
		ch <- Result{Metadata: m, Err: err}
	}()
	return ch
}
