package preserve

import "sync"

type flight[T any] struct {
	done chan struct{}
	val  *T
	err  error
}

// Flight coalesces concurrent calls that share a key: the first caller runs
// the work, everyone else arriving before it settles waits for that one
// result. A call arriving after settlement starts a fresh attempt, so a
// transient failure is never cached.
type Flight[T any] struct {
	mu sync.Mutex
	m  map[string]*flight[T]
}

// Do runs fn for key, or waits for an identical in-flight call. The second
// return reports whether the result came from another caller's flight.
func (f *Flight[T]) Do(key string, fn func() (*T, error)) (*T, bool, error) {
	f.mu.Lock()
	if f.m == nil {
		f.m = make(map[string]*flight[T])
	}
	if fl, ok := f.m[key]; ok {
		f.mu.Unlock()
		<-fl.done
		return fl.val, true, fl.err
	}
	fl := &flight[T]{done: make(chan struct{})}
	f.m[key] = fl
	f.mu.Unlock()

	fl.val, fl.err = fn()

	// Remove the entry before waking waiters so a caller that observes the
	// settled result and retries starts a fresh flight.
	f.mu.Lock()
	delete(f.m, key)
	f.mu.Unlock()
	close(fl.done)

	return fl.val, false, fl.err
}
