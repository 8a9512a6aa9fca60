// Package ratelimit provides a sliding window limiter keyed by caller.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

type bucket struct {
	mu     sync.Mutex
	hits   []time.Time
	access time.Time
}

// Window allows at most limit hits per key within any span of length window
type Window struct {
	window time.Duration
	limit  int
	now    func() time.Time

	buckets sync.Map // key -> *bucket

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// New creates a limiter. Idle keys are evicted every sweep; a sweep of zero
// disables eviction.
func New(window time.Duration, limit int, sweep time.Duration) *Window {
	w := &Window{
		window: window,
		limit:  limit,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if sweep > 0 {
		w.wg.Add(1)
		go w.sweepLoop(sweep)
	}
	return w
}

// Allow records a hit for key if it fits in the window
func (w *Window) Allow(key string) Decision {
	now := w.now()

	v, _ := w.buckets.LoadOrStore(key, &bucket{})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.access = now
	b.hits = trim(b.hits, now.Add(-w.window))

	if len(b.hits) >= w.limit {
		retry := b.hits[0].Add(w.window).Sub(now)
		if retry <= 0 {
			retry = time.Millisecond
		}
		return Decision{RetryAfter: retry}
	}

	b.hits = append(b.hits, now)
	return Decision{Allowed: true, Remaining: w.limit - len(b.hits)}
}

// trim drops hits at or before cutoff. hits is ordered oldest first.
func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}

func (w *Window) sweepLoop(every time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stop:
			return
		}
	}
}

// sweep forgets keys idle for two windows
func (w *Window) sweep() int {
	cutoff := w.now().Add(-2 * w.window)
	evicted := 0
	w.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := b.access.Before(cutoff)
		b.mu.Unlock()
		if idle {
			w.buckets.Delete(key)
			evicted++
		}
		return true
	})
	return evicted
}

// Keys returns the number of tracked keys
func (w *Window) Keys() int {
	n := 0
	w.buckets.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Stop ends the sweep goroutine. It is safe to call more than once.
func (w *Window) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}
