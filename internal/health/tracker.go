package health

import (
	"sync"
	"time"
)

const (
	outcomeMaxAge = 5 * time.Minute
	requestMaxAge = 30 * time.Minute
)

// Tracker maintains sliding windows of request outcome timestamps. It is the single
// source for overload (RequestCount, DenialCount), degraded (ErrorRate) and idle
// (WeatherRequestCount) decisions.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
	requestTimes []time.Time
}

// NewTracker returns an empty Tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// RecordSuccess records a successful weather lookup.
func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

// RecordError records a failed weather lookup (upstream error, timeout, etc.).
func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.record(&t.deniedTimes)
}

// RecordRequest records a weather request for idle detection.
func (t *Tracker) RecordRequest() {
	t.record(&t.requestTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns success + error + denied outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return countSince(t.successTimes, cutoff) +
		countSince(t.errorTimes, cutoff) +
		countSince(t.deniedTimes, cutoff)
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, t.now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) within the window. Denials are not
// part of totalCount.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errors = countSince(t.errorTimes, cutoff)
	return errors, errors + countSince(t.successTimes, cutoff)
}

// WeatherRequestCount returns the number of weather requests within the window.
func (t *Tracker) WeatherRequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.requestTimes, t.now().Add(-window))
}

// Reset clears all recorded timestamps.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
	t.requestTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention horizon. Caller holds mu.
func (t *Tracker) pruneLocked(now time.Time) {
	prune := func(slice *[]time.Time, maxAge time.Duration) {
		cutoff := now.Add(-maxAge)
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes, outcomeMaxAge)
	prune(&t.errorTimes, outcomeMaxAge)
	prune(&t.deniedTimes, outcomeMaxAge)
	prune(&t.requestTimes, requestMaxAge)
}
