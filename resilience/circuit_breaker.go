package resilience

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows limited probe requests to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker for metrics/logging.
	Name string
	// FailureThreshold is the number of failures that trips the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes that close it.
	SuccessThreshold int
	// VolumeThreshold is the minimum number of calls in the monitoring
	// window before the failure rate is evaluated.
	VolumeThreshold int
	// HalfOpenMaxCalls is the probe budget in half-open state.
	HalfOpenMaxCalls int
	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration
	// MonitoringPeriod bounds the sliding call history window.
	MonitoringPeriod time.Duration
	// OnStateChange is called when the state changes.
	OnStateChange func(name string, from, to State)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		VolumeThreshold:  5,
		HalfOpenMaxCalls: 3,
		ResetTimeout:     30 * time.Second,
		MonitoringPeriod: time.Minute,
	}
}

// CircuitStats is a point-in-time projection of breaker state.
type CircuitStats struct {
	State         string    `json:"state"`
	TotalCalls    int64     `json:"total_calls"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	FailureRate   float64   `json:"failure_rate"`
	WindowCalls   int       `json:"window_calls"`
	StateChangeAt time.Time `json:"state_change_at"`
	// NextAttemptAt is when the next half-open probe is allowed.
	// Zero unless the breaker is open.
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}

// callRecord is one entry in the sliding call history.
type callRecord struct {
	at      time.Time
	success bool
}

// CircuitBreaker prevents cascading failures by blocking calls to a
// dependency that keeps failing.
//
// Transitions:
//   - Closed → Open: window holds >= VolumeThreshold calls and either the
//     failure count reaches FailureThreshold or the failure rate exceeds
//     50%; below the volume threshold a plain cumulative failure count
//     against FailureThreshold applies.
//   - Open → HalfOpen: ResetTimeout elapsed, checked lazily on the next
//     state inspection.
//   - HalfOpen → Open: any single probe failure.
//   - HalfOpen → Closed: SuccessThreshold probe successes.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                sync.Mutex
	state             State
	failureCount      int64
	successCount      int64
	totalCalls        int64
	history           []callRecord
	stateChangeAt     time.Time
	halfOpenCalls     int
	halfOpenSuccesses int

	now func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 2
	}
	if config.VolumeThreshold <= 0 {
		config.VolumeThreshold = config.FailureThreshold
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.MonitoringPeriod <= 0 {
		config.MonitoringPeriod = time.Minute
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
	cb.stateChangeAt = cb.now()
	return cb
}

// CanProceed reports whether a request may be attempted now.
// In half-open state an affirmative answer consumes one probe slot.
func (cb *CircuitBreaker) CanProceed() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		return true
	case StateOpen:
		return false
	case StateHalfOpen:
		if cb.halfOpenCalls < cb.config.HalfOpenMaxCalls {
			cb.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// releaseProbe returns a half-open probe slot consumed by CanProceed
// when the permitted request never reached the dependency (for example
// a rate-limit rejection).
func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.appendHistory(now, true)
	cb.totalCalls++
	cb.successCount++

	switch cb.currentState() {
	case StateHalfOpen:
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.SuccessThreshold {
			cb.toState(StateClosed)
		}
	}
}

// RecordFailure records a failed call and applies the trip rules.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	cb.appendHistory(now, false)
	cb.totalCalls++
	cb.failureCount++

	switch cb.currentState() {
	case StateClosed:
		if cb.shouldTrip() {
			cb.toState(StateOpen)
		}
	case StateHalfOpen:
		cb.toState(StateOpen)
	}
}

// Execute runs fn through the breaker, recording the result.
// Returns CircuitOpenError when blocked.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.CanProceed() {
		return &CircuitOpenError{Name: cb.config.Name, RetryAfter: cb.retryAfter()}
	}

	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// State returns the current state, applying any due open → half-open
// transition.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Stats returns the current counters and computed failure rate. The only
// side effect is pruning expired history entries.
func (cb *CircuitBreaker) Stats() CircuitStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.pruneHistory(cb.now())
	state := cb.currentState()

	stats := CircuitStats{
		State:         state.String(),
		TotalCalls:    cb.totalCalls,
		SuccessCount:  cb.successCount,
		FailureCount:  cb.failureCount,
		WindowCalls:   len(cb.history),
		StateChangeAt: cb.stateChangeAt,
	}
	if failures, total := cb.windowCounts(); total > 0 {
		stats.FailureRate = float64(failures) / float64(total)
	}
	if state == StateOpen {
		stats.NextAttemptAt = cb.stateChangeAt.Add(cb.config.ResetTimeout)
	}
	return stats
}

// Reset restores the breaker to closed with all counters zeroed.
// Administrative use only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.toState(StateClosed)
	cb.failureCount = 0
	cb.successCount = 0
	cb.totalCalls = 0
	cb.history = nil
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
}

// retryAfter returns the wait until the next probe is allowed.
func (cb *CircuitBreaker) retryAfter() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return 0
	}
	remaining := cb.config.ResetTimeout - cb.now().Sub(cb.stateChangeAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// currentState applies the lazy open → half-open transition.
// Caller must hold the mutex.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.stateChangeAt) >= cb.config.ResetTimeout {
		cb.toState(StateHalfOpen)
	}
	return cb.state
}

// shouldTrip evaluates the closed-state trip rules over the sliding window.
// Caller must hold the mutex.
func (cb *CircuitBreaker) shouldTrip() bool {
	failures, total := cb.windowCounts()
	if total >= cb.config.VolumeThreshold {
		rate := float64(failures) / float64(total)
		return failures >= cb.config.FailureThreshold || rate > 0.5
	}
	return cb.failureCount >= int64(cb.config.FailureThreshold)
}

// windowCounts returns failure and total counts inside the pruned window.
// Caller must hold the mutex.
func (cb *CircuitBreaker) windowCounts() (failures, total int) {
	for _, rec := range cb.history {
		total++
		if !rec.success {
			failures++
		}
	}
	return failures, total
}

// appendHistory records a call outcome and prunes entries older than the
// monitoring period. Caller must hold the mutex.
func (cb *CircuitBreaker) appendHistory(now time.Time, success bool) {
	cb.pruneHistory(now)
	cb.history = append(cb.history, callRecord{at: now, success: success})
}

// pruneHistory drops records outside the monitoring period.
// Caller must hold the mutex.
func (cb *CircuitBreaker) pruneHistory(now time.Time) {
	cutoff := now.Add(-cb.config.MonitoringPeriod)
	idx := 0
	for idx < len(cb.history) && !cb.history[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		cb.history = append([]callRecord(nil), cb.history[idx:]...)
	}
}

// toState transitions to a new state, resetting per-state counters.
// Caller must hold the mutex.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.stateChangeAt = cb.now()

	switch to {
	case StateClosed:
		cb.failureCount = 0
		cb.halfOpenCalls = 0
		cb.halfOpenSuccesses = 0
	case StateHalfOpen, StateOpen:
		cb.halfOpenCalls = 0
		cb.halfOpenSuccesses = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
