package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen rejects calls while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls beyond the half-open probe quota.
	ErrTooManyRequests = errors.New("too many requests")
)

// State is the breaker's position: closed (passing), open (rejecting),
// or half-open (probing).
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Counts are the rolling call statistics inside one epoch. They reset
// on every state change and on the closed-state interval tick.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Settings tunes a breaker. Zero fields take the defaults below.
type Settings struct {
	// MaxRequests caps concurrent probes in the half-open state.
	MaxRequests uint32
	// Interval is how often closed-state counts reset.
	Interval time.Duration
	// Timeout is how long the open state lasts before probing.
	Timeout time.Duration
	// ReadyToTrip decides, after a closed-state failure, whether the
	// breaker opens. Defaults to six consecutive failures.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to State)
}

// Breaker guards a downstream dependency. Calls run through Execute;
// the breaker opens when ReadyToTrip fires, rejects while open, and
// re-closes after MaxRequests consecutive successful probes.
type Breaker struct {
	name     string
	settings Settings

	mu     sync.Mutex
	state  State
	counts Counts
	// expiry ends the current epoch: the next counts reset when
	// closed, the next probe window when open.
	expiry time.Time
}

// New builds a closed breaker.
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	return &Breaker{
		name:     name,
		settings: settings,
		expiry:   time.Now().Add(settings.Interval),
	}
}

// Name returns the breaker's label.
func (b *Breaker) Name() string { return b.name }

// State reports the current position, advancing open→half-open if the
// timeout has lapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, _ := b.advance(time.Now())
	return state
}

// Counts returns a copy of the rolling statistics.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs fn if the breaker admits it. A panic inside fn counts
// as a failure and re-panics.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	epoch, err := b.admit()
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.settle(epoch, false)
			panic(e)
		}
	}()

	result, err := fn()
	b.settle(epoch, err == nil)
	return result, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, epoch := b.advance(time.Now())
	switch {
	case state == StateOpen:
		return epoch, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return epoch, ErrTooManyRequests
	}
	b.counts.Requests++
	return epoch, nil
}

// settle records an outcome. Results from a previous epoch are stale
// and dropped: the state that admitted them no longer exists.
func (b *Breaker) settle(admitted uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, epoch := b.advance(now)
	if epoch != admitted {
		return
	}

	if !success {
		switch state {
		case StateClosed:
			b.counts.TotalFailures++
			b.counts.ConsecutiveFailures++
			b.counts.ConsecutiveSuccesses = 0
			if b.settings.ReadyToTrip(b.counts) {
				b.transition(StateOpen, now)
			}
		case StateHalfOpen:
			// A failed probe reopens immediately.
			b.transition(StateOpen, now)
		}
		return
	}

	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0
	if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
		b.transition(StateClosed, now)
	}
}

// advance rolls time-driven transitions and returns the state plus the
// epoch stamp that identifies it. Callers hold b.mu.
func (b *Breaker) advance(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.counts = Counts{}
			b.expiry = now.Add(b.settings.Interval)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}
	return b.state, uint64(b.expiry.UnixNano())
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.counts = Counts{}

	switch to {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
