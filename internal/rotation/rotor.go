package rotation

import (
	"errors"
	"sync"
	"time"

	"github.com/solarmarket/creative-rotation/internal/creative"
)

var (
	ErrEmptyRotor     = errors.New("rotor needs at least one creative")
	ErrAlreadyStarted = errors.New("rotor already started")
)

// Rotor cycles through a fixed ordered list of creatives on a timer, one
// rotor per mounted slot instance. Manual Next/Prev advance the index
// without resetting the timer's periodicity. Stop is synchronous: once it
// returns, no further automatic advance happens.
type Rotor struct {
	mu       sync.Mutex
	items    []creative.Creative
	idx      int
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
}

func NewRotor(items []creative.Creative, interval time.Duration) (*Rotor, error) {
	if len(items) == 0 {
		return nil, ErrEmptyRotor
	}

	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Rotor{
		items:    items,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func (r *Rotor) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()

		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	go r.loop()

	return nil
}

func (r *Rotor) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.advance(1)
		}
	}
}

// Stop cancels the timer and waits for the loop to exit, so a tick can
// never fire after Stop returns.
func (r *Rotor) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()

		return
	}
	r.mu.Unlock()

	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}

	<-r.doneCh
}

func (r *Rotor) Current() creative.Creative {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.items[r.idx]
}

func (r *Rotor) Next() creative.Creative {
	return r.advance(1)
}

func (r *Rotor) Prev() creative.Creative {
	return r.advance(-1)
}

func (r *Rotor) advance(step int) creative.Creative {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.items)
	r.idx = ((r.idx+step)%n + n) % n

	return r.items[r.idx]
}
