package playback

import (
	"context"
	"sync"
	"time"
)

// DefaultSampleInterval is the progress polling interval.
const DefaultSampleInterval = time.Second

// Sampler calls a tick function at a fixed interval between Start and Stop.
// Every Start begins a new generation; ticks carry the generation they were
// scheduled for so the receiver can discard ticks from a superseded run.
type Sampler struct {
	mu       sync.Mutex
	interval time.Duration
	tick     func(gen uint64)
	cancel   context.CancelFunc
	gen      uint64
}

// NewSampler creates a stopped sampler.
func NewSampler(interval time.Duration, tick func(gen uint64)) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{
		interval: interval,
		tick:     tick,
	}
}

// Start (re)starts the sampler and returns the new generation.
func (s *Sampler) Start() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.run(ctx, s.gen)
	return s.gen
}

// Stop halts the sampler. It does not wait for an in-flight tick.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

// Running reports whether the sampler is started.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Current reports whether gen is the active generation.
func (s *Sampler) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil && s.gen == gen
}

func (s *Sampler) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(gen)
		}
	}
}
