package stats

import (
	"encoding/json"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultSamplePeriod is the tick interval used by the driver.
const DefaultSamplePeriod = 100 * time.Millisecond

type sample struct {
	At    time.Time `json:"at"`
	Stats Snapshot  `json:"stats"`
}

// Sampler polls every registered reporter at a fixed period and feeds
// the merged snapshot to the callables. It optionally retains a capped
// ring of samples for later dumping.
type Sampler struct {
	period     time.Duration
	reporters  []Reporter
	callables  []Callable
	maxRecords int

	mu      sync.Mutex
	ring    []sample
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewSampler starts the sampling loop. maxRecords of 0 disables sample
// retention.
func NewSampler(period time.Duration, reporters []Reporter, callables []Callable, maxRecords int) *Sampler {
	if period <= 0 {
		period = DefaultSamplePeriod
	}
	s := &Sampler{
		period:     period,
		reporters:  reporters,
		callables:  callables,
		maxRecords: maxRecords,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Sampler) loop() {
	defer close(s.stopped)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	merged := s.collect()
	for _, fn := range s.callables {
		fn(merged)
	}
	if s.maxRecords == 0 {
		return
	}
	s.mu.Lock()
	s.ring = append(s.ring, sample{At: time.Now(), Stats: merged})
	if len(s.ring) > s.maxRecords {
		s.ring = s.ring[len(s.ring)-s.maxRecords:]
	}
	s.mu.Unlock()
}

func (s *Sampler) collect() Snapshot {
	merged := make(Snapshot)
	for _, rep := range s.reporters {
		merged.Merge(rep())
	}
	return merged
}

// Terminate stops the sampling loop and blocks until it has exited.
// Call only after the pipeline is idle so the last readings reflect
// final totals.
func (s *Sampler) Terminate() {
	s.once.Do(func() { close(s.done) })
	<-s.stopped
}

// Dump writes the retained samples as JSON lines. A non-nil filter
// restricts each snapshot to matching counter names.
func (s *Sampler) Dump(w io.Writer, filter *regexp.Regexp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(w)
	for _, smp := range s.ring {
		out := smp
		if filter != nil {
			out = sample{At: smp.At, Stats: make(Snapshot, len(smp.Stats))}
			for k, v := range smp.Stats {
				if filter.MatchString(k) {
					out.Stats[k] = v
				}
			}
		}
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "dump stats sample")
		}
	}
	return nil
}
