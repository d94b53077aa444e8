package pipeline

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrNoEntryNode is returned when no declared node is free of
	// upstreams to receive source records.
	ErrNoEntryNode = errors.New("pipeline: descriptor has no entry node")
	// ErrMultipleEntryNodes is returned when the entry point is
	// ambiguous.
	ErrMultipleEntryNodes = errors.New("pipeline: descriptor has more than one entry node")
	// ErrTerminated is returned by Push after termination has begun.
	ErrTerminated = errors.New("pipeline: already terminated")
)

type errorChans struct {
	mu   sync.Mutex
	list []*errorChan
}

func (ec *errorChans) add(errChan *errorChan) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.list = append(ec.list, errChan)
}

type errorChan struct {
	c    <-chan error
	name string
}

func newErrorChan(name string, c <-chan error) *errorChan {
	return &errorChan{c: c, name: name}
}

// mergeErrors merges multiple channels of errors.
// Based on https://blog.golang.org/pipelines.
func mergeErrors(cs ...*errorChan) <-chan error {
	var wg sync.WaitGroup
	// The output channel has capacity for one error per node so copies
	// never block even if the consumer returns early.
	out := make(chan error, len(cs))

	output := func(c *errorChan) {
		defer wg.Done()
		if c.c == nil {
			return
		}
		for n := range c.c {
			out <- errors.Wrap(n, c.name)
		}
	}
	wg.Add(len(cs))
	for _, c := range cs {
		go output(c)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// waitForNodes waits for results from all node error channels and
// returns the first error seen.
func waitForNodes(errs ...*errorChan) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}
