// Package pipeline runs a DAG of processing nodes over bounded queues.
//
// Each node gets a fixed worker pool sized by its ThreadAllocation
// share. Queues block the producer when full and the consumer when
// empty, so backpressure propagates to the source. No record order is
// guaranteed end to end; the sink treats records as an unordered
// multiset. Termination is cooperative: intake stops, every in-flight
// record runs to completion, sinks flush, and only then are final
// statistics collected.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/basewind/basewind/pkg/read"
	"github.com/basewind/basewind/pkg/stats"
)

type runtimeNode struct {
	node       Node
	in         chan *read.Record
	downstream []*runtimeNode
	// producers counts upstream worker pools (plus the source for the
	// entry node); the input channel closes when it reaches zero.
	producers atomic.Int32
}

func (rn *runtimeNode) producerDone() {
	if rn.producers.Add(-1) == 0 {
		close(rn.in)
	}
}

// Pipeline is a live graph of running nodes.
type Pipeline struct {
	nodes     []*runtimeNode
	entry     *runtimeNode
	errcList  *errorChans
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time

	// intakeMu serialises Push against Terminate's close of the entry
	// queue; a send racing the close would panic.
	intakeMu   sync.Mutex
	closeEntry sync.Once
	terminated atomic.Bool
}

// New materialises a descriptor into a running pipeline: every node's
// queue is allocated and its worker pool started. The descriptor must
// not be reused afterwards.
func New(ctx context.Context, desc *Descriptor, opts ...Option) (*Pipeline, error) {
	if desc == nil || len(desc.decls) == 0 {
		return nil, errors.New("pipeline: empty descriptor")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dCtx, cancel := context.WithCancel(ctx)
	p := &Pipeline{
		errcList:  &errorChans{},
		ctx:       dCtx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	p.nodes = make([]*runtimeNode, len(desc.decls))
	for i, decl := range desc.decls {
		p.nodes[i] = &runtimeNode{
			node: decl.node,
			in:   make(chan *read.Record, cfg.queueCapacity),
		}
	}
	for i, decl := range desc.decls {
		for _, up := range decl.upstreams {
			upNode := p.nodes[up]
			upNode.downstream = append(upNode.downstream, p.nodes[i])
			p.nodes[i].producers.Add(1)
		}
	}

	for _, rn := range p.nodes {
		if rn.producers.Load() == 0 {
			if p.entry != nil {
				cancel()
				return nil, ErrMultipleEntryNodes
			}
			p.entry = rn
		}
	}
	if p.entry == nil {
		cancel()
		return nil, ErrNoEntryNode
	}
	// The source is the entry node's only producer until Terminate.
	p.entry.producers.Add(1)

	for _, rn := range p.nodes {
		p.startNode(rn)
	}
	return p, nil
}

func (p *Pipeline) startNode(rn *runtimeNode) {
	errC := make(chan error, 1)
	p.errcList.add(newErrorChan(rn.node.Name(), errC))

	go func() {
		defer close(errC)
		grp, dCtx := errgroup.WithContext(p.ctx)
		workers := rn.node.Workers()
		if workers < 1 {
			workers = 1
		}
		for w := 0; w < workers; w++ {
			grp.Go(func() error {
				return p.work(dCtx, rn)
			})
		}
		err := grp.Wait()
		if err == nil {
			if fl, ok := rn.node.(Flusher); ok {
				err = errors.Wrap(fl.Flush(p.ctx), "flush")
			}
		}
		// Downstream queues close only after this pool can no longer
		// produce, flush included.
		for _, d := range rn.downstream {
			d.producerDone()
		}
		if err != nil {
			errC <- err
			// A dead stage would otherwise stall its upstreams forever.
			p.cancel()
		}
	}()
}

func (p *Pipeline) work(ctx context.Context, rn *runtimeNode) error {
	for {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), rn.node.Name())
		case rec, ok := <-rn.in:
			if !ok {
				return nil
			}
			outs, err := rn.node.Process(ctx, rec)
			if err != nil {
				return errors.Wrap(err, rn.node.Name())
			}
			for _, out := range outs {
				// All copies are taken before the first send: ownership of
				// the original moves with that send, so no clone may read
				// it afterwards. Secondary branches get their own copy; no
				// two nodes may mutate one record concurrently.
				msgs := make([]*read.Record, len(rn.downstream))
				for i := range rn.downstream {
					if i == 0 {
						msgs[i] = out
					} else {
						msgs[i] = out.Clone()
					}
				}
				for i, d := range rn.downstream {
					select {
					case <-ctx.Done():
						return errors.Wrap(ctx.Err(), rn.node.Name())
					case d.in <- msgs[i]:
					}
				}
			}
		}
	}
}

// Push hands a record to the entry node, blocking while its queue is
// full. It fails once the pipeline is cancelled or terminated. Push is
// safe to call concurrently with Terminate.
func (p *Pipeline) Push(ctx context.Context, rec *read.Record) error {
	p.intakeMu.Lock()
	defer p.intakeMu.Unlock()
	if p.terminated.Load() {
		return ErrTerminated
	}
	select {
	case <-p.ctx.Done():
		return errors.Wrap(p.ctx.Err(), "pipeline: push")
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "pipeline: push")
	case p.entry.in <- rec:
		return nil
	}
}

// NodeRef returns the node declared with the given handle, for direct
// calls outside the record flow (header writes, resume injection).
func (p *Pipeline) NodeRef(h NodeHandle) Node {
	return p.nodes[h].node
}

// Reporters returns one stats reporter per node for the sampler.
func (p *Pipeline) Reporters() []stats.Reporter {
	reps := make([]stats.Reporter, 0, len(p.nodes))
	for _, rn := range p.nodes {
		block := rn.node.StatsBlock()
		if block == nil {
			continue
		}
		reps = append(reps, block.Snapshot)
	}
	return reps
}

// Stats returns the merged snapshot across all nodes.
func (p *Pipeline) Stats() stats.Snapshot {
	merged := make(stats.Snapshot)
	for _, rep := range p.Reporters() {
		merged.Merge(rep())
	}
	return merged
}

// Terminate stops intake, waits until every queue has drained, every
// worker has returned and every sink has flushed, then returns the
// final merged statistics. Node failures (including sink I/O errors)
// surface here.
func (p *Pipeline) Terminate(ctx context.Context) (stats.Snapshot, error) {
	p.intakeMu.Lock()
	p.terminated.Store(true)
	p.closeEntry.Do(func() { p.entry.producerDone() })
	p.intakeMu.Unlock()
	defer p.cancel()

	done := make(chan error, 1)
	go func() { done <- waitForNodes(p.errcList.list...) }()

	select {
	case <-ctx.Done():
		p.cancel()
		<-done
		return p.Stats(), errors.Wrap(ctx.Err(), "pipeline: terminate")
	case err := <-done:
		return p.Stats(), err
	}
}
