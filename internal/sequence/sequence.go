// Package sequence allocates batch ids. Every generator is monotonic and
// safe for concurrent callers, so two concurrent batches never share an id.
package sequence

import (
	"context"
	"sync/atomic"
	"time"
)

type Generator interface {
	Next(ctx context.Context) (int64, error)
}

// Counter is a named persistent counter, such as the graph store's
// :Sequence nodes.
type Counter interface {
	NextValue(ctx context.Context, name string) (int64, error)
}

type counterGenerator struct {
	counter Counter
	name    string
}

// FromCounter draws ids from a named persistent counter.
func FromCounter(c Counter, name string) Generator {
	return &counterGenerator{counter: c, name: name}
}

func (g *counterGenerator) Next(ctx context.Context) (int64, error) {
	return g.counter.NextValue(ctx, g.name)
}

// Local is an in-process counter. It is seeded from the wall clock in
// microseconds so ids keep increasing across restarts of a single instance;
// it does not coordinate between instances.
type Local struct {
	last atomic.Int64
}

func NewLocal() *Local {
	return NewLocalFrom(time.Now().UnixMicro())
}

func NewLocalFrom(seed int64) *Local {
	l := &Local{}
	l.last.Store(seed)
	return l
}

func (l *Local) Next(context.Context) (int64, error) {
	return l.last.Add(1), nil
}
