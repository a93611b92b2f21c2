package rtree

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// resultSink collects matches from concurrently running search tasks.
type resultSink[T any] struct {
	mu    sync.Mutex
	items []T
}

func (s *resultSink[T]) add(v T) {
	s.mu.Lock()
	s.items = append(s.items, v)
	s.mu.Unlock()
}

func (s *resultSink[T]) results() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// searchTask searches one subtree below the root sequentially.
type searchTask[T any] struct {
	ctx   context.Context
	tree  *Tree[T]
	start nodeID
	query BBox
	sink  *resultSink[T]
	done  chan struct{}
	err   error
}

func (s *searchTask[T]) run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("rtree: search of node %d failed: %v", s.start, r)
		}
	}()
	s.err = s.search(s.start)
}

func (s *searchTask[T]) search(id nodeID) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	n := &s.tree.nodes[id]
	if n.leaf {
		collect(n, s.query, s.sink)
		return nil
	}
	for _, e := range n.entries {
		if !s.query.qualifies(e.box) {
			continue
		}
		if err := s.search(e.child); err != nil {
			return err
		}
	}
	return nil
}

func (s *searchTask[T]) wait() error {
	<-s.done
	return s.err
}

// collect adds the records of leaf n whose box equals the query exactly.
func collect[T any](n *node[T], query BBox, sink *resultSink[T]) {
	for _, e := range n.entries {
		if query.qualifies(e.box) && e.box == query {
			sink.add(e.value)
		}
	}
}

// Search returns the values stored under the coordinate pair (x, y), in no
// particular order.
func (t *Tree[T]) Search(ctx context.Context, x, y float64) ([]T, error) {
	return t.SearchBox(ctx, PointBox(x, y))
}

// SearchBox returns the values whose box equals q. Only anchored boxes can be
// stored, so any other q finds nothing. Subtrees under the root
// are searched in parallel on the tree's worker pool; the call returns once
// all of them are done. Matches found before a task failed are returned
// together with the joined task errors.
func (t *Tree[T]) SearchBox(ctx context.Context, q BBox) ([]T, error) {
	if !q.Anchored() {
		return nil, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	sink := &resultSink[T]{}
	root := &t.nodes[t.root]
	if root.leaf {
		collect(root, q, sink)
		return sink.results(), nil
	}

	var (
		tasks []*searchTask[T]
		errs  []error
	)
	for _, e := range root.entries {
		if !q.qualifies(e.box) {
			continue
		}
		task := &searchTask[T]{
			ctx:   ctx,
			tree:  t,
			start: e.child,
			query: q,
			sink:  sink,
			done:  make(chan struct{}),
		}
		if err := t.pool.submit(ctx, task.run); err != nil {
			errs = append(errs, err)
			break
		}
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		if err := task.wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return sink.results(), errors.Join(errs...)
}

// Scan calls fn for every stored value, in tree order, until fn returns
// false.
func (t *Tree[T]) Scan(fn func(T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.scan(t.root, fn)
}

func (t *Tree[T]) scan(id nodeID, fn func(T) bool) bool {
	for _, e := range t.nodes[id].entries {
		if e.isChild() {
			if !t.scan(e.child, fn) {
				return false
			}
			continue
		}
		if !fn(e.value) {
			return false
		}
	}
	return true
}
