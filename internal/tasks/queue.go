package tasks

import (
	"fmt"
	"sync"

	"github.com/roach88/rulebridge/internal/host"
	"github.com/roach88/rulebridge/internal/store"
)

type step struct {
	id   int64
	args host.List
	seq  int64
}

type pipeline struct {
	token string
	kind  store.PipelineKind
	seq   int64
	steps []step

	// busy is set while one of the pipeline's steps executes.
	busy bool
}

// pipelineQueue is a thread-safe FIFO of pipelines.
//
// next pops the first step of the first pipeline that is not busy, and a
// pipeline leaves the queue once its last step is popped. A pipeline with
// steps left stays busy until finish, so its steps never overlap.
//
// The queue uses a channel for signaling so Run can wait on it alongside
// context cancellation.
type pipelineQueue struct {
	mu        sync.Mutex
	pipelines []*pipeline
	byStep    map[int64]*pipeline
	closed    bool
	signal    chan struct{} // buffered, size 1
}

func newPipelineQueue() *pipelineQueue {
	return &pipelineQueue{
		byStep: make(map[int64]*pipeline),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a pipeline to the back of the queue.
// Returns false if the queue is closed.
func (q *pipelineQueue) Enqueue(p *pipeline) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.push(p)
	return true
}

func (q *pipelineQueue) push(p *pipeline) {
	q.pipelines = append(q.pipelines, p)
	for _, st := range p.steps {
		q.byStep[st.id] = p
	}

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Group moves the given singleton steps, in order, into a new pipeline at
// the back of the queue. Nothing moves unless every id is a queued singleton.
func (q *pipelineQueue) Group(p *pipeline, ids []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		owner, ok := q.byStep[id]
		if !ok {
			return &StepError{Code: ErrCodeUnknownStep, Message: "step is not queued", StepID: id}
		}
		if owner.kind != store.KindSingle {
			return &StepError{Code: ErrCodeUnknownStep, Message: "step already belongs to pipeline " + owner.token, StepID: id}
		}
		if seen[id] {
			return &StepError{Code: ErrCodeUnknownStep, Message: "step listed twice", StepID: id}
		}
		seen[id] = true
	}

	for _, id := range ids {
		owner := q.byStep[id]
		p.steps = append(p.steps, owner.steps[0])
		q.remove(owner)
	}
	q.push(p)
	return nil
}

func (q *pipelineQueue) remove(p *pipeline) {
	for i, cur := range q.pipelines {
		if cur == p {
			q.pipelines[i] = nil
			q.pipelines = append(q.pipelines[:i], q.pipelines[i+1:]...)
			break
		}
	}
	for _, st := range p.steps {
		if q.byStep[st.id] == p {
			delete(q.byStep, st.id)
		}
	}
}

// next pops the first step of the first pipeline that is not busy.
func (q *pipelineQueue) next() (p *pipeline, st step, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, cur := range q.pipelines {
		if cur.busy {
			continue
		}
		st = cur.steps[0]
		cur.steps = cur.steps[1:]
		delete(q.byStep, st.id)

		if len(cur.steps) == 0 {
			q.pipelines[i] = nil
			q.pipelines = append(q.pipelines[:i], q.pipelines[i+1:]...)
		} else {
			cur.busy = true
		}
		return cur, st, true
	}
	return nil, step{}, false
}

// finish clears the busy mark set by next and wakes waiters if the pipeline
// still has steps.
func (q *pipelineQueue) finish(p *pipeline) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p.busy = false
	if len(p.steps) == 0 {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Abort drops the remaining steps of a pipeline and returns them.
func (q *pipelineQueue) Abort(p *pipeline) []step {
	q.mu.Lock()
	defer q.mu.Unlock()

	rest := p.steps
	q.remove(p)
	p.steps = nil
	return rest
}

// Snapshot copies the queued pipelines in execution order.
func (q *pipelineQueue) Snapshot() []Pending {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Pending, len(q.pipelines))
	for i, p := range q.pipelines {
		ids := make([]int64, len(p.steps))
		for j, st := range p.steps {
			ids[j] = st.id
		}
		out[i] = Pending{Token: p.token, Kind: p.kind, Steps: ids}
	}
	return out
}

// Wait returns a channel that signals when pipelines may be available.
func (q *pipelineQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued pipelines.
func (q *pipelineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pipelines)
}

// Closed reports whether Close has been called.
func (q *pipelineQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more pipelines will be enqueued and wakes waiters.
func (q *pipelineQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
