package engine

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
)

// Pool is a bounded, key-partitioned worker pool. Jobs sharing a partition
// key run in submission order on the same worker, which gives the
// per-correlation-key ordering the pipeline needs. Submission never blocks:
// a full partition rejects the job instead.
type Pool struct {
	queues  []chan poolJob
	handler func(context.Context, interface{})
	wg      sync.WaitGroup
}

type poolJob struct {
	payload interface{}
}

func NewPool(workers, depth int, handler func(context.Context, interface{})) *Pool {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}
	queues := make([]chan poolJob, workers)
	for i := range queues {
		queues[i] = make(chan poolJob, depth)
	}
	return &Pool{queues: queues, handler: handler}
}

// Start launches the workers. They drain their queues until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for _, q := range p.queues {
		p.wg.Add(1)
		go func(q chan poolJob) {
			defer p.wg.Done()
			for {
				select {
				case job := <-q:
					p.handler(ctx, job.payload)
				case <-ctx.Done():
					return
				}
			}
		}(q)
	}
}

// Submit enqueues payload on the partition owned by key. Returns false when
// the partition is saturated; the caller has already acknowledged the
// webhook, so the delivery is dropped with a diagnostic.
func (p *Pool) Submit(key string, payload interface{}) bool {
	h := fnv.New32a()
	h.Write([]byte(key))
	q := p.queues[h.Sum32()%uint32(len(p.queues))]

	select {
	case q <- poolJob{payload: payload}:
		return true
	default:
		log.Printf("Worker pool saturated, dropping job for key %s", key)
		return false
	}
}

// Wait blocks until all workers have exited after their context is cancelled.
func (p *Pool) Wait() {
	p.wg.Wait()
}
