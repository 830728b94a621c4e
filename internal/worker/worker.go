// Package worker runs fire-and-forget tasks on a bounded number of
// goroutines.
package worker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/lu-zhengda/mailacct/internal/store"
)

var log = logrus.WithField("component", "worker")

// Pool runs at most size tasks at a time. Submit never blocks.
type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

var _ store.Executor = (*Pool)(nil)

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Submit(task func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			log.WithError(err).Warn("failed to acquire worker slot")
			return
		}
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("task panicked")
			}
		}()
		task()
	}()
}

// Wait blocks until every submitted task has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
