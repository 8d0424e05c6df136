// Package worker runs long operations such as volume imports off the
// caller's goroutine and reports progress, result and errors through
// callbacks.
package worker

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"volumeio/pkg/progress"
)

// Job is a unit of work. It may report progress through the sink.
type Job[T any] func(sink progress.Sink) (T, error)

// Signals are the callbacks delivered for a job. Any of them may be nil.
// Progress can be called from the job's goroutine while it runs; Result or
// Error is called once, followed by Finished.
type Signals[T any] struct {
	Progress func(percent int)
	Result   func(T)
	Error    func(error)
	Finished func()
}

// Pool bounds how many jobs run at once.
type Pool struct {
	sem chan struct{}
	wg  sync.WaitGroup
	log logrus.FieldLogger
}

// NewPool returns a pool running at most n jobs concurrently. n <= 0 uses
// the number of CPUs.
func NewPool(n int, log logrus.FieldLogger) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{sem: make(chan struct{}, n), log: log}
}

// Start schedules job and returns immediately.
func Start[T any](p *Pool, name string, job Job[T], s Signals[T]) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		log := p.log.WithField("job", name)
		log.Debug("job started")

		var sink progress.Sink = progress.Discard
		if s.Progress != nil {
			sink = progress.NewMonotonic(progress.Func(s.Progress))
		}

		res, err := run(job, sink)
		if err != nil {
			log.WithError(err).Warn("job failed")
			if s.Error != nil {
				s.Error(err)
			}
		} else {
			log.Debug("job succeeded")
			if s.Result != nil {
				s.Result(res)
			}
		}
		if s.Finished != nil {
			s.Finished()
		}
	}()
}

func run[T any](job Job[T], sink progress.Sink) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(sink)
}

// Wait blocks until every started job has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
