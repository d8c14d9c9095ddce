package runtime

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

type worker struct {
	name   string
	run    func(context.Context) error
	closeF func() error
}

// Supervisor starts a set of long-running services and shuts them down
// in reverse registration order when the context is cancelled.
type Supervisor struct {
	mu      sync.Mutex
	workers []worker
	wg      sync.WaitGroup
	errOnce sync.Once
	err     error
}

func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

func (s *Supervisor) Add(name string, run func(context.Context) error, closeF func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, worker{name: name, run: run, closeF: closeF})
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := w.run(ctx); err != nil {
				log.WithError(err).WithField("worker", w.name).Error("Worker exited with error")
				s.errOnce.Do(func() { s.err = err })
			}
		}()
	}
	return nil
}

// Wait blocks until ctx is cancelled, then closes workers in reverse
// order and returns the first worker error, if any.
func (s *Supervisor) Wait(ctx context.Context) error {
	<-ctx.Done()
	for i := len(s.workers) - 1; i >= 0; i-- {
		if s.workers[i].closeF != nil {
			if err := s.workers[i].closeF(); err != nil {
				log.WithError(err).WithField("worker", s.workers[i].name).Warn("Worker close failed")
			}
		}
	}
	s.wg.Wait()
	return s.err
}
