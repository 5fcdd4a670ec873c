// internal/common/camunda/worker.go
package camunda

import (
	"fmt"

	"tax-matching-workers/internal/common/logger"
)

// JobHandler is a Zeebe job worker that opens and closes its own
// subscription.
type JobHandler interface {
	GetTaskType() string
	IsEnabled() bool
	Register() error
	Close()
}

// WorkerSet starts and stops a group of job handlers together.
type WorkerSet struct {
	handlers []JobHandler
	started  []JobHandler
	logger   logger.Logger
}

func NewWorkerSet(log logger.Logger) *WorkerSet {
	return &WorkerSet{logger: log.Named("camunda.workers")}
}

func (s *WorkerSet) Add(h JobHandler) {
	s.handlers = append(s.handlers, h)
}

// Start registers every enabled handler. If one fails, the handlers already
// registered are closed again.
func (s *WorkerSet) Start() error {
	for _, h := range s.handlers {
		if !h.IsEnabled() {
			s.logger.Info("worker disabled", map[string]interface{}{
				"taskType": h.GetTaskType(),
			})
			continue
		}
		if err := h.Register(); err != nil {
			s.Stop()
			return fmt.Errorf("register %s: %w", h.GetTaskType(), err)
		}
		s.started = append(s.started, h)
	}

	s.logger.Info("workers started", map[string]interface{}{
		"count": len(s.started),
	})
	return nil
}

// Stop closes started handlers in reverse order.
func (s *WorkerSet) Stop() {
	for i := len(s.started) - 1; i >= 0; i-- {
		h := s.started[i]
		s.logger.Info("stopping worker", map[string]interface{}{
			"taskType": h.GetTaskType(),
		})
		h.Close()
	}
	s.started = nil
}

func (s *WorkerSet) Running() int {
	return len(s.started)
}

// TaskTypes lists the task types of every added handler, enabled or not.
func (s *WorkerSet) TaskTypes() []string {
	out := make([]string, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h.GetTaskType())
	}
	return out
}
