package scaffolder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// EventStreamer delivers the events of one task.
type EventStreamer interface {
	StreamEvents(ctx context.Context, taskID string, fn func(Event) bool) error
}

// LocationRecorder persists a catalog location registered by a task.
type LocationRecorder interface {
	Add(ctx context.Context, taskID, location, kind string) error
}

// Supervisor owns the background consumers of task event streams, one per
// task id. A consumer outlives the request that started it and stops on a
// terminal event, a stream failure or Shutdown.
type Supervisor struct {
	streamer  EventStreamer
	locations LocationRecorder
	pattern   *regexp.Regexp
	logger    *slog.Logger

	mu        sync.Mutex
	consumers map[string]*consumer
	closed    bool
	wg        sync.WaitGroup
}

type consumer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor returns a supervisor appending a location whenever a log
// message matches pattern. The first capture group is the location.
func NewSupervisor(streamer EventStreamer, locations LocationRecorder, pattern string) (*Supervisor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid registered-entity pattern: %w", err)
	}

	if re.NumSubexp() < 1 {
		return nil, errors.New("registered-entity pattern needs a capture group for the location")
	}

	return &Supervisor{
		streamer:  streamer,
		locations: locations,
		pattern:   re,
		logger:    slog.Default(),
		consumers: make(map[string]*consumer),
	}, nil
}

// WithLogger sets the logger for the supervisor
func (s *Supervisor) WithLogger(logger *slog.Logger) *Supervisor {
	if logger != nil {
		s.logger = logger
	}

	return s
}

// Start launches the consumer of taskID. Starting a task that already has a
// running consumer is a no-op.
func (s *Supervisor) Start(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("supervisor is shut down")
	}

	if _, ok := s.consumers[taskID]; ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &consumer{cancel: cancel, done: make(chan struct{})}
	s.consumers[taskID] = c

	s.wg.Add(1)

	go s.consume(ctx, taskID, c)

	s.logger.Debug("started task event consumer", "task_id", taskID)

	return nil
}

// Running reports whether taskID has a live consumer.
func (s *Supervisor) Running(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.consumers[taskID]

	return ok
}

// Active returns the number of live consumers.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.consumers)
}

// Wait blocks until the consumer of taskID exits or ctx is done.
func (s *Supervisor) Wait(ctx context.Context, taskID string) error {
	s.mu.Lock()
	c, ok := s.consumers[taskID]
	s.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every consumer and waits for them to exit.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true

	for _, c := range s.consumers {
		c.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("task event consumers stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) consume(ctx context.Context, taskID string, c *consumer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task event consumer panicked", "task_id", taskID, "panic", r)
		}

		c.cancel()

		s.mu.Lock()
		delete(s.consumers, taskID)
		s.mu.Unlock()

		close(c.done)
		s.wg.Done()
	}()

	err := s.streamer.StreamEvents(ctx, taskID, func(ev Event) bool {
		return s.handle(ctx, taskID, ev)
	})

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		s.logger.Debug("task event consumer cancelled", "task_id", taskID)
	default:
		s.logger.Warn("task event stream failed", "task_id", taskID, "error", err)
	}
}

// handle processes one event and reports whether the consumer should stop.
func (s *Supervisor) handle(ctx context.Context, taskID string, ev Event) bool {
	switch ev.Type {
	case EventLog:
		m := s.pattern.FindStringSubmatch(ev.Body.Message)
		if m == nil || m[1] == "" {
			return false
		}

		if err := s.locations.Add(ctx, taskID, m[1], ""); err != nil {
			s.logger.Error("failed to record task location", "task_id", taskID, "location", m[1], "error", err)
			return false
		}

		s.logger.Info("recorded task location", "task_id", taskID, "location", m[1])

		return false

	case EventError:
		s.logger.Warn("task reported an error", "task_id", taskID, "message", ev.Body.Message)
		return true

	case EventCompletion, EventCancelled:
		s.logger.Info("task finished", "task_id", taskID, "event", ev.Type)
		return true
	}

	return false
}
