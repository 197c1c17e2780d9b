package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
)

// Service is an in-process pub/sub bus. Publishers never block on
// subscribers: async fan-out runs each handler on its own goroutine.
type Service struct {
	mu       sync.RWMutex
	handlers map[interfaces.EventType][]interfaces.EventHandler
	logger   arbor.ILogger
}

// NewService creates an event bus with no subscriptions.
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		handlers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers handler for eventType. Subscriptions last until
// Close.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[eventType] = append(s.handlers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.handlers[eventType])).
		Msg("Event handler subscribed")

	return nil
}

// Publish fans the event out to every subscriber without waiting.
// Handler errors are logged, handler panics are contained by SafeGo.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	handlers := s.snapshot(event.Type)
	if len(handlers) == 0 {
		return nil
	}

	s.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", len(handlers)).
		Msg("Publishing event")

	for _, handler := range handlers {
		h := handler
		common.SafeGo(s.logger, "publishEvent:"+string(event.Type), func() {
			if err := h(ctx, event); err != nil {
				s.logger.Error().
					Err(err).
					Str("event_type", string(event.Type)).
					Msg("Event handler failed")
			}
		})
	}

	return nil
}

// PublishSync fans the event out and waits for every handler, joining
// their errors.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers := s.snapshot(event.Type)
	if len(handlers) == 0 {
		return nil
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, handler := range handlers {
		wg.Add(1)
		go func(h interfaces.EventHandler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(handler)
	}
	wg.Wait()

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		s.logger.Error().
			Err(joined).
			Str("event_type", string(event.Type)).
			Int("failed_handlers", len(errs)).
			Msg("Event handlers failed")
		return fmt.Errorf("%d of %d handlers failed: %w", len(errs), len(handlers), joined)
	}
	return nil
}

// snapshot returns the current handler list for t. The slice header is
// safe to range over without the lock because Subscribe only appends.
func (s *Service) snapshot(t interfaces.EventType) []interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handlers[t]
}

// Close drops all subscriptions. Events published afterwards fan out
// to nobody.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, hs := range s.handlers {
		count += len(hs)
	}
	s.handlers = make(map[interfaces.EventType][]interfaces.EventHandler)

	s.logger.Info().Int("subscriptions_dropped", count).Msg("Event service closed")
	return nil
}
