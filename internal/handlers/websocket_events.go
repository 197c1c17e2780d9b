package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"golang.org/x/time/rate"
)

// EventSubscriber bridges job, progress and export events to WebSocket
// broadcasts, applying the configured whitelist and per-type throttles.
type EventSubscriber struct {
	handler       *WebSocketHandler
	eventService  interfaces.EventService
	logger        arbor.ILogger
	allowedEvents map[string]bool          // Whitelist of events to broadcast (empty = allow all)
	throttlers    map[string]*rate.Limiter // Rate limiters for high-frequency events
}

// NewEventSubscriber creates an event subscriber and registers it for
// every event type the services publish. Filtering and throttling are
// driven by the websocket section of the config.
func NewEventSubscriber(handler *WebSocketHandler, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:      handler,
		eventService: eventService,
		logger:       logger,
	}

	// Empty whitelist means allow all events
	s.allowedEvents = make(map[string]bool)
	if config != nil && len(config.AllowedEvents) > 0 {
		for _, eventType := range config.AllowedEvents {
			s.allowedEvents[eventType] = true
		}
	}

	s.throttlers = make(map[string]*rate.Limiter)
	if config != nil && len(config.ThrottleIntervals) > 0 {
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - throttler disabled")
				continue
			}

			// One event per interval, burst of one
			s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().
				Str("event_type", eventType).
				Str("interval", intervalStr).
				Msg("Throttler initialized for event type")
		}
	}

	if eventService == nil {
		logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions will be skipped")
		return s
	}

	s.SubscribeAll()

	return s
}

// SubscribeAll registers subscriptions for all published event types.
func (s *EventSubscriber) SubscribeAll() {
	if s.eventService == nil {
		s.logger.Warn().Msg("Cannot subscribe to events - eventService is nil")
		return
	}

	// Job lifecycle events all carry the same snapshot payload
	for _, eventType := range []interfaces.EventType{
		interfaces.EventJobCreated,
		interfaces.EventJobStarted,
		interfaces.EventJobPaused,
		interfaces.EventJobResumed,
		interfaces.EventJobCancelled,
		interfaces.EventJobCompleted,
		interfaces.EventJobFailed,
	} {
		s.eventService.Subscribe(eventType, s.handleJobLifecycle)
	}

	s.eventService.Subscribe(interfaces.EventScrapeProgress, s.handleScrapeProgress)
	s.eventService.Subscribe(interfaces.EventCityCompleted, s.handleCityCompleted)

	for _, eventType := range []interfaces.EventType{
		interfaces.EventExportStarted,
		interfaces.EventExportProgress,
		interfaces.EventExportCompleted,
	} {
		s.eventService.Subscribe(eventType, s.handleExportEvent)
	}

	s.logger.Info().Msg("EventSubscriber registered for job lifecycle, progress and export events")
}

// handleJobLifecycle bridges job lifecycle events to job_status broadcasts.
func (s *EventSubscriber) handleJobLifecycle(ctx context.Context, event interfaces.Event) error {
	if !s.shouldBroadcastEvent(string(event.Type)) {
		return nil
	}

	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Invalid job event payload type")
		return nil
	}

	update := JobStatusUpdate{
		JobID:             getString(payload, "job_id"),
		Name:              getString(payload, "name"),
		Status:            getString(payload, "status"),
		Domains:           getStringSlice(payload, "domains"),
		PauseReason:       getString(payload, "pause_reason"),
		CitiesCompleted:   getInt(payload, "cities_completed"),
		TotalCities:       getInt(payload, "total_cities"),
		BusinessesScraped: getInt(payload, "businesses_scraped"),
		TotalBusinesses:   getInt(payload, "total_businesses"),
		Timestamp:         time.Now(),
	}

	s.handler.BroadcastJobStatus(update)
	return nil
}

// handleScrapeProgress bridges per-page progress events to scrape_progress broadcasts.
func (s *EventSubscriber) handleScrapeProgress(ctx context.Context, event interfaces.Event) error {
	if !s.shouldBroadcastEvent(string(interfaces.EventScrapeProgress)) {
		return nil
	}

	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid scrape progress event payload type")
		return nil
	}

	update := ScrapeProgressUpdate{
		JobID:             getString(payload, "job_id"),
		Domain:            getString(payload, "domain"),
		City:              getString(payload, "city"),
		Page:              getInt(payload, "page"),
		BusinessesFound:   getInt(payload, "businesses_found"),
		NewBusinesses:     getInt(payload, "new_businesses"),
		BusinessesScraped: getInt(payload, "businesses_scraped"),
		TotalScraped:      getInt(payload, "total_scraped"),
		CitiesCompleted:   getInt(payload, "cities_completed"),
		TotalCities:       getInt(payload, "total_cities"),
		Timestamp:         time.Now(),
	}

	s.handler.BroadcastScrapeProgress(update)
	return nil
}

// handleCityCompleted bridges city completion events to city_completed broadcasts.
func (s *EventSubscriber) handleCityCompleted(ctx context.Context, event interfaces.Event) error {
	if !s.shouldBroadcastEvent(string(interfaces.EventCityCompleted)) {
		return nil
	}

	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Msg("Invalid city completed event payload type")
		return nil
	}

	update := CityCompletedUpdate{
		JobID:           getString(payload, "job_id"),
		City:            getString(payload, "city"),
		CitiesCompleted: getInt(payload, "cities_completed"),
		TotalCities:     getInt(payload, "total_cities"),
		Timestamp:       time.Now(),
	}

	s.handler.BroadcastCityCompleted(update)
	return nil
}

// handleExportEvent bridges export lifecycle and progress events to
// export_status broadcasts.
func (s *EventSubscriber) handleExportEvent(ctx context.Context, event interfaces.Event) error {
	if !s.shouldBroadcastEvent(string(event.Type)) {
		return nil
	}

	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Invalid export event payload type")
		return nil
	}

	update := ExportStatusUpdate{
		ExportID:        getString(payload, "export_id"),
		Name:            getString(payload, "name"),
		Status:          getString(payload, "status"),
		TotalRecords:    getInt(payload, "total_records"),
		ExportedRecords: getInt(payload, "exported_records"),
		FailedRecords:   getInt(payload, "failed_records"),
		Error:           getString(payload, "error_message"),
		Timestamp:       time.Now(),
	}

	s.handler.BroadcastExportStatus(update)
	return nil
}

// shouldBroadcastEvent checks the whitelist and the per-type throttle.
func (s *EventSubscriber) shouldBroadcastEvent(eventType string) bool {
	if len(s.allowedEvents) > 0 && !s.allowedEvents[eventType] {
		return false
	}

	if limiter, ok := s.throttlers[eventType]; ok {
		if !limiter.Allow() {
			s.logger.Debug().
				Str("event_type", eventType).
				Msg("Event throttled - rate limit exceeded")
			return false
		}
	}

	return true
}
