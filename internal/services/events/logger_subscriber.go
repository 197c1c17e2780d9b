package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/indago/internal/interfaces"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		// Extract common fields from payload if available
		var jobID, exportID, domain, city, status string
		if payload, ok := event.Payload.(map[string]interface{}); ok {
			if id, ok := payload["job_id"].(string); ok {
				jobID = id
			}
			if id, ok := payload["export_id"].(string); ok {
				exportID = id
			}
			if d, ok := payload["domain"].(string); ok {
				domain = d
			}
			if c, ok := payload["city"].(string); ok {
				city = c
			}
			if s, ok := payload["status"].(string); ok {
				status = s
			}
		}

		// Log event with structured fields
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		if jobID != "" {
			logEvent = logEvent.Str("job_id", jobID)
		}
		if exportID != "" {
			logEvent = logEvent.Str("export_id", exportID)
		}
		if domain != "" {
			logEvent = logEvent.Str("domain", domain)
		}
		if city != "" {
			logEvent = logEvent.Str("city", city)
		}
		if status != "" {
			logEvent = logEvent.Str("status", status)
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	// Subscribe to all event types
	eventTypes := []interfaces.EventType{
		interfaces.EventJobCreated,
		interfaces.EventJobStarted,
		interfaces.EventJobPaused,
		interfaces.EventJobResumed,
		interfaces.EventJobCancelled,
		interfaces.EventJobCompleted,
		interfaces.EventJobFailed,
		interfaces.EventScrapeProgress,
		interfaces.EventCityCompleted,
		interfaces.EventExportStarted,
		interfaces.EventExportProgress,
		interfaces.EventExportCompleted,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Info().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
