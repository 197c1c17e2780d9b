package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventJobCreated      EventType = "job_created"
	EventJobStarted      EventType = "job_started"
	EventJobPaused       EventType = "job_paused"
	EventJobResumed      EventType = "job_resumed"
	EventJobCancelled    EventType = "job_cancelled"
	EventJobCompleted    EventType = "job_completed"
	EventJobFailed       EventType = "job_failed"
	EventScrapeProgress  EventType = "scrape_progress"
	EventCityCompleted   EventType = "city_completed"
	EventExportStarted   EventType = "export_started"
	EventExportProgress  EventType = "export_progress"
	EventExportCompleted EventType = "export_completed"
)

// Event represents a system event
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages the in-process pub/sub bus. Subscriptions last
// for the life of the process.
type EventService interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish fans an event out to all subscribers without waiting
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes an event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close drops all subscriptions
	Close() error
}
