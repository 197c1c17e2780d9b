package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/services/events"
)

// dialWebSocket connects a test client and consumes the initial status
// frame so the connection is known to be registered.
func dialWebSocket(t *testing.T, serverURL string) (*websocket.Conn, StatusUpdate) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read initial frame: %v", err)
	}
	if msg.Type != "status" {
		t.Fatalf("Expected initial frame type %q, got %q", "status", msg.Type)
	}

	var status StatusUpdate
	decodePayload(t, msg.Payload, &status)
	return conn, status
}

// decodePayload remarshals a frame payload into a typed struct.
func decodePayload(t *testing.T, payload interface{}, out interface{}) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
}

func TestWebSocketInitialStatus(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(logger)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn, status := dialWebSocket(t, server.URL)
	defer conn.Close()

	if status.Service != "ONLINE" {
		t.Errorf("Expected service ONLINE, got %q", status.Service)
	}
	if status.Database != "CONNECTED" {
		t.Errorf("Expected database CONNECTED, got %q", status.Database)
	}
	if status.ServerInstanceID == "" {
		t.Error("Expected a non-empty server instance ID")
	}
	if status.ServerInstanceID != handler.serverInstanceID {
		t.Errorf("Instance ID mismatch: frame %q, handler %q", status.ServerInstanceID, handler.serverInstanceID)
	}
}

// TestBroadcastFanOut verifies that broadcasts reach every connected
// client without blocking and that disconnects clean up all state.
func TestBroadcastFanOut(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(logger)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	numSubscribers := 5
	initialGoroutines := runtime.NumGoroutine()

	receivedLogs := make([][]LogEntry, numSubscribers)
	var receivedMutex sync.Mutex

	var wg sync.WaitGroup
	wg.Add(numSubscribers)

	subscribers := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conn, _ := dialWebSocket(t, server.URL)
		subscribers[i] = conn

		idx := i
		go func() {
			defer wg.Done()
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))

			for {
				var msg WSMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Type != "log" {
					continue
				}

				var entry LogEntry
				data, err := json.Marshal(msg.Payload)
				if err != nil {
					continue
				}
				if err := json.Unmarshal(data, &entry); err != nil {
					continue
				}

				receivedMutex.Lock()
				receivedLogs[idx] = append(receivedLogs[idx], entry)
				receivedMutex.Unlock()
			}
		}()
	}

	handler.mu.RLock()
	connected := len(handler.clients)
	handler.mu.RUnlock()
	if connected != numSubscribers {
		t.Fatalf("Expected %d connected clients, got %d", numSubscribers, connected)
	}

	testLogs := []struct {
		level   string
		message string
	}{
		{"INFO", "Scrape job started"},
		{"DEBUG", "Fetching page 2"},
		{"WARN", "Rate limited, backing off"},
		{"ERROR", "Extraction failed for city"},
		{"INFO", "Scrape job completed"},
	}

	var sendWg sync.WaitGroup
	sendWg.Add(len(testLogs))
	for _, entry := range testLogs {
		entry := entry
		go func() {
			defer sendWg.Done()
			handler.SendLog(entry.level, entry.message)
		}()
	}
	sendWg.Wait()

	time.Sleep(300 * time.Millisecond)

	for _, conn := range subscribers {
		conn.Close()
	}
	wg.Wait()

	receivedMutex.Lock()
	defer receivedMutex.Unlock()

	for i, logs := range receivedLogs {
		matched := 0
		for _, entry := range logs {
			for _, want := range testLogs {
				if entry.Level == strings.ToLower(want.level) && entry.Message == want.message {
					matched++
					break
				}
			}
		}
		if matched != len(testLogs) {
			t.Errorf("Subscriber %d received %d of %d log frames", i, matched, len(testLogs))
		}
	}

	// Disconnect cleanup should leave no per-client state behind
	deadline := time.Now().Add(2 * time.Second)
	for {
		handler.mu.RLock()
		remaining := len(handler.clients)
		mutexes := len(handler.clientMutex)
		handler.mu.RUnlock()

		if remaining == 0 && mutexes == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Handler still tracking %d clients and %d mutexes after disconnect", remaining, mutexes)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if diff := runtime.NumGoroutine() - initialGoroutines; diff > 2 {
		t.Errorf("Potential goroutine leak: %d goroutines remain", diff)
	}
}

func TestEventSubscriberBridgesJobEvents(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(logger)
	eventService := events.NewService(logger)
	NewEventSubscriber(handler, eventService, logger, &common.WebSocketConfig{})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn, _ := dialWebSocket(t, server.URL)
	defer conn.Close()

	payload := map[string]interface{}{
		"job_id":             "job-1",
		"name":               "Restaurants in Hong Kong",
		"status":             "running",
		"domains":            []string{"yello.hk"},
		"cities_completed":   2,
		"total_cities":       10,
		"businesses_scraped": 140,
		"total_businesses":   0,
	}
	err := eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobStarted,
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read broadcast frame: %v", err)
	}
	if msg.Type != "job_status" {
		t.Fatalf("Expected frame type job_status, got %q", msg.Type)
	}

	var update JobStatusUpdate
	decodePayload(t, msg.Payload, &update)

	if update.JobID != "job-1" {
		t.Errorf("Expected job_id job-1, got %q", update.JobID)
	}
	if update.Status != "running" {
		t.Errorf("Expected status running, got %q", update.Status)
	}
	if len(update.Domains) != 1 || update.Domains[0] != "yello.hk" {
		t.Errorf("Expected domains [yello.hk], got %v", update.Domains)
	}
	if update.CitiesCompleted != 2 || update.TotalCities != 10 {
		t.Errorf("Expected city progress 2/10, got %d/%d", update.CitiesCompleted, update.TotalCities)
	}
	if update.BusinessesScraped != 140 {
		t.Errorf("Expected 140 businesses scraped, got %d", update.BusinessesScraped)
	}
}

// TestEventSubscriberThrottlesScrapeProgress publishes two progress
// events inside one throttle window and expects only the first to
// reach the client.
func TestEventSubscriberThrottlesScrapeProgress(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(logger)
	eventService := events.NewService(logger)
	NewEventSubscriber(handler, eventService, logger, &common.WebSocketConfig{
		ThrottleIntervals: map[string]string{"scrape_progress": "1h"},
	})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn, _ := dialWebSocket(t, server.URL)
	defer conn.Close()

	ctx := context.Background()
	progress := map[string]interface{}{
		"job_id": "job-1",
		"domain": "yello.hk",
		"city":   "Hong Kong",
		"page":   1,
	}
	for i := 0; i < 2; i++ {
		if err := eventService.PublishSync(ctx, interfaces.Event{
			Type:    interfaces.EventScrapeProgress,
			Payload: progress,
		}); err != nil {
			t.Fatalf("PublishSync failed: %v", err)
		}
	}

	// A sentinel frame after the throttled publishes marks the point by
	// which any second progress frame would have arrived.
	if err := eventService.PublishSync(ctx, interfaces.Event{
		Type: interfaces.EventCityCompleted,
		Payload: map[string]interface{}{
			"job_id": "job-1",
			"city":   "Hong Kong",
		},
	}); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first WSMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Failed to read first frame: %v", err)
	}
	if first.Type != "scrape_progress" {
		t.Fatalf("Expected first frame scrape_progress, got %q", first.Type)
	}

	var second WSMessage
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("Failed to read second frame: %v", err)
	}
	if second.Type != "city_completed" {
		t.Errorf("Expected throttled window to drop the second progress frame, got %q", second.Type)
	}
}

func TestEventSubscriberWhitelist(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(logger)
	eventService := events.NewService(logger)
	NewEventSubscriber(handler, eventService, logger, &common.WebSocketConfig{
		AllowedEvents: []string{"job_completed"},
	})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn, _ := dialWebSocket(t, server.URL)
	defer conn.Close()

	ctx := context.Background()
	payload := map[string]interface{}{"job_id": "job-1", "status": "running"}

	if err := eventService.PublishSync(ctx, interfaces.Event{
		Type:    interfaces.EventJobStarted,
		Payload: payload,
	}); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	completed := map[string]interface{}{"job_id": "job-1", "status": "completed"}
	if err := eventService.PublishSync(ctx, interfaces.Event{
		Type:    interfaces.EventJobCompleted,
		Payload: completed,
	}); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if msg.Type != "job_status" {
		t.Fatalf("Expected frame type job_status, got %q", msg.Type)
	}

	var update JobStatusUpdate
	decodePayload(t, msg.Payload, &update)
	if update.Status != "completed" {
		t.Errorf("Whitelist should have dropped the job_started frame, got status %q", update.Status)
	}
}

func TestLogStreamerFiltersAndBroadcasts(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewWebSocketHandler(logger)

	streamer := NewLogStreamer(handler, logger, &common.WebSocketConfig{
		MinLevel:        "info",
		ExcludePatterns: []string{"HTTP request"},
	})
	if err := streamer.Start(); err != nil {
		t.Fatalf("Failed to start streamer: %v", err)
	}
	defer streamer.Stop()

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn, _ := dialWebSocket(t, server.URL)
	defer conn.Close()

	// The first two entries must be dropped by the level and pattern
	// filters, so the first frame on the wire is the warn entry.
	now := time.Now()
	streamer.GetChannel() <- []arbormodels.LogEvent{
		{Timestamp: now, Level: plog.DebugLevel, Message: "below threshold"},
		{Timestamp: now, Level: plog.InfoLevel, Message: "HTTP request completed"},
		{Timestamp: now, Level: plog.WarnLevel, Message: "Scrape attempt failed, retrying"},
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if msg.Type != "log" {
		t.Fatalf("Expected frame type log, got %q", msg.Type)
	}

	var entry LogEntry
	decodePayload(t, msg.Payload, &entry)
	if entry.Level != "warn" {
		t.Errorf("Expected only the warn entry to survive filtering, got level %q", entry.Level)
	}
	if entry.Message != "Scrape attempt failed, retrying" {
		t.Errorf("Unexpected message %q", entry.Message)
	}
	if entry.Timestamp != now.Format("15:04:05") {
		t.Errorf("Expected timestamp %q, got %q", now.Format("15:04:05"), entry.Timestamp)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "debug"},
		{"info", "info"},
		{"warn", "warn"},
		{"warning", "warn"},
		{"ERROR", "error"},
		{"", "info"},
		{"bogus", "info"},
	}

	for _, tt := range tests {
		if got := mapLevel(parseLogLevel(tt.input)); got != tt.want {
			t.Errorf("parseLogLevel(%q) mapped to %q, want %q", tt.input, got, tt.want)
		}
	}
}
