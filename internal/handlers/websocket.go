// -----------------------------------------------------------------------
// WebSocket Handler - live job, export and log streaming to connected clients
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every frame sent to a client.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusUpdate is the hello frame sent on connect and rebroadcast
// periodically. Clients compare ServerInstanceID across reconnects to
// detect a server restart and reset their local state.
type StatusUpdate struct {
	Service          string `json:"service"`
	Status           string `json:"status"`
	Database         string `json:"database"`
	ServerInstanceID string `json:"server_instance_id"`
}

// JobStatusUpdate mirrors the payload published with every job
// lifecycle event (created, started, paused, resumed, cancelled,
// completed, failed).
type JobStatusUpdate struct {
	JobID             string    `json:"job_id"`
	Name              string    `json:"name,omitempty"`
	Status            string    `json:"status"`
	Domains           []string  `json:"domains,omitempty"`
	PauseReason       string    `json:"pause_reason,omitempty"`
	CitiesCompleted   int       `json:"cities_completed"`
	TotalCities       int       `json:"total_cities"`
	BusinessesScraped int       `json:"businesses_scraped"`
	TotalBusinesses   int       `json:"total_businesses"`
	Timestamp         time.Time `json:"timestamp"`
}

// ScrapeProgressUpdate carries per-page extraction progress.
type ScrapeProgressUpdate struct {
	JobID             string    `json:"job_id"`
	Domain            string    `json:"domain"`
	City              string    `json:"city"`
	Page              int       `json:"page"`
	BusinessesFound   int       `json:"businesses_found"`
	NewBusinesses     int       `json:"new_businesses"`
	BusinessesScraped int       `json:"businesses_scraped"`
	TotalScraped      int       `json:"total_scraped"`
	CitiesCompleted   int       `json:"cities_completed"`
	TotalCities       int       `json:"total_cities"`
	Timestamp         time.Time `json:"timestamp"`
}

// CityCompletedUpdate is sent when a job finishes all pages for a city.
type CityCompletedUpdate struct {
	JobID           string    `json:"job_id"`
	City            string    `json:"city"`
	CitiesCompleted int       `json:"cities_completed"`
	TotalCities     int       `json:"total_cities"`
	Timestamp       time.Time `json:"timestamp"`
}

// ExportStatusUpdate mirrors the payload published with export
// lifecycle and progress events.
type ExportStatusUpdate struct {
	ExportID        string    `json:"export_id"`
	Name            string    `json:"name,omitempty"`
	Status          string    `json:"status"`
	TotalRecords    int       `json:"total_records"`
	ExportedRecords int       `json:"exported_records"`
	FailedRecords   int       `json:"failed_records"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// LogEntry is a single log line formatted for the UI console.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// WebSocketHandler fans broadcasts out to every connected client.
// Writes to a single connection are serialized through a per-client
// mutex so concurrent broadcasts never interleave frames.
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]bool
	clientMutex      map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	serverInstanceID string // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Msg("WebSocket handler initialized")

	return h
}

func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", len(h.clients))

	// Send initial status
	h.sendStatus(conn)

	// Handle client disconnection
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		clientCount := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", clientCount)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// sendStatus sends the initial status frame to a single client.
func (h *WebSocketHandler) sendStatus(conn *websocket.Conn) {
	msg := WSMessage{
		Type:    "status",
		Payload: h.currentStatus(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal initial status")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send initial status")
		}
	}
}

func (h *WebSocketHandler) currentStatus() StatusUpdate {
	return StatusUpdate{
		Service:          "ONLINE",
		Status:           "ONLINE",
		Database:         "CONNECTED",
		ServerInstanceID: h.serverInstanceID,
	}
}

// StartStatusBroadcaster starts periodic status updates so clients can
// detect a stalled server without their own ping loop.
func (h *WebSocketHandler) StartStatusBroadcaster() {
	ticker := time.NewTicker(5 * time.Second)

	go func() {
		for range ticker.C {
			h.mu.RLock()
			clientCount := len(h.clients)
			h.mu.RUnlock()

			if clientCount > 0 {
				h.BroadcastStatus(h.currentStatus())
			}
		}
	}()
}

// BroadcastStatus sends a status update to all connected clients.
func (h *WebSocketHandler) BroadcastStatus(status StatusUpdate) {
	h.broadcast(WSMessage{Type: "status", Payload: status})
}

// BroadcastJobStatus sends a job lifecycle update to all connected clients.
func (h *WebSocketHandler) BroadcastJobStatus(update JobStatusUpdate) {
	h.broadcast(WSMessage{Type: "job_status", Payload: update})
}

// BroadcastScrapeProgress sends a per-page progress update to all connected clients.
func (h *WebSocketHandler) BroadcastScrapeProgress(update ScrapeProgressUpdate) {
	h.broadcast(WSMessage{Type: "scrape_progress", Payload: update})
}

// BroadcastCityCompleted sends a city completion update to all connected clients.
func (h *WebSocketHandler) BroadcastCityCompleted(update CityCompletedUpdate) {
	h.broadcast(WSMessage{Type: "city_completed", Payload: update})
}

// BroadcastExportStatus sends an export update to all connected clients.
func (h *WebSocketHandler) BroadcastExportStatus(update ExportStatusUpdate) {
	h.broadcast(WSMessage{Type: "export_status", Payload: update})
}

// BroadcastLog sends a log line to all connected clients.
func (h *WebSocketHandler) BroadcastLog(entry LogEntry) {
	h.broadcast(WSMessage{Type: "log", Payload: entry})
}

// SendLog formats and broadcasts a single log line.
func (h *WebSocketHandler) SendLog(level, message string) {
	h.BroadcastLog(LogEntry{
		Timestamp: time.Now().Format("15:04:05"),
		Level:     strings.ToLower(level),
		Message:   message,
	})
}

// broadcast marshals the message once, then writes it to every client
// under that client's write mutex. A failed write is logged and left
// for the client's read loop to clean up.
func (h *WebSocketHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msg.Type).Msg("Failed to send message to client")
		}
	}
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if val, ok := m[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func getStringSlice(m map[string]interface{}, key string) []string {
	val, ok := m[key]
	if !ok {
		return nil
	}

	switch arr := val.(type) {
	case []string:
		return arr
	case []interface{}:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return nil
}
