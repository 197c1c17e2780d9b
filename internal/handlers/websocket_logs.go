// -----------------------------------------------------------------------
// WebSocket Log Streamer - drains arbor's context channel into the hub
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/indago/internal/common"
)

// defaultLogExcludePatterns drops the chatty infrastructure messages
// that would otherwise echo through the UI console on every request.
var defaultLogExcludePatterns = []string{
	"WebSocket client connected",
	"WebSocket client disconnected",
	"HTTP request",
	"HTTP response",
	"Publishing event",
}

// LogStreamer consumes log batches from arbor's context channel and
// broadcasts matching entries to WebSocket clients. Register its channel
// on the logger with SetChannel("context", ...) so log lines reach the
// UI without blocking the writer path.
type LogStreamer struct {
	handler         *WebSocketHandler
	logger          arbor.ILogger
	channel         chan []arbormodels.LogEvent
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	minLevel        arbor.LogLevel
	excludePatterns []string
}

// NewLogStreamer creates a log streamer. A nil wsConfig falls back to
// safe defaults (info level, standard exclusions).
func NewLogStreamer(handler *WebSocketHandler, logger arbor.ILogger, wsConfig *common.WebSocketConfig) *LogStreamer {
	minLevel := "info"
	excludePatterns := defaultLogExcludePatterns

	if wsConfig != nil {
		if wsConfig.MinLevel != "" {
			minLevel = wsConfig.MinLevel
		}
		if len(wsConfig.ExcludePatterns) > 0 {
			excludePatterns = wsConfig.ExcludePatterns
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LogStreamer{
		handler:         handler,
		logger:          logger,
		channel:         make(chan []arbormodels.LogEvent, 10),
		ctx:             ctx,
		cancel:          cancel,
		minLevel:        parseLogLevel(minLevel),
		excludePatterns: excludePatterns,
	}
}

// GetChannel returns the channel for arbor to send log batches to
func (s *LogStreamer) GetChannel() chan []arbormodels.LogEvent {
	return s.channel
}

// Start launches the streaming goroutine
func (s *LogStreamer) Start() error {
	s.wg.Add(1)
	go s.stream()
	return nil
}

// Stop gracefully shuts down the streamer
func (s *LogStreamer) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// stream processes batches until the channel closes or the context ends
func (s *LogStreamer) stream() {
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			// Log without correlation ID to avoid recursive channel processing
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("LogStreamer panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-s.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				s.forward(event)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// forward broadcasts one log event if it passes the level and pattern filters
func (s *LogStreamer) forward(event arbormodels.LogEvent) {
	level := arborlevels.FromLogLevel(event.Level)
	if level < s.minLevel {
		return
	}
	for _, pattern := range s.excludePatterns {
		if strings.Contains(event.Message, pattern) {
			return
		}
	}

	s.handler.BroadcastLog(LogEntry{
		Timestamp: event.Timestamp.Format("15:04:05"),
		Level:     mapLevel(level),
		Message:   event.Message,
	})
}

// parseLogLevel converts a config string to arbor's log level
func parseLogLevel(level string) arbor.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return arbor.ErrorLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "info":
		return arbor.InfoLevel
	case "debug":
		return arbor.DebugLevel
	default:
		return arbor.InfoLevel
	}
}

// mapLevel maps arbor log levels to the lowercase strings the UI displays
func mapLevel(level arbor.LogLevel) string {
	switch level {
	case arbor.ErrorLevel:
		return "error"
	case arbor.WarnLevel:
		return "warn"
	case arbor.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
