package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/brickvault/internal/events"
	"github.com/aristath/brickvault/internal/utils"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	streamBufferSize  = 100
	heartbeatInterval = 30 * time.Second
	writeTimeout      = 5 * time.Second
)

// EventsStreamHandler streams bus events to websocket clients
type EventsStreamHandler struct {
	eventBus      *events.Bus
	acceptOptions *websocket.AcceptOptions
	heartbeat     time.Duration
	log           zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler. Origins use the
// same list as CORS; "*" accepts any origin.
func NewEventsStreamHandler(eventBus *events.Bus, origins []string, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus:      eventBus,
		acceptOptions: acceptOptionsFor(origins),
		heartbeat:     heartbeatInterval,
		log:           log.With().Str("component", "events_stream").Logger(),
	}
}

// streamMessage is the JSON frame sent for each event
type streamMessage struct {
	Type      string                 `json:"type"`
	Module    string                 `json:"module,omitempty"`
	AccountID string                 `json:"account_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ServeHTTP handles GET /api/events/ws?accountId=&types=
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")

	eventTypes := events.AllEventTypes
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		parsed, ok := parseEventTypes(typesFilter)
		if !ok {
			utils.WriteBadRequest(w, "unknown event type in types", h.log)
			return
		}
		eventTypes = parsed
	}

	conn, err := websocket.Accept(w, r, h.acceptOptions)
	if err != nil {
		// Accept has already written the response
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// CloseRead discards client frames and cancels ctx when the client goes away
	ctx := conn.CloseRead(r.Context())

	eventChan := make(chan *events.Event, streamBufferSize)
	unsubscribe := h.eventBus.Subscribe(func(event *events.Event) {
		if accountID != "" && event.AccountID != accountID {
			return
		}
		// Non-blocking send (drop if channel full)
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}, eventTypes...)
	defer unsubscribe()

	h.log.Info().
		Str("account_id", accountID).
		Int("types", len(eventTypes)).
		Msg("Client connected to event stream")

	if err := h.write(ctx, conn, streamMessage{
		Type:      "connected",
		AccountID: accountID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Str("account_id", accountID).Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			if err := h.write(ctx, conn, streamMessage{
				Type:      string(event.Type),
				Module:    event.Module,
				AccountID: event.AccountID,
				Timestamp: event.Timestamp.Format(time.RFC3339Nano),
				Data:      event.Data,
			}); err != nil {
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Heartbeat failed")
				return
			}
		}
	}
}

func (h *EventsStreamHandler) write(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write event")
		return err
	}
	return nil
}

func parseEventTypes(filter string) ([]events.EventType, bool) {
	known := make(map[events.EventType]bool, len(events.AllEventTypes))
	for _, t := range events.AllEventTypes {
		known[t] = true
	}

	var out []events.EventType
	for _, raw := range utils.SplitList(filter) {
		t := events.EventType(strings.ToUpper(raw))
		if !known[t] {
			return nil, false
		}
		out = append(out, t)
	}
	return out, len(out) > 0
}

// acceptOptionsFor turns CORS origins into websocket origin host patterns
func acceptOptionsFor(origins []string) *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, origin := range origins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			opts.OriginPatterns = append(opts.OriginPatterns, u.Host)
			continue
		}
		opts.OriginPatterns = append(opts.OriginPatterns, origin)
	}
	return opts
}
