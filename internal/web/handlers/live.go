package handlers

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/attendance"
	"github.com/KP-101219/Quickroll-V2/internal/constants"
	"github.com/KP-101219/Quickroll-V2/internal/database"
	"github.com/gorilla/websocket"
)

// Live feed event names
const (
	EventAttendanceMarked = "ATTENDANCE_MARKED"
	EventTodaySummary     = "TODAY_SUMMARY"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
)

// LiveMessage is one websocket frame of the live feed.
type LiveMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// LiveHub fans newly created attendance records out to websocket listeners.
type LiveHub struct {
	listeners []chan LiveMessage
	mu        sync.RWMutex
}

var _ attendance.Notifier = (*LiveHub)(nil)

// NewLiveHub creates an empty hub.
func NewLiveHub() *LiveHub {
	return &LiveHub{}
}

// AddListener adds an event listener.
func (h *LiveHub) AddListener() chan LiveMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan LiveMessage, constants.EventChannelBuffer)
	h.listeners = append(h.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (h *LiveHub) RemoveListener(ch chan LiveMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Listeners returns the number of connected listeners.
func (h *LiveHub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Publish sends a record to all listeners. Slow listeners miss events
// rather than block the ledger.
func (h *LiveHub) Publish(rec database.AttendanceRecord) {
	msg := LiveMessage{Event: EventAttendanceMarked, Data: recordToResponse(rec)}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, listener := range h.listeners {
		select {
		case listener <- msg:
		default:
			// Listener buffer full, skip.
		}
	}
}

// LiveHandler serves the attendance websocket feed.
type LiveHandler struct {
	hub      *LiveHub
	ledger   *attendance.Service
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a live feed handler. checkOrigin decides which
// browser origins may connect.
func NewLiveHandler(hub *LiveHub, ledger *attendance.Service, checkOrigin func(origin string) bool) *LiveHandler {
	return &LiveHandler{
		hub:    hub,
		ledger: ledger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || checkOrigin(origin)
			},
		},
	}
}

// Serve upgrades the connection, sends today's summary and then streams
// ATTENDANCE_MARKED events until the client disconnects.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Live feed upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events := h.hub.AddListener()
	defer h.hub.RemoveListener(events)

	date, records, err := h.ledger.TodayRecords(r.Context())
	if err != nil {
		log.Printf("Live feed summary failed: %v", err)
		return
	}
	summary := LiveMessage{Event: EventTodaySummary, Data: map[string]any{"date": date, "count": len(records)}}
	if err := writeLive(conn, summary); err != nil {
		return
	}

	// Clients only send control frames; the reader exists to process them
	// and to notice disconnects.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := writeLive(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeLive(conn *websocket.Conn, msg LiveMessage) error {
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return conn.WriteJSON(msg)
}
