package webui

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"vitals_backend/status"
)

// EventSource is the subscribe side of status.Broadcaster.
type EventSource interface {
	Subscribe() *status.Subscription
	Unsubscribe(*status.Subscription)
	Publish(status.Event)
}

// StatusHubConfig holds websocket timing and replay settings.
type StatusHubConfig struct {
	// PingPeriod is how often pings are sent (must be less than PongWait)
	PingPeriod time.Duration

	// PongWait is how long to wait for a pong before dropping the client
	PongWait time.Duration

	// WriteWait bounds a single frame write
	WriteWait time.Duration

	// MaxMessageSize limits inbound frames; clients only send control frames
	MaxMessageSize int64

	// ReplaySize is how many recent events a new client receives first
	ReplaySize int

	// AllowedOrigins extends the same-host rule for cross-origin pages
	AllowedOrigins []string
}

// DefaultStatusHubConfig returns the default configuration.
func DefaultStatusHubConfig() StatusHubConfig {
	return StatusHubConfig{
		PingPeriod:     30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 512,
		ReplaySize:     20,
	}
}

// StatusHub streams status events to websocket clients at /ws/status.
//
// It is also the status.Publisher handed to the analysis pipeline and the
// recorder: Publish remembers the event for replay and forwards it to the
// broadcaster. Each connection owns one broadcaster subscription; when the
// broadcaster evicts it the connection is closed, and a client disconnect
// unsubscribes it.
type StatusHub struct {
	source   EventSource
	config   StatusHubConfig
	upgrader websocket.Upgrader
	recent   *CircularBuffer[status.Event]
	allowed  map[string]bool
	logger   *zap.Logger

	clients   atomic.Int64
	quit      chan struct{}
	closeOnce sync.Once
}

// NewStatusHub creates a hub over source.
func NewStatusHub(source EventSource, config StatusHubConfig, logger *zap.Logger) *StatusHub {
	def := DefaultStatusHubConfig()
	if config.PingPeriod <= 0 {
		config.PingPeriod = def.PingPeriod
	}
	if config.PongWait <= 0 {
		config.PongWait = def.PongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = def.WriteWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	if config.ReplaySize <= 0 {
		config.ReplaySize = def.ReplaySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &StatusHub{
		source:  source,
		config:  config,
		recent:  NewCircularBuffer[status.Event](config.ReplaySize),
		allowed: make(map[string]bool, len(config.AllowedOrigins)),
		logger:  logger,
		quit:    make(chan struct{}),
	}
	for _, o := range config.AllowedOrigins {
		h.allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Publish implements status.Publisher.
func (h *StatusHub) Publish(ev status.Event) {
	h.recent.Push(ev)
	h.source.Publish(ev)
}

// Recent returns the replay buffer, oldest first.
func (h *StatusHub) Recent() []status.Event {
	return h.recent.GetAll()
}

// ClientCount returns the number of connected websocket clients.
func (h *StatusHub) ClientCount() int {
	return int(h.clients.Load())
}

// Close disconnects every client. Further connections are refused.
func (h *StatusHub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// checkOrigin accepts requests without an Origin header, same-host pages
// and the configured CORS origins.
func (h *StatusHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return h.allowed[strings.TrimSuffix(strings.ToLower(origin), "/")]
}

// HandleConnection upgrades the request and streams events until the
// client leaves, the subscription is evicted or the hub closes.
func (h *StatusHub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.quit:
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed",
			zap.String("remote_addr", getClientIP(r)),
			zap.Error(err))
		return
	}

	// Subscribe before taking the replay snapshot so nothing published during
	// the handshake is lost; such an event may be delivered twice.
	sub := h.source.Subscribe()
	backlog := h.recent.GetAll()

	connectedAt := time.Now()
	remote := getClientIP(r)
	total := h.clients.Add(1)
	h.logger.Info("status client connected",
		zap.String("remote_addr", remote),
		zap.Int64("clients", total))

	defer func() {
		h.source.Unsubscribe(sub)
		conn.Close()
		left := h.clients.Add(-1)
		h.logger.Info("status client disconnected",
			zap.String("remote_addr", remote),
			zap.String("connected_for", FormatDuration(time.Since(connectedAt))),
			zap.Int64("clients", left))
	}()

	readerDone := make(chan struct{})
	go h.readPump(conn, readerDone)

	for _, ev := range backlog {
		if err := h.writeEvent(conn, ev); err != nil {
			return
		}
	}

	ticker := time.NewTicker(h.config.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				h.logger.Warn("status subscription removed, closing client",
					zap.String("remote_addr", remote))
				h.writeClose(conn, websocket.CloseGoingAway, "subscription closed")
				return
			}
			if err := h.writeEvent(conn, ev); err != nil {
				h.logger.Debug("status write failed", zap.String("remote_addr", remote), zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readerDone:
			return
		case <-h.quit:
			h.writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (h *StatusHub) writeEvent(conn *websocket.Conn, ev status.Event) error {
	conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
	return conn.WriteJSON(ev)
}

func (h *StatusHub) writeClose(conn *websocket.Conn, code int, text string) {
	conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

// readPump keeps the pong deadline fresh and notices client disconnects.
// Client messages are ignored.
func (h *StatusHub) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(h.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug("unexpected websocket close", zap.Error(err))
			}
			return
		}
	}
}
