// Package feed streams episode records to WebSocket subscribers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"treaty-bidding-lab/internal/domain"
	"treaty-bidding-lab/internal/observability"
)

const (
	defaultBufferSize   = 64
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
	maxInboundMessage   = 512
)

// Options configures a Hub.
type Options struct {
	// BufferSize is the number of records queued per subscriber before it is dropped.
	BufferSize   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	Logger       *zerolog.Logger
	Metrics      *observability.Metrics
}

// Hub fans episode records out to connected subscribers. A subscriber whose
// queue is full is disconnected; publishing never blocks on a slow reader.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}

	upgrader     websocket.Upgrader
	bufferSize   int
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a new Hub.
func NewHub(opts Options) *Hub {
	h := &Hub{
		subs:         make(map[*subscriber]struct{}),
		bufferSize:   opts.BufferSize,
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		logger:       zerolog.Nop(),
		metrics:      opts.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if h.bufferSize <= 0 {
		h.bufferSize = defaultBufferSize
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.pingInterval <= 0 {
		h.pingInterval = defaultPingInterval
	}
	if opts.Logger != nil {
		h.logger = opts.Logger.With().Str("component", "feed").Logger()
	}
	return h
}

// Publish encodes the record once and queues it for every subscriber.
func (h *Hub) Publish(ctx context.Context, rec domain.EpisodeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal episode record: %w", err)
	}

	h.mu.Lock()
	var slow []*subscriber
	for sub := range h.subs {
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range slow {
		h.logger.Warn().Msg("dropping slow feed subscriber")
		if h.remove(sub) && h.metrics != nil {
			h.metrics.FeedDropped.Inc()
		}
	}
	return nil
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams records until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, h.bufferSize)}
	h.add(sub)
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("feed subscriber connected")

	go h.writeLoop(sub)
	h.readLoop(sub)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FeedSubscribers.Set(float64(n))
	}
}

// remove unregisters sub and closes its queue. Reports whether sub was registered.
func (h *Hub) remove(sub *subscriber) bool {
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
		close(sub.send)
	}
	n := len(h.subs)
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.FeedSubscribers.Set(float64(n))
	}
	return ok
}

// readLoop discards client messages and keeps the read deadline alive on pong.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)

	pongWait := 2 * h.pingInterval
	sub.conn.SetReadLimit(maxInboundMessage)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(sub)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		}
	}
}
