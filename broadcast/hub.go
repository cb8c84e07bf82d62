// Package broadcast fans session frames out to websocket subscribers and serves
// the pull endpoints next to them.
package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"memwatch/session"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	writeWait   = 2 * time.Second
	pongWait    = 30 * time.Second
	pingPeriod  = pongWait * 9 / 10
	sendBuffer  = 8
	maxReadSize = 512
)

type subscriber struct {
	id   uint64
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// stop closes the send queue; the write pump then closes the connection.
func (s *subscriber) stop() {
	s.once.Do(func() { close(s.send) })
}

// Hub is a session.Sink. Publish never blocks: a subscriber whose queue is
// full is disconnected.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	latest      atomic.Pointer[[]byte]

	subscribed prometheus.Gauge
	dropped    prometheus.Counter
}

var _ session.Sink = (*Hub)(nil)

// NewHub creates a hub and registers its collectors with reg when reg is not nil.
func NewHub(reg prometheus.Registerer) *Hub {
	h := &Hub{
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "broadcast")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscribers: make(map[uint64]*subscriber),
		subscribed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memwatch",
			Name:      "broadcast_subscribers",
			Help:      "Connected websocket subscribers.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memwatch",
			Name:      "broadcast_dropped_total",
			Help:      "Subscribers disconnected for falling behind or failing a write.",
		}),
	}
	if reg != nil {
		reg.MustRegister(h.subscribed, h.dropped)
	}
	return h
}

// Publish encodes frame once and queues it for every subscriber.
func (h *Hub) Publish(frame *session.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.log.Warn("Failed to encode frame ", frame.Cycle, ": ", err)
		return
	}
	h.latest.Store(&data)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subscribers {
		select {
		case sub.send <- data:
		default:
			h.log.Warn("Dropping slow subscriber ", id)
			h.removeLocked(sub)
			h.dropped.Inc()
		}
	}
}

// Subscribers reports how many subscribers are connected.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) add(sub *subscriber) {
	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.subscribed.Set(float64(len(h.subscribers)))
	h.mu.Unlock()
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	delete(h.subscribers, sub.id)
	h.subscribed.Set(float64(len(h.subscribers)))
	sub.stop()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subscribers {
		h.removeLocked(sub)
	}
}

// ServeHTTP upgrades the request and streams frames until the peer goes away.
// The latest frame, if any, is sent first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debugln("Upgrade failed from", r.RemoteAddr, err)
		return
	}

	sub := &subscriber{
		id:   h.nextID.Add(1),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if latest := h.latest.Load(); latest != nil {
		sub.send <- *latest
	}
	h.add(sub)
	h.log.Infoln("Subscriber", sub.id, "connected from", r.RemoteAddr)

	go h.writePump(sub)
	h.readPump(sub)
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(sub *subscriber) {
	defer h.remove(sub)

	sub.conn.SetReadLimit(maxReadSize)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.log.Debugln("Subscriber", sub.id, "read ended:", err)
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debugln("Subscriber", sub.id, "write failed:", err)
				h.remove(sub)
				h.dropped.Inc()
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		}
	}
}

// ServeLatest writes the most recent frame as JSON, or 204 before the first.
func (h *Hub) ServeLatest(w http.ResponseWriter, r *http.Request) {
	latest := h.latest.Load()
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(*latest)
}

// Handler routes /ws to the hub, /latest to the last frame and /metrics to
// gatherer.
func (h *Hub) Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	mux.HandleFunc("/latest", h.ServeLatest)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
