package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/scenesync/scenesync/internal/core/observability/log"
)

const (
	sessionSendBuffer = 64
	writeTimeout      = 10 * time.Second
	pongTimeout       = 60 * time.Second
	pingInterval      = 45 * time.Second
)

// session is one connected feed client. Outgoing messages pass through a
// buffered channel drained by a dedicated writer goroutine; a session that
// cannot keep up is dropped rather than stalling the broadcast path.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func (s *session) enqueue(data []byte) bool {
	select {
	case <-s.closed:
		return false
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// Feed owns the websocket sessions mirroring the scene. The tick loop is
// the only producer: it broadcasts delta messages and flushes snapshots to
// sessions that joined since the previous tick.
type Feed struct {
	logger  log.Log
	metrics *Metrics

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	// joined since the last FlushJoins; they receive a snapshot before
	// any deltas
	pending []*session

	sceneJSONMu sync.RWMutex
	sceneJSON   []byte
}

func NewFeed(logger log.Log, metrics *Metrics) *Feed {
	if logger == nil {
		logger = log.Provide()
	}
	return &Feed{
		logger:  logger.With(log.String("component", "feed")),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[uuid.UUID]*session),
	}
}

// Routes installs the feed's HTTP endpoints on the router.
func (f *Feed) Routes(r *mux.Router) {
	r.HandleFunc("/ws", f.handleWS)
	r.HandleFunc("/scene.json", f.handleSceneJSON).Methods(http.MethodGet)
	if f.metrics != nil {
		r.Handle("/metrics", f.metrics.Handler())
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func (f *Feed) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("websocket upgrade failed", log.Err(err))
		return
	}

	sess := &session{
		id:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, sessionSendBuffer),
		closed: make(chan struct{}),
	}

	f.mu.Lock()
	f.sessions[sess.id] = sess
	f.pending = append(f.pending, sess)
	count := len(f.sessions)
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.ConnectedClients.Set(float64(count))
	}
	f.logger.Info("client connected",
		log.String("session", sess.id.String()),
		log.String("remote", conn.RemoteAddr().String()),
		log.Int("total", count))

	go f.writePump(sess)
	go f.readPump(sess)
}

func (f *Feed) handleSceneJSON(w http.ResponseWriter, _ *http.Request) {
	f.sceneJSONMu.RLock()
	data := f.sceneJSON
	f.sceneJSONMu.RUnlock()
	if data == nil {
		http.Error(w, "scene not exported yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// SetSceneJSON replaces the document served at /scene.json. The tick loop
// refreshes it periodically so HTTP reads never touch the live scene.
func (f *Feed) SetSceneJSON(data []byte) {
	f.sceneJSONMu.Lock()
	f.sceneJSON = data
	f.sceneJSONMu.Unlock()
}

// writePump drains the session's send queue onto the wire.
func (f *Feed) writePump(s *session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				f.drop(s, err)
				return
			}
			if f.metrics != nil {
				f.metrics.BytesSent.Add(float64(len(data)))
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				f.drop(s, err)
				return
			}
		}
	}
}

// readPump consumes inbound frames. The feed is one way; reading only
// services pings and detects disconnects.
func (f *Feed) readPump(s *session) {
	s.conn.SetReadLimit(1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			f.drop(s, err)
			return
		}
	}
}

func (f *Feed) drop(s *session, err error) {
	f.mu.Lock()
	_, present := f.sessions[s.id]
	delete(f.sessions, s.id)
	for i, p := range f.pending {
		if p == s {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			break
		}
	}
	count := len(f.sessions)
	f.mu.Unlock()

	s.close()
	if !present {
		return
	}
	if f.metrics != nil {
		f.metrics.ConnectedClients.Set(float64(count))
	}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		f.logger.Warn("client dropped", log.String("session", s.id.String()), log.Err(err))
	} else {
		f.logger.Info("client disconnected", log.String("session", s.id.String()), log.Int("total", count))
	}
}

// HasPending reports whether any session still awaits its snapshot.
func (f *Feed) HasPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) > 0
}

// SessionCount returns the number of connected sessions.
func (f *Feed) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

// FlushJoins sends the snapshot message to every session that joined
// since the last flush. Sessions flushed here receive subsequent
// broadcasts.
func (f *Feed) FlushJoins(snapshot []byte) {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, s := range pending {
		if !s.enqueue(snapshot) {
			f.overflow(s)
			continue
		}
		if f.metrics != nil {
			f.metrics.SnapshotsSent.Inc()
		}
	}
}

// Broadcast queues a message to every live session. Sessions still
// awaiting their snapshot are skipped; the snapshot they get next flush
// already reflects this change.
func (f *Feed) Broadcast(data []byte) {
	f.mu.Lock()
	targets := make([]*session, 0, len(f.sessions))
	for _, s := range f.sessions {
		targets = append(targets, s)
	}
	pending := make(map[uuid.UUID]struct{}, len(f.pending))
	for _, s := range f.pending {
		pending[s.id] = struct{}{}
	}
	f.mu.Unlock()

	sent := false
	for _, s := range targets {
		if _, waiting := pending[s.id]; waiting {
			continue
		}
		if !s.enqueue(data) {
			f.overflow(s)
			continue
		}
		sent = true
	}
	if sent && f.metrics != nil {
		f.metrics.DeltasSent.Inc()
	}
}

func (f *Feed) overflow(s *session) {
	if f.metrics != nil {
		f.metrics.DroppedSessions.Inc()
	}
	f.drop(s, ErrSessionClosed)
}

// CloseAll disconnects every session.
func (f *Feed) CloseAll() {
	f.mu.Lock()
	sessions := make([]*session, 0, len(f.sessions))
	for _, s := range f.sessions {
		sessions = append(sessions, s)
	}
	f.sessions = make(map[uuid.UUID]*session)
	f.pending = nil
	f.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	if f.metrics != nil {
		f.metrics.ConnectedClients.Set(0)
	}
}
