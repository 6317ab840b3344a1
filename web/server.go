package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stagekit/stagekit/engine"
	"github.com/stagekit/stagekit/entity"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024

	defaultSnapshotInterval = 50 * time.Millisecond
	askTimeout              = 60 * time.Second
)

// Inbound is one input message from a browser. Answers echo the id of the
// question they respond to.
type Inbound struct {
	Type   string  `json:"type"`
	ID     string  `json:"id,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Key    string  `json:"key,omitempty"`
	Name   string  `json:"name,omitempty"`
	Value  any     `json:"value,omitempty"`
	Answer string  `json:"answer,omitempty"`
}

// Outbound is one message pushed to browsers: a stage snapshot or a question
// awaiting an answer. Questions carry an id so concurrent asks cannot
// swap answers.
type Outbound struct {
	Type     string                `json:"type"`
	ID       string                `json:"id,omitempty"`
	Stage    *entity.StageSnapshot `json:"stage,omitempty"`
	Question string                `json:"question,omitempty"`
}

// Options configures a Server.
type Options struct {
	// SnapshotInterval is how often changed snapshots are pushed.
	// Defaults to 50ms.
	SnapshotInterval time.Duration

	// CheckOrigin overrides the upgrade origin check. Defaults to
	// same-origin, the gorilla default.
	CheckOrigin func(r *http.Request) bool
}

// Server upgrades HTTP requests to WebSocket, streams snapshots of one stage
// and dispatches browser input to it. It implements http.Handler.
type Server struct {
	stage    *entity.Stage
	upgrader websocket.Upgrader
	interval time.Duration

	mu      sync.Mutex
	clients map[*client]bool
	pending map[string]chan string
	closed  bool
	done    chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewServer creates a server for one stage and installs itself as the
// stage's answer source, so ask questions travel to the browser.
func NewServer(stage *entity.Stage, opts Options) *Server {
	interval := opts.SnapshotInterval
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	s := &Server{
		stage:    stage,
		interval: interval,
		clients:  make(map[*client]bool),
		pending:  make(map[string]chan string),
		done:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
	stage.SetAsker(s.ask)
	go s.snapshotLoop()
	return s
}

// Close stops the snapshot loop and disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ServeHTTP upgrades the request and starts the client's pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		engine.Logger().Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = true
	s.mu.Unlock()

	// Fresh connections get the current frame immediately instead of
	// waiting for the next change.
	if data, err := snapshotMessage(s.stage); err == nil {
		c.enqueue(data)
	}

	go s.readPump(c)
	go c.writePump()
}

// ClientCount returns the number of connected browsers.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ask broadcasts the question under a fresh id and blocks for the matching
// answer, so scripts asking concurrently cannot receive each other's.
// Unanswered questions resolve to "" after a timeout so scripts never hang
// forever.
func (s *Server) ask(question string) string {
	id := uuid.NewString()
	reply := make(chan string, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ""
	}
	s.pending[id] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(Outbound{Type: "question", ID: id, Question: question})
	if err != nil {
		return ""
	}
	s.broadcast(data)

	select {
	case answer := <-reply:
		return answer
	case <-time.After(askTimeout):
		engine.Logger().Warn("question timed out", zap.String("question", question))
		return ""
	case <-s.done:
		return ""
	}
}

// answer resolves one pending question. An answer without an id falls back
// to the single pending question, for clients that do not echo ids.
func (s *Server) answer(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" && len(s.pending) == 1 {
		for only := range s.pending {
			id = only
		}
	}
	reply, ok := s.pending[id]
	if !ok {
		engine.Logger().Debug("answer without a pending question", zap.String("id", id))
		return
	}
	delete(s.pending, id)
	reply <- text
}

func (s *Server) snapshotLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			data, err := snapshotMessage(s.stage)
			if err != nil {
				engine.Logger().Warn("snapshot encode failed", zap.Error(err))
				continue
			}
			if bytes.Equal(data, last) {
				continue
			}
			last = data
			s.broadcast(data)
		}
	}
}

func snapshotMessage(stage *entity.Stage) ([]byte, error) {
	snap := stage.Snapshot()
	return json.Marshal(Outbound{Type: "snapshot", Stage: &snap})
}

func (s *Server) broadcast(data []byte) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.enqueue(data)
	}
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
}

// readPump parses input messages and dispatches them to the stage. Dispatch
// returns task handles; the server fires and forgets, the scripts run on the
// engine loop.
func (s *Server) readPump(c *client) {
	defer s.drop(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				engine.Logger().Debug("client read failed", zap.Error(err))
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			engine.Logger().Debug("bad input message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "flag":
			s.stage.Flag()
		case "loaded":
			s.stage.Loaded()
		case "click":
			s.stage.ClickAt(msg.X, msg.Y)
		case "keydown":
			s.stage.KeyDown(msg.Key)
		case "keyup":
			s.stage.KeyUp(msg.Key)
		case "event":
			s.stage.Event(msg.Name, msg.Value)
		case "message":
			s.stage.BroadcastMessage(msg.Name, msg.Value)
		case "answer":
			s.answer(msg.ID, msg.Answer)
		default:
			engine.Logger().Debug("unknown input type", zap.String("type", msg.Type))
		}
	}
}

func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		// Slow consumer; skipping a frame beats blocking the loop.
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
