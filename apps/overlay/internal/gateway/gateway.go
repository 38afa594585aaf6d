package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"landlord-lens/watcher"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // 本机展示进程连接，不做来源限制
	},
}

// SessionControl 会话的展示侧控制面。
type SessionControl interface {
	Status() watcher.SessionStatus
	ManualReset() error
}

// Connection 一个已升级的 WebSocket 客户端连接。
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Gateway *Gateway
}

// Gateway 把计数状态推给展示进程，并接收 reset 等控制命令。
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64

	session SessionControl
	counter *watcher.Counter
	logger  *log.Logger
}

func New(session SessionControl, counter *watcher.Counter, logger *log.Logger) *Gateway {
	return &Gateway{
		connections: make(map[string]*Connection),
		session:     session,
		counter:     counter,
		logger:      logger,
	}
}

// statePayload 推送给客户端的完整状态帧。
type statePayload struct {
	Type           string                    `json:"type"`
	Phase          string                    `json:"phase"`
	Landlord       string                    `json:"landlord"`
	Active         string                    `json:"active"`
	Round          uint32                    `json:"round"`
	Remaining      map[string]int            `json:"remaining"`
	RemainingTotal int                       `json:"remaining_total"`
	Played         map[string]map[string]int `json:"played"`
	PlayedTotals   map[string]int            `json:"played_totals"`
	Warning        string                    `json:"warning,omitempty"`
}

// clientCommand 客户端发来的控制命令。
type clientCommand struct {
	Type string `json:"type"`
}

func (g *Gateway) statePayload(warning string) statePayload {
	status := g.session.Status()
	snap := g.counter.Snapshot()

	remaining := make(map[string]int, len(snap.Remaining))
	for label, n := range snap.Remaining {
		remaining[label.String()] = n
	}
	played := make(map[string]map[string]int, len(snap.Played))
	for seat, table := range snap.Played {
		dup := make(map[string]int, len(table))
		for label, n := range table {
			dup[label.String()] = n
		}
		played[seat.String()] = dup
	}
	totals := make(map[string]int, len(snap.PlayedTotals))
	for seat, n := range snap.PlayedTotals {
		totals[seat.String()] = n
	}

	return statePayload{
		Type:           "state",
		Phase:          status.Phase.String(),
		Landlord:       status.Landlord.String(),
		Active:         status.Active.String(),
		Round:          status.Round,
		Remaining:      remaining,
		RemainingTotal: snap.RemainingTotal,
		Played:         played,
		PlayedTotals:   totals,
		Warning:        warning,
	}
}

// Run 推送循环：计数一变就推，平时按节拍保底推一帧。
// 阻塞到 ctx 取消。
func (g *Gateway) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.closeAll()
			return
		case ev := <-g.counter.Events():
			warning := ""
			if ev.Warning {
				warning = fmt.Sprintf("%s remaining went below zero", ev.Label)
			}
			g.broadcastState(warning)
		case <-ticker.C:
			g.broadcastState("")
		}
	}
}

func (g *Gateway) broadcastState(warning string) {
	data, err := json.Marshal(g.statePayload(warning))
	if err != nil {
		g.logger.Error("marshal state failed", "err", err)
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.connections {
		select {
		case c.Send <- data:
		default:
			// 消费不过来就丢，下一帧会补上全量状态
		}
	}
}

// HandleWebSocket 升级连接并启动读写泵。
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:      fmt.Sprintf("conn_%d", g.nextConnID),
		Conn:    conn,
		Send:    make(chan []byte, 64),
		Gateway: g,
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	g.logger.Info("client connected", "conn", c.ID, "total", total)

	// 新连接先收到一帧当前状态。必须在读写泵启动前入队，
	// 否则与断连时的 close(Send) 存在竞态。
	if data, err := json.Marshal(g.statePayload("")); err == nil {
		c.Send <- data
	}

	go c.readPump()
	go c.writePump()
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Gateway.logger.Warn("websocket read failed", "conn", c.ID, "err", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

func (c *Connection) handleMessage(data []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.Gateway.logger.Warn("bad client command", "conn", c.ID, "err", err)
		return
	}
	switch cmd.Type {
	case "reset":
		if err := c.Gateway.session.ManualReset(); err != nil {
			c.Gateway.logger.Warn("manual reset refused", "conn", c.ID, "err", err)
			return
		}
		c.Gateway.logger.Info("manual reset accepted", "conn", c.ID)
	default:
		c.Gateway.logger.Warn("unknown client command", "conn", c.ID, "type", cmd.Type)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.connections[c.ID]; !ok {
		return
	}
	delete(g.connections, c.ID)
	close(c.Send)
	g.logger.Info("client disconnected", "conn", c.ID, "total", len(g.connections))
}

func (g *Gateway) closeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, c := range g.connections {
		close(c.Send)
		delete(g.connections, id)
	}
}

// HandleCounts 只读 REST 接口，返回与推送帧同构的 JSON。
func (g *Gateway) HandleCounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(g.statePayload("")); err != nil {
		g.logger.Error("encode counts failed", "err", err)
	}
}
