package monitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"tradecap/internal/account"
	"tradecap/internal/model"
	"tradecap/internal/position"
	"tradecap/internal/strategy"
)

// 实时监控通道：连上之后定期推送引擎、账户和仓位快照

type ClientConn struct {
	Conn *websocket.Conn
	Send chan []byte // 异步发送通道
}

type Handler struct {
	engine *strategy.Engine
	pm     *position.Manager
	store  *account.Store

	mu       sync.RWMutex
	clients  map[*ClientConn]struct{}
	upgrader websocket.Upgrader
	interval time.Duration
}

func NewHandler(e *strategy.Engine, pm *position.Manager, store *account.Store) *Handler {
	h := &Handler{
		engine:  e,
		pm:      pm,
		store:   store,
		clients: make(map[*ClientConn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // 允许跨域
		},
		interval: 2 * time.Second,
	}
	return h
}

// 推送给客户端的快照结构
type stateMessage struct {
	Timestamp     time.Time         `json:"timestamp"`
	Account       account.State     `json:"account"`
	AdmissionOpen bool              `json:"admission_open"`
	Stopped       bool              `json:"stopped"`
	Positions     []model.Position  `json:"positions"`
	Stuck         []model.Position  `json:"stuck"`
}

// ServeWS 升级连接并纳入广播集合
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("upgrade error:", err)
		return
	}
	client := &ClientConn{
		Conn: conn,
		Send: make(chan []byte, 100),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		close(client.Send)
		conn.Close()
	}()

	// 不断从 Send channel 取消息，然后写入 WebSocket
	go client.writePump()
	// 连上先推一帧，不用等下一个广播周期
	h.push(client)
	// 读循环只用来感知断开，收到的内容忽略
	client.readPump()
}

// Broadcast 周期推送状态给全部连接，阻塞运行直到进程退出
func (h *Handler) Broadcast() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.RLock()
		if len(h.clients) == 0 {
			h.mu.RUnlock()
			continue
		}
		data := h.snapshotJSON()
		for client := range h.clients {
			select {
			case client.Send <- data:
			default:
				// 队列满就丢掉这一帧
			}
		}
		h.mu.RUnlock()
	}
}

func (h *Handler) push(client *ClientConn) {
	select {
	case client.Send <- h.snapshotJSON():
	default:
	}
}

func (h *Handler) snapshotJSON() []byte {
	msg := stateMessage{
		Timestamp:     time.Now(),
		Account:       h.store.Snapshot(),
		AdmissionOpen: h.engine.AdmissionOpen(),
		Stopped:       h.engine.Stopped(),
		Positions:     h.pm.List(),
		Stuck:         h.pm.ListStuck(),
	}
	data, _ := json.Marshal(msg)
	return data
}

func (c *ClientConn) writePump() {
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Println("write error:", err)
			break
		}
	}
}

// readPump 读取并丢弃客户端消息，出错即认为连接结束
func (c *ClientConn) readPump() {
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			log.Println("monitor client disconnected:", err)
			return
		}
	}
}
