package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"market-mirror/pkg/types"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	sendBuffer   = 8
)

// Hub 维护所有WebSocket连接，向其推送快照
type Hub struct {
	upgrader websocket.Upgrader
	mutex    sync.RWMutex
	clients  map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast 推送快照；发送缓冲已满的慢连接会被断开
func (h *Hub) Broadcast(snapshot *types.Snapshot) {
	if snapshot == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		zap.L().Error("❌ 序列化快照失败", zap.Error(err))
		return
	}

	h.mutex.RLock()
	var slow []*wsClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mutex.RUnlock()

	for _, c := range slow {
		zap.L().Warn("⚠️ WebSocket客户端过慢，断开连接", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
	}
}

// ServeWS 升级连接并立即推送当前快照
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, current *types.Snapshot) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("⚠️ WebSocket升级失败", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	if current != nil {
		if payload, err := json.Marshal(current); err == nil {
			c.send <- payload
		}
	}

	h.mutex.Lock()
	h.clients[c] = struct{}{}
	h.mutex.Unlock()
	zap.L().Debug("🔌 WebSocket客户端已连接", zap.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Close 断开所有连接
func (h *Hub) Close() {
	h.mutex.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mutex.Lock()
	delete(h.clients, c)
	h.mutex.Unlock()

	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// readLoop 只处理控制帧，客户端断开时清理
func (h *Hub) readLoop(c *wsClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop 发送快照与心跳
func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Debug("发送心跳失败", zap.Error(err))
				return
			}
		}
	}
}
