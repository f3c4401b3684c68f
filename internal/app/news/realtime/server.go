// Package realtime 把 fanout.Hub 的订阅通过 websocket 推给浏览器。
// 每个连接是一个 Subscription：读协程负责感知断开，写协程是唯一的写者。
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"newsroom.local/gee"
	"newsroom.local/internal/platform/auth"
	"newsroom.local/internal/platform/fanout"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // 单次写的超时
	pongWait       = 60 * time.Second    // 多久收不到 pong 认为对端已断开
	pingPeriod     = (pongWait * 9) / 10 // 必须小于 pongWait
	maxMessageSize = 4 * 1024            // 客户端只会发心跳，消息很小

	defaultMaxPerUser = 10
)

type Server struct {
	hub        *fanout.Hub
	upgrader   websocket.Upgrader
	maxPerUser int

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

type Option func(*Server)

// WithCheckOrigin 默认允许所有来源，和 CORS_ORIGINS=* 保持一致
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

func WithMaxConnectionsPerUser(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxPerUser = n
		}
	}
}

func NewServer(hub *fanout.Hub, opts ...Option) *Server {
	s := &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		maxPerUser: defaultMaxPerUser,
		conns:      make(map[*websocket.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle 需要挂在鉴权中间件之后（RequiredQuery，浏览器 websocket 无法带 Authorization 头）
func (s *Server) Handle(ctx *gee.Context) {
	id, ok := auth.GetIdentity(ctx.Req.Context())
	if !ok || id.UserID == "" {
		ctx.Fail(http.StatusUnauthorized, "Unauthorized")
		return
	}
	if s.hub.Connections(id.UserID) >= s.maxPerUser {
		ctx.Fail(http.StatusTooManyRequests, "Connection limit exceeded")
		return
	}

	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Req, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		slog.Warn("websocket upgrade failed", "err", err, "remote", ctx.Req.RemoteAddr)
		ctx.Abort()
		return
	}
	s.track(conn)

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		sub:  s.hub.Subscribe(id.UserID),
	}
	slog.Info("websocket connected", "user_id", id.UserID, "connection_id", c.id)

	go c.writePump()
	go func() {
		c.readPump()
		s.hub.Unsubscribe(c.sub)
		s.untrack(conn)
		slog.Info("websocket disconnected", "user_id", id.UserID, "connection_id", c.id)
	}()
}

// CloseAll 关机时调用（http.Server.RegisterOnShutdown）：Shutdown 不会等待被劫持的连接
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, conn := range conns {
		// WriteControl 和 Close 可以与写协程并发调用
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

func (s *Server) track(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

type client struct {
	id   string
	conn *websocket.Conn
	sub  *fanout.Subscription
}

// readPump 只处理心跳；读出错（对端关闭、超时）即返回
func (c *client) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "connection_id", c.id, "err", err)
			}
			return
		}
	}
}

type connectionEstablished struct {
	Event     string `json:"event"`
	Timestamp int64  `json:"timestamp"`
	Payload   struct {
		ConnectionID string `json:"connectionId"`
		UserID       string `json:"userId"`
	} `json:"payload"`
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	hello := connectionEstablished{Event: "connection:established", Timestamp: time.Now().Unix()}
	hello.Payload.ConnectionID = c.id
	hello.Payload.UserID = c.sub.Identity()
	if err := c.writeJSON(hello); err != nil {
		return
	}

	for {
		select {
		case <-c.sub.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case ev := <-c.sub.Events():
			if err := c.writeJSON(ev); err != nil {
				slog.Debug("websocket write failed", "connection_id", c.id, "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
