package service

import (
	"context"
	"encoding/json"
	"intellitest_backend/pkg/logger"
	"intellitest_backend/pkg/monitoring"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxMessageSize  = 512
	ProgressChannel = "test_progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ProgressEvent 一次成功提交，推送给监控该试卷的教师
type ProgressEvent struct {
	TestID             uint       `json:"test_id"`
	SubmissionID       uint       `json:"submission_id"`
	StudentID          uint       `json:"student_id"`
	AttemptedQuestions int        `json:"attempted_questions"`
	TotalQuestions     int        `json:"total_questions"`
	Score              *float64   `json:"score"`
	IsAutoSubmitted    bool       `json:"is_auto_submitted"`
	SubmittedAt        *time.Time `json:"submitted_at"`
}

type monitorClient struct {
	hub     *ProgressHub
	conn    *websocket.Conn
	send    chan []byte
	testID  uint
	userID  uint
	limiter *rate.Limiter
}

func (c *monitorClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.userID))
			}
			break
		}

		if !c.limiter.Allow() {
			continue
		}

		// 监控端只会发心跳
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "PING" {
			continue
		}
		pong, _ := json.Marshal(WSMessage{Type: "PONG"})
		select {
		case c.send <- pong:
		default:
		}
	}
}

func (c *monitorClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ProgressHub 按试卷分组的实时提交推送。启用 Redis 时经 test_progress 频道跨实例广播，
// 否则只在本进程内分发
type ProgressHub struct {
	mu         sync.RWMutex
	rooms      map[uint]map[*monitorClient]struct{}
	register   chan *monitorClient
	unregister chan *monitorClient
	// Run 退出后关闭，注册与注销不再阻塞
	done     chan struct{}
	stopOnce sync.Once
	Redis    *redis.Client
}

func NewProgressHub(rdb *redis.Client) *ProgressHub {
	return &ProgressHub{
		rooms:      make(map[uint]map[*monitorClient]struct{}),
		register:   make(chan *monitorClient),
		unregister: make(chan *monitorClient),
		done:       make(chan struct{}),
		Redis:      rdb,
	}
}

// Run 阻塞直到 ctx 结束
func (h *ProgressHub) Run(ctx context.Context) {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(ctx, ProgressChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var event ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logger.Log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.deliver(event)
			}
		}()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.testID]
			if !ok {
				room = make(map[*monitorClient]struct{})
				h.rooms[client.testID] = room
			}
			room[client] = struct{}{}
			h.mu.Unlock()
			monitoring.MonitorSubscribers.Inc()

		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.testID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					monitoring.MonitorSubscribers.Dec()
				}
				if len(room) == 0 {
					delete(h.rooms, client.testID)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.Stop()
			return
		}
	}
}

// Publish 推送失败只记录日志，不影响提交结果
func (h *ProgressHub) Publish(ctx context.Context, event ProgressEvent) {
	if h == nil {
		return
	}
	if h.Redis == nil {
		h.deliver(event)
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("Progress event marshal error", zap.Error(err))
		return
	}
	if err := h.Redis.Publish(ctx, ProgressChannel, payload).Err(); err != nil {
		logger.Log.Warn("Progress event publish failed, delivering locally",
			zap.Error(err), zap.Uint("testId", event.TestID))
		h.deliver(event)
	}
}

func (h *ProgressHub) deliver(event ProgressEvent) {
	payload, err := json.Marshal(WSMessage{Type: "SUBMISSION", Data: event})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[event.TestID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

// Subscribers 当前实例上监控某试卷的连接数
func (h *ProgressHub) Subscribers(testID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[testID])
}

// Stop 关闭所有连接，可重复调用
func (h *ProgressHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	closed := 0
	for testID, room := range h.rooms {
		for client := range room {
			close(client.send)
			closed++
		}
		delete(h.rooms, testID)
	}
	h.mu.Unlock()

	monitoring.MonitorSubscribers.Set(0)
	logger.Log.Info("ProgressHub stopped", zap.Int("closedConnections", closed))
}

func ServeProgressWs(hub *ProgressHub, w http.ResponseWriter, r *http.Request, testID, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &monitorClient{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 64),
		testID:  testID,
		userID:  userID,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
