// client.go — WebSocket 订阅客户端: 连接、读循环、心跳、断线重连。
package ingest

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/liuyingduo/petool-chat/internal/store"
	"github.com/liuyingduo/petool-chat/internal/timeline"
	apperrors "github.com/liuyingduo/petool-chat/pkg/errors"
	"github.com/liuyingduo/petool-chat/pkg/logger"
	"github.com/liuyingduo/petool-chat/pkg/util"
)

const readIdleTimeout = 90 * time.Second

// Client 订阅上游事件流, 把事件写入时间线并异步落库。
// 订阅通道故障只记录日志并重连, 已累积的时间线状态不受影响。
type Client struct {
	URL            string
	ReconnectDelay time.Duration
	PingInterval   time.Duration

	manager *timeline.Manager
	events  *store.MessageEventStore
	convs   *store.ConversationStore

	wsMu sync.Mutex
	ws   *websocket.Conn
}

// NewClient 创建订阅客户端。events/convs 可为 nil (不落库, 纯内存模式)。
func NewClient(url string, manager *timeline.Manager, events *store.MessageEventStore, convs *store.ConversationStore) *Client {
	return &Client{
		URL:            url,
		ReconnectDelay: 3 * time.Second,
		PingInterval:   20 * time.Second,
		manager:        manager,
		events:         events,
		convs:          convs,
	}
}

// Run 阻塞运行直到 ctx 取消。连接断开后按固定间隔重连。
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("ingest: connection lost, will reconnect",
				logger.FieldURL, c.URL, logger.FieldError, err)
		}
		select {
		case <-ctx.Done():
			c.closeConn()
			return
		case <-time.After(c.ReconnectDelay):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return apperrors.Wrap(err, "Ingest.connectAndRead", "ws connect")
	}
	c.replaceConn(conn)
	logger.Info("ingest: connected", logger.FieldURL, c.URL)

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	util.SafeGo(func() { c.pingLoop(pingCtx, conn) })

	return c.readLoop(ctx, conn)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
		NetDialContext:   (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
	}
	conn, _, err := dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		return nil
	})
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		c.handleFrame(ctx, data)
	}
}

// handleFrame 解码并投递一帧。坏帧只告警, 不中断读循环。
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	ev, turnEnded, err := DecodeFrame(data)
	if err != nil {
		logger.Warn("ingest: drop malformed frame", logger.FieldError, err)
		return
	}

	if turnEnded {
		c.manager.SetStreaming(ev.ConversationID, false)
		logger.Debug("ingest: turn ended",
			logger.FieldConversationID, ev.ConversationID, logger.FieldTurnID, ev.TurnID)
		return
	}

	if isAssistantEvent(ev.EventType) {
		c.manager.SetStreaming(ev.ConversationID, true)
	}
	c.manager.Append(ev)
	c.persist(ctx, ev)
}

// persist 异步落库 (Append 已归一化 id/created_at, 重投递由 ON CONFLICT 吸收)。
func (c *Client) persist(ctx context.Context, ev *timeline.Event) {
	if c.events == nil {
		return
	}
	row, err := store.NewMessageEvent(ev)
	if err != nil {
		logger.Warn("ingest: event not persistable",
			logger.FieldConversationID, ev.ConversationID, logger.FieldError, err)
		return
	}
	util.SafeGo(func() {
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := c.events.Insert(opCtx, row); err != nil {
			logger.Error("ingest: persist event failed",
				logger.FieldConversationID, ev.ConversationID, logger.FieldError, err)
			return
		}
		if c.convs != nil {
			if err := c.convs.Touch(opCtx, ev.ConversationID); err != nil {
				logger.Warn("ingest: touch conversation failed",
					logger.FieldConversationID, ev.ConversationID, logger.FieldError, err)
			}
		}
	})
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (c *Client) replaceConn(conn *websocket.Conn) {
	c.wsMu.Lock()
	prev := c.ws
	c.ws = conn
	c.wsMu.Unlock()
	if prev != nil && prev != conn {
		_ = prev.Close()
	}
}

func (c *Client) closeConn() {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
}
