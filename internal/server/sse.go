// sse.go — SSE 事件总线 + handler。
package server

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/liuyingduo/petool-chat/pkg/logger"
)

// EventBus 事件总线 (SSE 推送)。
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
}

// Event SSE 事件。
type Event struct {
	Type string
	Data any
}

// NewEventBus 创建事件总线。
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]chan Event)}
}

// Publish 广播事件。慢订阅者直接丢帧, 不阻塞发布方。
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe 订阅。
func (b *EventBus) Subscribe(id string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, 32)
	b.subscribers[id] = ch
	return ch
}

// Unsubscribe 取消订阅。
//
// 不关闭 ch — sseHandler 通过 ctx.Done() 退出, GC 回收未引用的 channel。
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// sseHandler Gin SSE handler。
func (s *Server) sseHandler(c *gin.Context) {
	clientID := fmt.Sprintf("sse-%d", time.Now().UnixNano())
	ch := s.bus.Subscribe(clientID)
	defer func() {
		s.bus.Unsubscribe(clientID)
		logger.Info("server: SSE client disconnected", "client_id", clientID)
	}()

	logger.Info("server: SSE client connected", "client_id", clientID)

	c.Stream(func(w io.Writer) bool {
		keepalive := time.NewTimer(30 * time.Second)
		defer keepalive.Stop()

		select {
		case evt, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(evt.Type, evt.Data)
			return true
		case <-keepalive.C:
			c.SSEvent("ping", "keepalive")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
