// Package server 对外 REST + SSE 服务: 会话管理、时间线读取、派生状态查询。
package server

import (
	"github.com/gin-gonic/gin"

	"github.com/liuyingduo/petool-chat/internal/store"
	"github.com/liuyingduo/petool-chat/internal/timeline"
)

// Server 聊天时间线 HTTP 服务。
type Server struct {
	router  *gin.Engine
	stores  *Stores
	manager *timeline.Manager
	bus     *EventBus

	messageLimit int
	eventLimit   int
}

// Stores 聚合 store 依赖 (一次注入)。
type Stores struct {
	Conversations *store.ConversationStore
	Messages      *store.MessageStore
	Events        *store.MessageEventStore
}

// NewServer 创建服务并把时间线变更接到 SSE 总线上。
func NewServer(stores *Stores, manager *timeline.Manager, messageLimit, eventLimit int) *Server {
	r := gin.Default()
	s := &Server{
		router:       r,
		stores:       stores,
		manager:      manager,
		bus:          NewEventBus(),
		messageLimit: messageLimit,
		eventLimit:   eventLimit,
	}
	s.registerRoutes()

	// 每次 append/回放/流式标志变化后显式通知, 由订阅端决定重新拉取什么
	manager.OnChange(func(conversationID string) {
		s.bus.Publish(Event{Type: "timeline_changed", Data: gin.H{
			"conversationId": conversationID,
			"streaming":      manager.IsStreaming(conversationID),
		}})
	})
	return s
}

// Engine 返回 Gin 引擎。
func (s *Server) Engine() *gin.Engine { return s.router }

// Bus 返回 SSE 事件总线。
func (s *Server) Bus() *EventBus { return s.bus }
