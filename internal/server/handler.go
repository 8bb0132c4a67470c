// handler.go — REST API handlers。
package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/liuyingduo/petool-chat/internal/store"
	"github.com/liuyingduo/petool-chat/internal/timeline"
	"github.com/liuyingduo/petool-chat/pkg/util"
)

// registerRoutes 注册 API 路由。
func (s *Server) registerRoutes() {
	api := s.router.Group("/api")

	api.GET("/conversations", s.listConversations)
	api.POST("/conversations", s.createConversation)
	api.GET("/conversations/:id", s.getConversation)
	api.PUT("/conversations/:id/title", s.renameConversation)
	api.DELETE("/conversations/:id", s.deleteConversation)

	api.GET("/conversations/:id/messages", s.listMessages)
	api.POST("/conversations/:id/messages", s.createMessage)

	api.GET("/conversations/:id/timeline", s.getTimeline)
	api.GET("/conversations/:id/derived", s.getDerived)
	api.POST("/conversations/:id/streaming", s.setStreaming)

	api.POST("/events", s.postEvent)
	api.GET("/streaming", s.getStreaming)

	api.GET("/events/stream", s.sseHandler)
}

func queryLimit(c *gin.Context, def int) int {
	v, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if v < 1 {
		return def
	}
	if v > 10000 {
		return 10000
	}
	return v
}

// ========================================
// Conversations
// ========================================

func (s *Server) listConversations(c *gin.Context) {
	items, err := s.stores.Conversations.List(c.Request.Context(),
		c.Query("keyword"), queryLimit(c, 100))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, items)
}

func (s *Server) createConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	conv := &store.Conversation{Title: util.FirstNonEmpty(req.Title, "新对话")}
	if err := s.stores.Conversations.Create(c.Request.Context(), conv); err != nil {
		respondError(c, err)
		return
	}
	created(c, conv)
}

func (s *Server) getConversation(c *gin.Context) {
	conv, err := s.stores.Conversations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, conv)
}

func (s *Server) renameConversation(c *gin.Context) {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		badRequest(c, "invalid_request", "title is required")
		return
	}
	if err := s.stores.Conversations.UpdateTitle(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"id": c.Param("id"), "title": req.Title})
}

func (s *Server) deleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := s.stores.Conversations.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	s.manager.ClearConversation(id)
	success(c, gin.H{"id": id})
}

// ========================================
// Messages
// ========================================

func (s *Server) listMessages(c *gin.Context) {
	items, err := s.stores.Messages.ListByConversation(c.Request.Context(),
		c.Param("id"), queryLimit(c, s.messageLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, items)
}

func (s *Server) createMessage(c *gin.Context) {
	var msg store.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	msg.ConversationID = c.Param("id")
	if msg.Role == "" {
		badRequest(c, "invalid_request", "role is required")
		return
	}
	if err := s.stores.Messages.Insert(c.Request.Context(), &msg); err != nil {
		respondError(c, err)
		return
	}
	if err := s.stores.Conversations.Touch(c.Request.Context(), msg.ConversationID); err != nil {
		respondError(c, err)
		return
	}
	created(c, msg)
}

// ========================================
// Timeline & derived state
// ========================================

// getTimeline 返回会话的规范化时间线。内存中没有时从事件日志回放
// (旧会话无事件日志时由 store 层从消息合成)。
func (s *Server) getTimeline(c *gin.Context) {
	id := c.Param("id")

	list := s.manager.Timeline(id)
	if len(list) == 0 {
		events, err := s.stores.Events.TimelineEvents(c.Request.Context(),
			s.stores.Messages, id, queryLimit(c, s.eventLimit))
		if err != nil {
			respondError(c, err)
			return
		}
		s.manager.ReplayEvents(id, events)
		list = s.manager.Timeline(id)
	}

	success(c, gin.H{
		"conversationId": id,
		"streaming":      s.manager.IsStreaming(id),
		"events":         list,
	})
}

// renderedMessage 消息行 + 派生的展示口径。
type renderedMessage struct {
	Message          timeline.Message `json:"message"`
	DisplayedContent string           `json:"displayed_content"`
	Renderable       bool             `json:"renderable"`
}

// getDerived 对持久化消息做 hydration, 返回派生状态与每条消息的
// 展示视图。工具参数在出口处做 JSON 修复 (存储内保持原始拼接值)。
func (s *Server) getDerived(c *gin.Context) {
	id := c.Param("id")

	messages, err := s.stores.Messages.TimelineMessages(c.Request.Context(),
		id, queryLimit(c, s.messageLimit))
	if err != nil {
		respondError(c, err)
		return
	}

	state := timeline.Hydrate(messages)
	for rootID, records := range state.ToolHistory {
		for i := range records {
			records[i].Arguments = timeline.RepairArguments(records[i].Arguments)
		}
		state.ToolHistory[rootID] = records
	}

	streaming := s.manager.IsStreaming(id)
	rendered := make([]renderedMessage, 0, len(messages))
	for _, msg := range messages {
		rendered = append(rendered, renderedMessage{
			Message:          msg,
			DisplayedContent: timeline.DisplayedContent(msg, state),
			Renderable:       timeline.IsRenderable(msg, state, streaming),
		})
	}

	success(c, gin.H{
		"conversationId": id,
		"streaming":      streaming,
		"derived":        state,
		"messages":       rendered,
	})
}

func (s *Server) setStreaming(c *gin.Context) {
	var req struct {
		Streaming *bool `json:"streaming"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Streaming == nil {
		badRequest(c, "invalid_request", "streaming flag is required")
		return
	}
	s.manager.SetStreaming(c.Param("id"), *req.Streaming)
	success(c, gin.H{"id": c.Param("id"), "streaming": *req.Streaming})
}

// ========================================
// Events
// ========================================

// postEvent 手工注入一条事件 (调试/补录)。与 ingest 路径走同一套
// 归一化、合并与落库逻辑。
func (s *Server) postEvent(c *gin.Context) {
	var ev timeline.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	if ev.ConversationID == "" || ev.EventType == "" {
		badRequest(c, "invalid_request", "conversationId and eventType are required")
		return
	}

	s.manager.Append(&ev)

	row, err := store.NewMessageEvent(&ev)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.stores.Events.Insert(c.Request.Context(), row); err != nil {
		respondError(c, err)
		return
	}
	created(c, &ev)
}

func (s *Server) getStreaming(c *gin.Context) {
	success(c, gin.H{
		"any":           s.manager.IsAnyStreaming(),
		"conversations": s.manager.StreamingConversations(),
	})
}
