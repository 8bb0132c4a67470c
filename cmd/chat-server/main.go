// cmd/chat-server — 会话时间线服务主入口。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liuyingduo/petool-chat/internal/config"
	"github.com/liuyingduo/petool-chat/internal/database"
	"github.com/liuyingduo/petool-chat/internal/ingest"
	"github.com/liuyingduo/petool-chat/internal/server"
	"github.com/liuyingduo/petool-chat/internal/store"
	"github.com/liuyingduo/petool-chat/internal/timeline"
	"github.com/liuyingduo/petool-chat/pkg/logger"
	"github.com/liuyingduo/petool-chat/pkg/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger.Init(cfg.Env)
	if cfg.LogDir != "" {
		if err := logger.InitWithFile(cfg.LogDir); err != nil {
			logger.Warn("file logging unavailable", logger.Any(logger.FieldError, err))
		}
		defer logger.ShutdownFileHandler()
	}

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("database init failed", logger.Any(logger.FieldError, err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, os.DirFS("./migrations")); err != nil {
		logger.Fatal("migration failed", logger.Any(logger.FieldError, err))
	}

	stores := &server.Stores{
		Conversations: store.NewConversationStore(pool),
		Messages:      store.NewMessageStore(pool),
		Events:        store.NewMessageEventStore(pool),
	}

	manager := timeline.NewManager()
	srv := server.NewServer(stores, manager, cfg.MessageListLimit, cfg.EventListLimit)

	// 上游事件流订阅 (未配置时只提供 REST/回放能力)
	if cfg.GatewayWSURL != "" {
		client := ingest.NewClient(cfg.GatewayWSURL, manager, stores.Events, stores.Conversations)
		client.ReconnectDelay = time.Duration(cfg.GatewayReconnectSec) * time.Second
		client.PingInterval = time.Duration(cfg.GatewayPingSec) * time.Second
		util.SafeGo(func() { client.Run(ctx) })
	} else {
		logger.Warn("GATEWAY_WS_URL not set, live ingest disabled")
	}

	logger.Infow("chat-server starting", logger.FieldAddr, cfg.HTTPAddr)

	util.SafeGo(func() {
		if err := srv.Engine().Run(cfg.HTTPAddr); err != nil {
			logger.Fatal("server failed", logger.Any(logger.FieldError, err))
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")
}
