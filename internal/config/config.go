// Package config 全局配置加载与管理。
//
// 所有字段通过 struct tag 声明环境变量映射:
//
//	`env:"VAR_NAME" default:"value" min:"0"`
//
// Load() 使用反射自动填充，无需手动逐行赋值。
package config

import (
	"github.com/liuyingduo/petool-chat/pkg/util"
)

// Config 应用全局配置，字段名与 .env 变量一一对应。
type Config struct {
	// HTTP API
	HTTPAddr string `env:"HTTP_ADDR" default:":8080"`

	// 上游 LLM 事件流 (WebSocket 推送)。为空时不启动 ingest。
	GatewayWSURL        string `env:"GATEWAY_WS_URL"`
	GatewayReconnectSec int    `env:"GATEWAY_RECONNECT_SEC" default:"3" min:"1"`
	GatewayPingSec      int    `env:"GATEWAY_PING_SEC" default:"20" min:"5"`

	// PostgreSQL
	PostgresConnStr     string `env:"POSTGRES_CONNECTION_STRING"`
	PostgresSchema      string `env:"POSTGRES_SCHEMA" default:"public"`
	PostgresPoolMinSize int    `env:"POSTGRES_POOL_MIN_SIZE" default:"1" min:"1"`
	PostgresPoolMaxSize int    `env:"POSTGRES_POOL_MAX_SIZE" default:"10" min:"1"`

	// 查询分页
	MessageListLimit int `env:"MESSAGE_LIST_LIMIT" default:"500" min:"1"`
	EventListLimit   int `env:"EVENT_LIST_LIMIT" default:"5000" min:"1"`

	// 运行环境与日志
	Env    string `env:"APP_ENV" default:"production"`
	LogDir string `env:"LOG_DIR"`
}

// Load 从环境变量加载配置 (通过反射读取 struct tag)。
func Load() *Config {
	var cfg Config
	util.LoadFromEnv(&cfg)
	return &cfg
}
