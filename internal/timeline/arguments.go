package timeline

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// RepairArguments 把流式拼接出的 (可能被截断的) 工具参数修复为合法
// JSON, 供展示层使用。已合法或修复失败时原样返回, 永不报错。
func RepairArguments(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}
	repaired, err := jsonrepair.JSONRepair(trimmed)
	if err != nil {
		return raw
	}
	return repaired
}
