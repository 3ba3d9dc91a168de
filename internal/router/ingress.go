package router

import (
	"fmt"

	"cmm-gateway/internal/jsonutil"
)

// normalizeIngressJSON 把原始请求体解析为通用 map，并在解析失败时返回错误——
// router 把这个错误当成 spec §7 的 "Malformed request JSON → passthrough" 信号，
// 不是面向客户端的错误。同时顺手标准化工具形状（见 normalizeTools）：
// 带齐 {name, description, input_schema} 的工具项被重建为只含这三个字段的副本，
// 混入的其它字段被丢弃；缺字段的工具项原样保留；不是 JSON 对象的工具项被丢弃。
func normalizeIngressJSON(body []byte) (map[string]any, error) {
	var raw map[string]any
	if err := jsonutil.SafeUnmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("解析请求体失败: %w", err)
	}

	if tools, ok := raw["tools"].([]any); ok {
		raw["tools"] = normalizeTools(tools)
	}

	return raw, nil
}

// normalizeTools 规整化工具数组：已经是简化形状（直接带 name/description/
// input_schema 三个字段）的条目被重建为只含这三个字段的干净副本，丢弃混入的
// 多余字段；缺任一字段的条目原样保留，交给下游的严格类型反序列化处理。
func normalizeTools(tools []any) []any {
	out := make([]any, 0, len(tools))
	for _, t := range tools {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		name, hasName := m["name"]
		description, hasDesc := m["description"]
		inputSchema, hasSchema := m["input_schema"]
		if hasName && hasDesc && hasSchema {
			out = append(out, map[string]any{
				"name":         name,
				"description":  description,
				"input_schema": inputSchema,
			})
			continue
		}
		out = append(out, m)
	}
	return out
}

// stripThinkingBlocks 从 assistant 消息的内容块里移除全部 thinking 块，
// 用作直通路径 400 thinking-signature 重试的 retryBodyFn。策略：保留消息
// 及其剩余块，从不丢弃整条消息——只含 thinking 块的 assistant 消息会以
// 空内容数组保留下来。
func stripThinkingBlocks(raw map[string]any) []byte {
	messages, ok := raw["messages"].([]any)
	if !ok {
		out, _ := jsonutil.SafeMarshal(raw)
		return out
	}

	stripped := make(map[string]any, len(raw))
	for k, v := range raw {
		stripped[k] = v
	}

	newMessages := make([]any, len(messages))
	for i, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			newMessages[i] = m
			continue
		}
		if msg["role"] != "assistant" {
			newMessages[i] = msg
			continue
		}
		content, ok := msg["content"].([]any)
		if !ok {
			newMessages[i] = msg
			continue
		}

		filtered := make([]any, 0, len(content))
		for _, b := range content {
			block, ok := b.(map[string]any)
			if ok && block["type"] == "thinking" {
				continue
			}
			filtered = append(filtered, b)
		}

		newMsg := make(map[string]any, len(msg))
		for k, v := range msg {
			newMsg[k] = v
		}
		newMsg["content"] = filtered
		newMessages[i] = newMsg
	}
	stripped["messages"] = newMessages

	out, _ := jsonutil.SafeMarshal(stripped)
	return out
}
