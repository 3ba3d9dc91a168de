// Package jsonutil 统一网关的 JSON 编解码路径，全部基于 sonic。
package jsonutil

import "github.com/bytedance/sonic"

var (
	// FastConfig 用于性能关键路径（SSE 帧编码、转发时的逐块序列化）。
	FastConfig = sonic.ConfigFastest

	// SafeConfig 用于解析不受信输入（客户端/上游请求体），带更严格的校验。
	SafeConfig = sonic.ConfigStd
)

// FastMarshal 高性能 JSON 序列化，用于已知结构良好的内部值。
func FastMarshal(v any) ([]byte, error) {
	return FastConfig.Marshal(v)
}

// FastUnmarshal 高性能 JSON 反序列化。
func FastUnmarshal(data []byte, v any) error {
	return FastConfig.Unmarshal(data, v)
}

// SafeMarshal 带校验的 JSON 序列化，用于直通重试请求体和 JSON 日志行。
func SafeMarshal(v any) ([]byte, error) {
	return SafeConfig.Marshal(v)
}

// SafeUnmarshal 带校验的 JSON 反序列化，用于解析客户端/上游来的原始请求体。
func SafeUnmarshal(data []byte, v any) error {
	return SafeConfig.Unmarshal(data, v)
}
