package config

import "time"

// 请求体/响应体尺寸上限
const (
	// MaxBodySize 客户端请求体上限
	MaxBodySize = 10 * 1024 * 1024

	// MaxSSEBuffer SSE Framer 缓冲区上限，超出视为 stream overflow
	MaxSSEBuffer = 5 * 1024 * 1024

	// MaxErrorBody 429 响应体和直通 400 响应体嗅探时的捕获上限（其余非 200 响应只截取 200 字节摘要）
	MaxErrorBody = 8 * 1024

	// MaxResponseBody 非流式上游响应体上限
	MaxResponseBody = 10 * 1024 * 1024
)

// 超时配置
const (
	// TimeoutStreaming 流式上游请求超时
	TimeoutStreaming = 300 * time.Second

	// TimeoutNonStreaming 非流式上游请求超时
	TimeoutNonStreaming = 120 * time.Second

	// TimeoutPassthrough Anthropic 直通上游超时
	TimeoutPassthrough = 120 * time.Second

	// TimeoutOAuthRefresh OAuth token 刷新超时
	TimeoutOAuthRefresh = 10 * time.Second
)

// 重试/限流配置
const (
	// MaxRetries 429 重试上限
	MaxRetries = 3

	// DefaultRetryDelay 无法从响应解析出重试时延时使用的默认值
	DefaultRetryDelay = 10 * time.Second
)

// MaxSchemaDepth 是 clean_schema 递归的深度上限，防御病态 schema。
const MaxSchemaDepth = 32

// 日志文件滚动配置
const (
	// LogMaxSize 单个日志文件达到该大小后触发滚动
	LogMaxSize = 1024 * 1024

	// LogMaxBackups 滚动备份的最大数量（.1 最新，.3 最旧）
	LogMaxBackups = 3
)
