// Package apierror 统一网关对客户端可见的错误形状：
// {"type":"error","error":{"type":..., "message":...}}，并承担把它写给 gin.Context 的职责。
package apierror

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"cmm-gateway/internal/logger"
)

// Type 是暴露给客户端的错误分类，与 Anthropic 的错误分类对齐。
type Type string

const (
	// TypeAPI 上游非 2xx（429 除外）、超时、连接失败、解析失败或内部错误。
	TypeAPI Type = "api_error"
	// TypeRateLimit 429 耗尽重试次数后上报。
	TypeRateLimit Type = "rate_limit_error"
	// TypeAuthentication 本地缺少 token，或上游 401 不可恢复。
	TypeAuthentication Type = "authentication_error"
	// TypeOverloaded 预留给未来的过载信号，当前无调用方产生。
	TypeOverloaded Type = "overloaded_error"
)

// Body 是写给客户端的完整 JSON 负载。
type Body struct {
	ErrType string `json:"type"`
	Error   Info   `json:"error"`
}

// Info 是 Body.Error 字段的内容。
type Info struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error 实现 error，携带分类和建议的 HTTP 状态码。
type Error struct {
	Typ     Type
	Status  int
	Message string
}

func (e *Error) Error() string { return string(e.Typ) + ": " + e.Message }

// New 构造一个 apierror.Error。
func New(typ Type, status int, message string) *Error {
	return &Error{Typ: typ, Status: status, Message: message}
}

// APIErrorf 构造一个 api_error，状态码由调用方指定（上游失败用 502，请求体读取/解析失败用 400）。
func APIErrorf(status int, format string, args ...any) *Error {
	return New(TypeAPI, status, fmt.Sprintf(format, args...))
}

// RateLimit 构造一个 429 rate_limit_error。
func RateLimit(message string) *Error {
	return New(TypeRateLimit, http.StatusTooManyRequests, message)
}

// Authentication 构造一个 authentication_error，状态码由调用方指定（401 或 502）。
func Authentication(status int, message string) *Error {
	return New(TypeAuthentication, status, message)
}

// Body 把 Error 转换为客户端可见的 JSON 负载。
func (e *Error) Body() Body {
	return Body{
		ErrType: "error",
		Error: Info{
			Type:    string(e.Typ),
			Message: e.Message,
		},
	}
}

// Respond 记录错误并在响应头尚未发出时把 Error 写给客户端；若响应已经开始，
// 仅记录日志，调用方负责中断流式输出。
func Respond(c *gin.Context, operation string, err *Error) {
	logger.Error(operation+"失败",
		logger.String("request_id", c.GetString("request_id")),
		logger.String("errorType", string(err.Typ)),
		logger.Err(err))
	if c.Writer.Written() {
		return
	}
	c.JSON(err.Status, err.Body())
}
