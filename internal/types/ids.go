package types

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewMessageID 生成 "msg_cmm_" + base64url(12字节随机数) 形式的消息 ID。
func NewMessageID() string {
	return "msg_cmm_" + randomToken(12)
}

// NewToolUseID 生成 "toolu_cmm_" + base64url(12字节随机数) 形式的工具调用 ID。
func NewToolUseID() string {
	return "toolu_cmm_" + randomToken(12)
}

// NewThinkingSignature 生成 base64(64字节随机数) 形式的思考签名。
func NewThinkingSignature() string {
	buf := make([]byte, 64)
	_, _ = rand.Read(buf)
	return base64.StdEncoding.EncodeToString(buf)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// NewCorrelationID 生成一个用于日志关联的请求 ID，与 spec 规定的消息/工具 ID 格式无关。
func NewCorrelationID() string {
	return uuid.NewString()
}
