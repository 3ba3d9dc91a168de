// Package httptransport 提供网关面向上游的、按用途调优的 http.Client 实例。
package httptransport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"cmm-gateway/internal/config"
)

// UnaryClient 用于非流式 Gemini 调用。
// StreamingClient 用于流式 Gemini 调用，响应头超时更宽松、每主机空闲连接数更多。
// PassthroughClient 用于 Anthropic 字节级直通代理。
var (
	UnaryClient       *http.Client
	StreamingClient   *http.Client
	PassthroughClient *http.Client
)

func init() {
	UnaryClient = &http.Client{
		Timeout:   config.TimeoutNonStreaming,
		Transport: newTransport(60*time.Second, 50),
	}

	streamTransport := newTransport(10*time.Minute, 100)
	streamTransport.WriteBufferSize = 64 * 1024
	streamTransport.ReadBufferSize = 64 * 1024
	StreamingClient = &http.Client{
		Timeout:   config.TimeoutStreaming,
		Transport: streamTransport,
	}

	PassthroughClient = &http.Client{
		Timeout:   config.TimeoutPassthrough,
		Transport: newTransport(60*time.Second, 50),
	}
}

// newTransport 构造一个连接池已调优的 http.Transport。
// responseHeaderTimeout 按用途区分（流式响应头到达可能明显更慢），
// maxIdleConnsPerHost 同理。
func newTransport(responseHeaderTimeout time.Duration, maxIdleConnsPerHost int) *http.Transport {
	return &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     120 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 60 * time.Second,
			DualStack: true,
		}).DialContext,

		TLSHandshakeTimeout: 15 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_AES_256_GCM_SHA384,
				tls.TLS_CHACHA20_POLY1305_SHA256,
				tls.TLS_AES_128_GCM_SHA256,
			},
		},

		ForceAttemptHTTP2:     true,
		WriteBufferSize:       32 * 1024,
		ReadBufferSize:        32 * 1024,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: 2 * time.Second,
	}
}

// NewPinnedTransport 返回一个把 TCP 拨号钉死在 resolveAddr() 当前返回值、但 TLS
// SNI/证书校验仍按 serverName 走的 Transport，供 C5 直通代理连到缓存的上游 IP
// 时使用。resolveAddr 在每次拨号时被重新调用，而不是在构造时固定一次，这样
// certstore 对缓存 IP 的原子替换能立即影响下一次连接，不需要重建 Transport。
func NewPinnedTransport(resolveAddr func() string, serverName string) *http.Transport {
	t := newTransport(30*time.Second, 20)
	dialer := &net.Dialer{Timeout: 15 * time.Second, KeepAlive: 60 * time.Second}
	t.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, resolveAddr())
	}
	t.TLSClientConfig = &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	return t
}
