// Package passthrough 实现 C5：把未命中模型前缀路由的请求按字节级原样转发给
// 真实的 Anthropic 端点，TCP 连到缓存的 IP 但 TLS SNI/Host 仍是真实域名。
package passthrough

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"

	"cmm-gateway/internal/apierror"
	"cmm-gateway/internal/certstore"
	"cmm-gateway/internal/config"
	"cmm-gateway/internal/httptransport"
)

// hopByHopHeaders 在转发请求/响应时必须剔除的逐跳头部。
var hopByHopHeaders = map[string]bool{
	"Host":              true,
	"Connection":        true,
	"Transfer-Encoding": true,
	"Keep-Alive":        true,
	"Proxy-Connection":  true,
}

// thinkingSignatureMarker 是上游在 thinking 签名校验失败时返回的错误文案片段。
const thinkingSignatureMarker = "Invalid `signature` in `thinking` block"

// RetryBodyFunc 在一次 400 thinking-signature 失败后，产出用于单次重试的新请求体。
type RetryBodyFunc func() []byte

// FrameWriter 是透传响应的下游出口。
type FrameWriter interface {
	http.ResponseWriter
	http.Flusher
}

// Client 是 C5 的入口，持有缓存 IP 与真实主机名/端口。
type Client struct {
	ips        *certstore.IPCache
	realHost   string
	realPort   string
	httpClient *http.Client
}

// NewClient 从 Config 和一个共享的 IPCache 装配 Client。
// IPCache 本身的写入（磁盘上没有缓存时 main 的冷启动解析、后续刷新）不在这里；
// Client 只读取它当前的值。
func NewClient(cfg *config.Config, ips *certstore.IPCache) *Client {
	c := &Client{
		ips:      ips,
		realHost: cfg.AnthropicRealHost,
		realPort: cfg.AnthropicRealPort,
	}
	transport := httptransport.NewPinnedTransport(c.dialAddr, cfg.AnthropicRealHost)
	c.httpClient = &http.Client{
		Timeout:   config.TimeoutPassthrough,
		Transport: transport,
		// 重定向留给客户端自己处理——直通代理转发字节，不跟随跳转。
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return c
}

func (c *Client) dialAddr() string {
	ip := c.ips.Get()
	if ip == "" {
		ip = c.realHost
	}
	return net.JoinHostPort(ip, c.realPort)
}

// Forward 把一次 HTTP 请求字节级转发给真实 Anthropic 端点，把响应字节级转发回客户端。
// retryBodyFn 非 nil 时，若上游以 400 + thinking-signature 错误拒绝，按策略单次重试。
func (c *Client) Forward(ctx context.Context, method, path string, headers http.Header, body []byte, w FrameWriter, retryBodyFn RetryBodyFunc) *apierror.Error {
	resp, apiErr := c.do(ctx, method, path, headers, body)
	if apiErr != nil {
		return apiErr
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest && retryBodyFn != nil {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(config.MaxErrorBody)))
		if err != nil {
			return apierror.APIErrorf(http.StatusBadGateway, "读取上游响应失败: %v", err)
		}

		text, decodeErr := decodeBody(raw, resp.Header.Get("Content-Encoding"))
		if decodeErr == nil && strings.Contains(text, thinkingSignatureMarker) {
			resp.Body.Close()
			retryResp, retryErr := c.do(ctx, method, path, headers, retryBodyFn())
			if retryErr != nil {
				return retryErr
			}
			defer retryResp.Body.Close()
			return relay(retryResp, w)
		}

		// 嗅探只看前 MaxErrorBody 字节；转发给客户端的必须是完整正文。
		rest, err := io.ReadAll(resp.Body)
		if err != nil {
			return apierror.APIErrorf(http.StatusBadGateway, "读取上游响应失败: %v", err)
		}
		return relayBuffered(resp, append(raw, rest...), w)
	}

	return relay(resp, w)
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header, body []byte) (*http.Response, *apierror.Error) {
	req, err := http.NewRequestWithContext(ctx, method, "https://"+c.realHost+path, bytes.NewReader(body))
	if err != nil {
		return nil, apierror.APIErrorf(http.StatusBadGateway, "构造直通请求失败: %v", err)
	}
	req.Header = cloneFilteredHeaders(headers)
	req.Host = c.realHost
	req.Header.Set("Host", c.realHost)
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apierror.APIErrorf(http.StatusBadGateway, "客户端已断开: %v", ctx.Err())
		}
		return nil, apierror.APIErrorf(http.StatusBadGateway, "连接上游失败: %v", err)
	}
	return resp, nil
}

// cloneFilteredHeaders 拷贝请求头并剔除逐跳头部；Host 由调用方单独设置。
func cloneFilteredHeaders(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, vv := range src {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		dst[k] = append([]string(nil), vv...)
	}
	return dst
}

// relay 把响应状态行、头部（剔除逐跳头）和正文原样转发给客户端，带反压：
// 每次写入后立即 Flush，下一次上游读取才会发生，天然随下游消费速度节流。
func relay(resp *http.Response, w FrameWriter) *apierror.Error {
	copyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	w.Flush()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return nil // 客户端已断开，响应已部分发出，不再报错
			}
			w.Flush()
		}
		if readErr != nil {
			if readErr != io.EOF {
				return nil
			}
			break
		}
	}
	return nil
}

// relayBuffered 转发一个已经被完整读入内存的响应（400 路径：为了嗅探
// thinking-signature 错误，响应体已被缓冲读出）。
func relayBuffered(resp *http.Response, body []byte, w FrameWriter) *apierror.Error {
	copyResponseHeaders(w, resp.Header)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
	w.Flush()
	return nil
}

func copyResponseHeaders(w http.ResponseWriter, src http.Header) {
	for k, vv := range src {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
}

// decodeBody 按 content-encoding 解压响应体，用于在 400 响应里嗅探
// thinking-signature 错误文案。identity（或未知编码）原样返回。
func decodeBody(body []byte, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		return string(out), err
	case "br":
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		return string(out), err
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out, err := io.ReadAll(r)
		return string(out), err
	default:
		return string(body), nil
	}
}
