// Package geminiclient 实现 C4：面向上游 Gemini 兼容端点的流式/非流式客户端，
// 内置 429 退避重试、401 重新鉴权、以及按部署差异可插拔的请求/响应包装策略。
package geminiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"cmm-gateway/internal/apierror"
	"cmm-gateway/internal/config"
	"cmm-gateway/internal/httptransport"
	"cmm-gateway/internal/jsonutil"
	"cmm-gateway/internal/logger"
	"cmm-gateway/internal/oauth"
	"cmm-gateway/internal/sseframer"
	"cmm-gateway/internal/streamtranslator"
	"cmm-gateway/internal/translator"
	"cmm-gateway/internal/types"
)

// retryAfterPattern 匹配响应体里形如 "reset after 3s" / "retry after 12 s" 的提示。
var retryAfterPattern = regexp.MustCompile(`(?i)(reset|retry)\s+after\s+(\d+)\s*s`)

// FrameWriter 是流式响应的下游出口，由 router 用 gin 的底层 ResponseWriter 适配。
type FrameWriter interface {
	http.ResponseWriter
	http.Flusher
}

// Client 是 C4 的入口，持有上游端点配置和鉴权缓存。
type Client struct {
	endpoint  string
	wrapped   bool
	headerTag string
	tokens    *oauth.Cache
}

// NewClient 从 Config 装配一个 Client。authorize() 在这个部署里只是返回静态
// API Key，但仍然走 oauth.Cache 的刷新合并机制，使 401 重试路径和未来换成
// 真正 OAuth 流程时的代码路径保持一致。
func NewClient(cfg *config.Config) *Client {
	tokens := oauth.New(func(ctx context.Context) (oauth.Token, error) {
		if cfg.GeminiAPIKey == "" {
			return oauth.Token{}, fmt.Errorf("CMM_GEMINI_API_KEY 未设置")
		}
		return oauth.Token{AccessToken: cfg.GeminiAPIKey, ExpiresAt: time.Now().Add(24 * time.Hour)}, nil
	}, config.TokenCacheTTL)

	return &Client{
		endpoint:  cfg.GeminiEndpoint,
		wrapped:   cfg.GeminiWrapped,
		headerTag: cfg.GeminiHeaderTag,
		tokens:    tokens,
	}
}

// buildUpstreamBody 构造发往上游的请求体，按部署策略决定是否包一层 {model, request}。
func (c *Client) buildUpstreamBody(anthReq *types.AnthropicRequest, targetModel string) ([]byte, error) {
	gemReq := translator.AnthropicToGemini(anthReq)
	gemReq.Model = targetModel

	if !c.wrapped {
		return jsonutil.FastMarshal(gemReq)
	}
	return jsonutil.FastMarshal(types.WrappedGeminiRequest{Model: targetModel, Request: *gemReq})
}

// unwrap 按部署策略从响应体里取出真正的 GeminiResponse。
func (c *Client) unwrap(body []byte) (*types.GeminiResponse, error) {
	if !c.wrapped {
		var res types.GeminiResponse
		if err := jsonutil.FastUnmarshal(body, &res); err != nil {
			return nil, err
		}
		return &res, nil
	}
	var wrapped types.WrappedGeminiResponse
	if err := jsonutil.FastUnmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return &wrapped.Response, nil
}

func (c *Client) newRequest(ctx context.Context, body []byte, targetModel string, token oauth.Token) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	if targetModel != "" {
		req.Header.Set("X-Model", targetModel)
	}
	return req, nil
}

// Unary 执行非流式请求：转换、发送、重试，把上游响应转换回 Anthropic 格式写给 w。
func (c *Client) Unary(ctx context.Context, w http.ResponseWriter, anthReq *types.AnthropicRequest, targetModel string) *apierror.Error {
	body, err := c.buildUpstreamBody(anthReq, targetModel)
	if err != nil {
		return apierror.APIErrorf(http.StatusBadGateway, "构造上游请求失败: %v", err)
	}

	resp, apiErr := c.doWithRetry(ctx, body, targetModel, httptransport.UnaryClient)
	if apiErr != nil {
		return apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxResponseBody))
	if err != nil {
		return apierror.APIErrorf(http.StatusBadGateway, "读取上游响应失败: %v", err)
	}

	gemRes, err := c.unwrap(raw)
	if err != nil {
		return apierror.APIErrorf(http.StatusBadGateway, "解析上游响应失败: %v", err)
	}

	anthRes := translator.GeminiResponseToAnthropic(gemRes, anthReq.Model)
	out, err := jsonutil.FastMarshal(anthRes)
	if err != nil {
		return apierror.APIErrorf(http.StatusBadGateway, "序列化响应失败: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cmm-Provider", c.headerTag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
	return nil
}

// Stream 执行流式请求：打开上游连接，逐块喂给 Framer/Translator，把产出的帧实时写给客户端。
// ctx 取消（客户端断开）会中止上游请求。
func (c *Client) Stream(ctx context.Context, w FrameWriter, anthReq *types.AnthropicRequest, targetModel string) *apierror.Error {
	body, err := c.buildUpstreamBody(anthReq, targetModel)
	if err != nil {
		return apierror.APIErrorf(http.StatusBadGateway, "构造上游请求失败: %v", err)
	}

	resp, apiErr := c.doWithRetry(ctx, body, targetModel, httptransport.StreamingClient)
	if apiErr != nil {
		return apiErr
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Cmm-Provider", c.headerTag)
	w.WriteHeader(http.StatusOK)
	w.Flush()

	tr := streamtranslator.New(anthReq.Model)
	framer := sseframer.New(config.MaxSSEBuffer)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, feedErr := framer.Feed(buf[:n])
			if feedErr != nil {
				logger.Error("SSE缓冲区溢出", logger.Err(feedErr))
				return nil // 响应已部分发出，按策略中止而不再报错给客户端
			}
			if writeErr := writeEvents(w, tr, events, c.wrapped); writeErr != nil {
				return nil
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				logger.Warn("读取上游流失败", logger.Err(readErr))
			}
			break
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}

	if err := writeEvents(w, tr, framer.Flush(), c.wrapped); err != nil {
		return nil
	}
	return nil
}

func writeEvents(w FrameWriter, tr *streamtranslator.Translator, events []json.RawMessage, wrapped bool) error {
	for _, raw := range events {
		chunk, err := decodeChunk(raw, wrapped)
		if err != nil {
			continue
		}
		for _, frame := range tr.ProcessChunk(chunk) {
			if err := writeFrame(w, frame); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeChunk(raw []byte, wrapped bool) (*types.GeminiStreamChunk, error) {
	if !wrapped {
		var chunk types.GeminiStreamChunk
		if err := jsonutil.FastUnmarshal(raw, &chunk); err != nil {
			return nil, err
		}
		return &chunk, nil
	}
	var w types.WrappedGeminiResponse
	if err := jsonutil.FastUnmarshal(raw, &w); err != nil {
		return nil, err
	}
	return &w.Response, nil
}

func writeFrame(w FrameWriter, frame types.SSEFrame) error {
	data, err := jsonutil.FastMarshal(frame.Data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Event, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// doWithRetry 发送请求，处理 429 退避（最多 3 次）和一次性 401 重新鉴权。
func (c *Client) doWithRetry(ctx context.Context, body []byte, targetModel string, httpClient *http.Client) (*http.Response, *apierror.Error) {
	reauthorized := false

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		token, err := c.tokens.Get(ctx)
		if err != nil {
			return nil, apierror.New(apierror.TypeAuthentication, http.StatusInternalServerError, "本地获取鉴权凭据失败: "+err.Error())
		}

		req, err := c.newRequest(ctx, body, targetModel, token)
		if err != nil {
			return nil, apierror.APIErrorf(http.StatusBadGateway, "构造上游请求失败: %v", err)
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, apierror.APIErrorf(http.StatusBadGateway, "客户端已断开: %v", ctx.Err())
			}
			return nil, apierror.APIErrorf(http.StatusBadGateway, "连接上游失败: %v", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			capped := io.LimitReader(resp.Body, config.MaxErrorBody)
			errBody, _ := io.ReadAll(capped)
			resp.Body.Close()

			if attempt == config.MaxRetries {
				return nil, apierror.RateLimit("上游限流，重试耗尽")
			}
			delay := parseRetryDelay(resp.Header.Get("Retry-After"), errBody)
			logger.Warn("上游429，退避重试",
				logger.Int("attempt", attempt+1),
				logger.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, apierror.APIErrorf(http.StatusBadGateway, "客户端已断开: %v", ctx.Err())
			}
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			if reauthorized {
				return nil, apierror.Authentication(http.StatusBadGateway, "上游鉴权失败")
			}
			reauthorized = true
			c.tokens.Invalidate()
			continue

		default:
			capped := io.LimitReader(resp.Body, 200)
			excerpt, _ := io.ReadAll(capped)
			resp.Body.Close()
			return nil, apierror.APIErrorf(http.StatusBadGateway, "上游返回 %d: %s", resp.StatusCode, string(excerpt))
		}
	}

	return nil, apierror.RateLimit("上游限流，重试耗尽")
}

// parseRetryDelay 依次尝试 Retry-After 头（数字秒）、响应体中的 "reset/retry after Ns" 提示，
// 最终回落到默认延迟。
func parseRetryDelay(header string, body []byte) time.Duration {
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if m := retryAfterPattern.FindStringSubmatch(string(body)); m != nil {
		if secs, err := strconv.Atoi(m[2]); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return config.DefaultRetryDelay
}
