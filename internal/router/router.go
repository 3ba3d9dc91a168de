// Package router 实现 C6：按 URL + model 对请求分类，转发给拦截路径
// （C4 Gemini 客户端）或直通路径（C5 Anthropic 字节级代理）。
package router

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cmm-gateway/internal/apierror"
	"cmm-gateway/internal/config"
	"cmm-gateway/internal/geminiclient"
	"cmm-gateway/internal/jsonutil"
	"cmm-gateway/internal/logger"
	"cmm-gateway/internal/passthrough"
	"cmm-gateway/internal/types"
)

// requestIDKey 是 gin.Context 里存放每请求关联 ID 的键，apierror.Respond
// 读的是同一个键，这样由 apierror 代发的错误日志也带着关联 ID。
const requestIDKey = "request_id"

// requestIDHeader 是关联 ID 回显给客户端的响应头，方便跨日志/跨系统对账一次请求。
const requestIDHeader = "X-Cmm-Request-Id"

// requestIDMiddleware 给每个请求分配一个 types.NewCorrelationID()，存进
// gin.Context 供后续处理函数的日志打点引用，并回显到响应头。C6 自己不落盘
// 关联 ID，只负责生成和传递——日志文件里把同一请求的 INTERCEPTED/
// PASSTHROUGH/错误行串起来是它存在的唯一理由。
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := types.NewCorrelationID()
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// requestID 取出当前请求的关联 ID；仅在 requestIDMiddleware 未挂载的测试场景
// 下才会拿到空字符串。
func requestID(c *gin.Context) string {
	id, _ := c.Get(requestIDKey)
	s, _ := id.(string)
	return s
}

// Router 持有分发所需的全部协作者并产出一个可挂到 http.Server 上的 gin.Engine。
type Router struct {
	cfg         *config.Config
	gemini      *geminiclient.Client
	passthrough *passthrough.Client
	engine      *gin.Engine
}

// New 装配路由表。gin 固定运行在 release 模式（GIN_MODE 会被覆盖），
// 和 C7 TLS 监听器一样不强加开发期中间件。
func New(cfg *config.Config, gemini *geminiclient.Client, pt *passthrough.Client) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())

	r := &Router{cfg: cfg, gemini: gemini, passthrough: pt, engine: engine}

	engine.GET("/v1/models", r.handleModels)
	engine.POST("/v1/messages", r.handleMessages)
	engine.NoRoute(r.handleFallthrough)

	return r
}

// Engine 返回底层 gin.Engine，供 C7 包进 http.Server。
func (r *Router) Engine() *gin.Engine { return r.engine }

// handleModels 是 spec 之外补充的运维端点：回显当前加载的模型映射，
// 方便操作者确认路由配置生效（非 spec Non-goal 的反向回退，纯增量工具）。
func (r *Router) handleModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data": []gin.H{
			{
				"id":           r.cfg.Mapping.SourceModel,
				"object":       "model",
				"target_model": r.cfg.Mapping.TargetModel,
				"disposition":  "intercept",
			},
		},
	})
}

// handleMessages 是核心分发点：读取受限大小的请求体，解析出 model，
// 按前缀匹配选择拦截或直通。
func (r *Router) handleMessages(c *gin.Context) {
	body, ok := r.readBoundedBody(c)
	if !ok {
		return
	}

	raw, err := normalizeIngressJSON(body)
	if err != nil {
		logger.Info("(parse error) → PASSTHROUGH",
			logger.String("request_id", requestID(c)),
			logger.String("path", c.Request.URL.Path))
		r.forwardPassthrough(c, body, nil)
		return
	}

	model, _ := raw["model"].(string)
	if strings.HasPrefix(model, r.cfg.Mapping.SourceModel) {
		r.dispatchIntercept(c, raw, model)
		return
	}

	logger.Info("PASSTHROUGH",
		logger.String("request_id", requestID(c)),
		logger.String("model", model),
		logger.Int("size_kb", len(body)/1024))
	r.forwardPassthrough(c, body, func() []byte { return stripThinkingBlocks(raw) })
}

// handleFallthrough 覆盖任何非 "/v1/messages" 的 POST 路径，或任何非 POST 方法
// （GET /v1/models 除外，它由 handleModels 在本地应答）——都原样直通，没有重试策略。
func (r *Router) handleFallthrough(c *gin.Context) {
	body, ok := r.readBoundedBody(c)
	if !ok {
		return
	}
	logger.Info("→ PASSTHROUGH",
		logger.String("request_id", requestID(c)),
		logger.String("method", c.Request.Method),
		logger.String("url", c.Request.URL.String()))
	r.forwardPassthrough(c, body, nil)
}

// readBoundedBody 读取请求体，超过 MAX_BODY_SIZE 时回 413 并中止读取。
func (r *Router) readBoundedBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierror.Respond(c, "读取请求体", apierror.New(apierror.TypeAPI, http.StatusRequestEntityTooLarge, "请求体超出大小上限"))
			return nil, false
		}
		apierror.Respond(c, "读取请求体", apierror.APIErrorf(http.StatusBadRequest, "读取请求体失败: %v", err))
		return nil, false
	}
	return body, true
}

// dispatchIntercept 把请求交给 C4：按请求体的 stream 字段选流式或非流式入口。
func (r *Router) dispatchIntercept(c *gin.Context, raw map[string]any, model string) {
	var anthReq types.AnthropicRequest
	if err := jsonutil.SafeUnmarshal(mustMarshal(raw), &anthReq); err != nil {
		apierror.Respond(c, "解析请求", apierror.APIErrorf(http.StatusBadRequest, "解析请求体失败: %v", err))
		return
	}

	logger.Info("INTERCEPTED",
		logger.String("request_id", requestID(c)),
		logger.String("model", model),
		logger.Int("size_kb", len(mustMarshal(raw))/1024),
		logger.Int("messages", len(anthReq.Messages)),
		logger.Int("tools", len(anthReq.Tools)),
		logger.String("target", r.cfg.Mapping.TargetModel))

	ctx := c.Request.Context()
	var apiErr *apierror.Error
	if anthReq.Stream {
		apiErr = r.gemini.Stream(ctx, c.Writer, &anthReq, r.cfg.Mapping.TargetModel)
	} else {
		apiErr = r.gemini.Unary(ctx, c.Writer, &anthReq, r.cfg.Mapping.TargetModel)
	}
	if apiErr != nil {
		apierror.Respond(c, "拦截转发", apiErr)
	}
}

// forwardPassthrough 把原始字节交给 C5。
func (r *Router) forwardPassthrough(c *gin.Context, body []byte, retry passthrough.RetryBodyFunc) {
	apiErr := r.passthrough.Forward(c.Request.Context(), c.Request.Method, c.Request.URL.RequestURI(), c.Request.Header, body, c.Writer, retry)
	if apiErr != nil {
		apierror.Respond(c, "直通转发", apiErr)
	}
}

func mustMarshal(v any) []byte {
	out, _ := jsonutil.FastMarshal(v)
	return out
}
