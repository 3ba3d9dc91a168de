package types

// GeminiRequest 是发往上游 Gemini 兼容端点的请求体。
type GeminiRequest struct {
	Model             string             `json:"model,omitempty"`
	Contents          []GeminiContent    `json:"contents"`
	SystemInstruction *GeminiContent     `json:"systemInstruction,omitempty"`
	Tools             []GeminiToolBlock  `json:"tools,omitempty"`
	ToolConfig        *GeminiToolConfig  `json:"toolConfig,omitempty"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
}

// GeminiContent 是一轮对话内容，Role 为 "user" 或 "model"。
type GeminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part 是 Gemini content 中的标签联合体。
type Part struct {
	Text            string          `json:"text,omitempty"`
	Thought         bool            `json:"thought,omitempty"`
	ThoughtSig      string          `json:"thoughtSignature,omitempty"`
	FunctionCall    *FunctionCall   `json:"functionCall,omitempty"`
	FunctionResp    *FunctionResp   `json:"functionResponse,omitempty"`
	InlineData      *InlineData     `json:"inlineData,omitempty"`
}

type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type FunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GeminiToolBlock 包一组函数声明，对应 Anthropic 的 tools 数组。
type GeminiToolBlock struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations"`
}

type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type GeminiToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"functionCallingConfig"`
}

type FunctionCallingConfig struct {
	Mode                 string   `json:"mode"` // AUTO | ANY | NONE
	AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
}

// GenerationConfig 映射 Anthropic 的采样/长度参数。
type GenerationConfig struct {
	MaxOutputTokens *int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
	TopP            *float64         `json:"topP,omitempty"`
	TopK            *int             `json:"topK,omitempty"`
	StopSequences   []string         `json:"stopSequences,omitempty"`
	ThinkingConfig  *ThinkingBudget  `json:"thinkingConfig,omitempty"`
}

type ThinkingBudget struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

// GeminiStreamChunk 是流式响应中的单个已解析 JSON 事件。
type GeminiStreamChunk struct {
	Candidates    []Candidate    `json:"candidates,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
	Error         *GeminiError   `json:"error,omitempty"`
}

type Candidate struct {
	Content      *GeminiContent `json:"content,omitempty"`
	FinishReason string         `json:"finishReason,omitempty"`
	Index        int            `json:"index,omitempty"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount,omitempty"`
	CandidatesTokenCount int `json:"candidatesTokenCount,omitempty"`
}

type GeminiError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// GeminiResponse 是非流式 unary 调用返回的完整响应体（等价于单个 chunk）。
type GeminiResponse = GeminiStreamChunk

// WrappedGeminiRequest 是部分兼容代理要求的外层包装。
type WrappedGeminiRequest struct {
	Model         string        `json:"model"`
	Project       string        `json:"project,omitempty"`
	UserPromptID  string        `json:"user_prompt_id,omitempty"`
	Request       GeminiRequest `json:"request"`
}

// WrappedGeminiResponse 是兼容代理返回时可能携带的外层包装。
type WrappedGeminiResponse struct {
	Response GeminiStreamChunk `json:"response"`
	TraceID  string            `json:"traceId,omitempty"`
}
