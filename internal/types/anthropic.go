package types

// AnthropicRequest 对应客户端发来的 /v1/messages 请求体。
type AnthropicRequest struct {
	Model         string             `json:"model"`
	MaxTokens     int                `json:"max_tokens"`
	Messages      []AnthropicMessage `json:"messages"`
	System        any                `json:"system,omitempty"` // string 或 []Block
	Tools         []AnthropicTool    `json:"tools,omitempty"`
	ToolChoice    any                `json:"tool_choice,omitempty"`
	Stream        bool               `json:"stream,omitempty"`
	Temperature   *float64           `json:"temperature,omitempty"`
	TopP          *float64           `json:"top_p,omitempty"`
	TopK          *int               `json:"top_k,omitempty"`
	StopSequences []string           `json:"stop_sequences,omitempty"`
	Thinking      *ThinkingConfig    `json:"thinking,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// ThinkingConfig 控制扩展思考模式是否开启以及预算。
type ThinkingConfig struct {
	Type         string `json:"type"` // "enabled" | "disabled"
	BudgetTokens *int   `json:"budget_tokens,omitempty"`
}

// AnthropicMessage 是请求历史中的一轮消息，Content 可能是 string 或 []Block。
type AnthropicMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content any    `json:"content"`
}

// AnthropicTool 描述一个可供模型调用的工具。
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Block 是消息内容块的标签联合体，字段随 Type 取不同子集。
type Block struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// tool_use
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"` // string 或 []Block，tool_result 专用
	IsError   *bool  `json:"is_error,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource 目前只支持 base64 内联图片。
type ImageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// AnthropicUsage 是响应中携带的 token 统计。
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicResponse 是非流式 /v1/messages 响应体。
type AnthropicResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"` // "message"
	Role         string         `json:"role"` // "assistant"
	Model        string         `json:"model"`
	Content      []Block        `json:"content"`
	StopReason   string         `json:"stop_reason"`
	StopSequence *string        `json:"stop_sequence"`
	Usage        AnthropicUsage `json:"usage"`
}

// ErrorBody 是客户端可见的错误信封 {type:"error", error:{...}}。
type ErrorBody struct {
	Type  string    `json:"type"`
	Error ErrorInfo `json:"error"`
}

type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
