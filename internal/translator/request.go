// Package translator 实现 Anthropic 请求/响应与 Gemini 请求/响应之间的纯函数转换（C1）。
// 整个包不持有任何状态；唯一的不确定性来自响应转换时新生成的消息 ID、工具调用 ID 和思考签名。
package translator

import (
	"cmm-gateway/internal/types"
)

// AnthropicToGemini 把客户端的 AnthropicRequest 转换为发往 Gemini 的请求体。
func AnthropicToGemini(req *types.AnthropicRequest) *types.GeminiRequest {
	toolNames := collectToolNames(req.Messages)

	gemini := &types.GeminiRequest{}

	for _, msg := range req.Messages {
		blocks := normalizeContent(msg.Content)
		parts, _ := convertBlocks(blocks, toolNames)
		appendContent(gemini, geminiRole(msg.Role), parts)
	}

	if instr := convertSystem(req.System); instr != nil {
		gemini.SystemInstruction = instr
	}

	if len(req.Tools) > 0 {
		decls := make([]types.FunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, types.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  CleanSchema(tool.InputSchema, 0),
			})
		}
		gemini.Tools = []types.GeminiToolBlock{{FunctionDeclarations: decls}}
	}

	if cfg := convertToolChoice(req.ToolChoice); cfg != nil {
		gemini.ToolConfig = cfg
	}

	gemini.GenerationConfig = buildGenerationConfig(req)

	return gemini
}

// geminiRole 把 Anthropic 的 role 映射为 Gemini 的 role。
func geminiRole(role string) string {
	if role == "assistant" {
		return "model"
	}
	return "user"
}

// normalizeContent 把消息内容统一成 []types.Block：字符串被提升为单个 text block。
func normalizeContent(content any) []types.Block {
	switch v := content.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []types.Block{{Type: "text", Text: v}}
	case []types.Block:
		return v
	case []any:
		return decodeBlocks(v)
	default:
		return nil
	}
}

// convertBlocks 把一条消息内的 Block 序列转换为 Gemini Part 序列。
// pendingThoughtSignature 在遇到 thinking block 时被记下，随后附着到下一个 functionCall part 上。
func convertBlocks(blocks []types.Block, toolNames map[string]string) ([]types.Part, string) {
	var parts []types.Part
	var pendingSignature string

	for _, block := range blocks {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			parts = append(parts, types.Part{Text: block.Text})

		case "thinking":
			if block.Thinking == "" {
				continue
			}
			parts = append(parts, types.Part{Text: block.Thinking, Thought: true})
			pendingSignature = block.Signature

		case "tool_use":
			args, _ := block.Input.(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			part := types.Part{FunctionCall: &types.FunctionCall{Name: block.Name, Args: args}}
			if pendingSignature != "" {
				part.ThoughtSig = pendingSignature
				pendingSignature = ""
			}
			parts = append(parts, part)

		case "tool_result":
			name := toolNames[block.ToolUseID]
			if name == "" {
				name = "unknown_tool"
			}
			parts = append(parts, types.Part{
				FunctionResp: &types.FunctionResp{
					Name:     name,
					Response: map[string]any{"result": flattenToolResult(block.Content)},
				},
			})

		case "image":
			if block.Source == nil || block.Source.Type != "base64" {
				continue
			}
			mime := block.Source.MediaType
			if mime == "" {
				mime = "image/png"
			}
			parts = append(parts, types.Part{InlineData: &types.InlineData{MimeType: mime, Data: block.Source.Data}})

		default:
			// 未知类型静默跳过。
		}
	}

	return parts, pendingSignature
}

// appendContent 把 parts 追加到 gemini.Contents：若末尾内容与新内容同 role，就并入同一条，
// 否则新开一条，从而在 Gemini 视角里保证角色交替。
func appendContent(gemini *types.GeminiRequest, role string, parts []types.Part) {
	if len(parts) == 0 {
		return
	}
	n := len(gemini.Contents)
	if n > 0 && gemini.Contents[n-1].Role == role {
		gemini.Contents[n-1].Parts = append(gemini.Contents[n-1].Parts, parts...)
		return
	}
	gemini.Contents = append(gemini.Contents, types.GeminiContent{Role: role, Parts: parts})
}

// collectToolNames 遍历全部消息，为每个 assistant tool_use.id 收集对应的工具名，
// 供后续 tool_result 块反查。
func collectToolNames(messages []types.AnthropicMessage) map[string]string {
	names := make(map[string]string)
	for _, msg := range messages {
		for _, block := range normalizeContent(msg.Content) {
			if block.Type == "tool_use" && block.ID != "" {
				names[block.ID] = block.Name
			}
		}
	}
	return names
}

// flattenToolResult 把 tool_result.content（string 或 []Block）压成一个字符串。
func flattenToolResult(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []types.Block:
		return joinTextBlocks(v)
	case []any:
		return joinTextBlocks(decodeBlocks(v))
	default:
		return ""
	}
}

func joinTextBlocks(blocks []types.Block) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return joinWithNewline(parts)
}

func joinWithNewline(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

// convertSystem 把 system（string 或 []Block）转换为 Gemini 的 systemInstruction。
func convertSystem(system any) *types.GeminiContent {
	blocks := normalizeContent(system)
	if len(blocks) == 0 {
		return nil
	}
	parts, _ := convertBlocks(blocks, nil)
	if len(parts) == 0 {
		return nil
	}
	return &types.GeminiContent{Parts: parts}
}

// convertToolChoice 把 Anthropic 的 tool_choice 映射为 Gemini 的 functionCallingConfig。
// 未指定或无法识别的 tool_choice 一律映射为 AUTO。
func convertToolChoice(choice any) *types.GeminiToolConfig {
	m, _ := choice.(map[string]any)
	kind, _ := m["type"].(string)
	switch kind {
	case "none":
		return &types.GeminiToolConfig{FunctionCallingConfig: types.FunctionCallingConfig{Mode: "NONE"}}
	case "any":
		return &types.GeminiToolConfig{FunctionCallingConfig: types.FunctionCallingConfig{Mode: "ANY"}}
	case "tool":
		name, _ := m["name"].(string)
		return &types.GeminiToolConfig{FunctionCallingConfig: types.FunctionCallingConfig{
			Mode:                 "ANY",
			AllowedFunctionNames: []string{name},
		}}
	default:
		return &types.GeminiToolConfig{FunctionCallingConfig: types.FunctionCallingConfig{Mode: "AUTO"}}
	}
}

// buildGenerationConfig 汇总采样/长度参数以及可选的思考预算。
func buildGenerationConfig(req *types.AnthropicRequest) *types.GenerationConfig {
	cfg := &types.GenerationConfig{
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		StopSequences: req.StopSequences,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		cfg.MaxOutputTokens = &maxTokens
	}
	if req.Thinking != nil && req.Thinking.Type == "enabled" && req.Thinking.BudgetTokens != nil {
		cfg.ThinkingConfig = &types.ThinkingBudget{ThinkingBudget: *req.Thinking.BudgetTokens}
	}
	return cfg
}

// decodeBlocks 把通过 JSON 反序列化为 []any/map[string]any 的内容块还原为 []types.Block。
// 客户端请求体以 map[string]any 的形式抵达 router 时会走到这里。
func decodeBlocks(raw []any) []types.Block {
	blocks := make([]types.Block, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		blocks = append(blocks, decodeBlock(m))
	}
	return blocks
}

func decodeBlock(m map[string]any) types.Block {
	b := types.Block{Type: asString(m["type"])}
	switch b.Type {
	case "text":
		b.Text = asString(m["text"])
	case "thinking":
		b.Thinking = asString(m["thinking"])
		b.Signature = asString(m["signature"])
	case "tool_use":
		b.ID = asString(m["id"])
		b.Name = asString(m["name"])
		b.Input = m["input"]
	case "tool_result":
		b.ToolUseID = asString(m["tool_use_id"])
		b.Content = m["content"]
		if v, ok := m["is_error"].(bool); ok {
			b.IsError = &v
		}
	case "image":
		if src, ok := m["source"].(map[string]any); ok {
			b.Source = &types.ImageSource{
				Type:      asString(src["type"]),
				MediaType: asString(src["media_type"]),
				Data:      asString(src["data"]),
			}
		}
	}
	return b
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
