package translator

import "cmm-gateway/internal/types"

// GeminiResponseToAnthropic 把一个非流式 Gemini 响应转换为完整的 AnthropicResponse。
func GeminiResponseToAnthropic(res *types.GeminiResponse, modelName string) *types.AnthropicResponse {
	resp := &types.AnthropicResponse{
		ID:    types.NewMessageID(),
		Type:  "message",
		Role:  "assistant",
		Model: modelName,
	}

	hasFunctionCall := false

	if len(res.Candidates) > 0 && res.Candidates[0].Content != nil {
		for _, part := range res.Candidates[0].Content.Parts {
			switch {
			case part.FunctionCall != nil:
				hasFunctionCall = true
				resp.Content = append(resp.Content, types.Block{
					Type:  "tool_use",
					ID:    types.NewToolUseID(),
					Name:  part.FunctionCall.Name,
					Input: part.FunctionCall.Args,
				})
			case part.Thought && part.Text != "":
				resp.Content = append(resp.Content, types.Block{
					Type:      "thinking",
					Thinking:  part.Text,
					Signature: types.NewThinkingSignature(),
				})
			case part.Text != "":
				resp.Content = append(resp.Content, types.Block{
					Type: "text",
					Text: part.Text,
				})
			}
		}
	}

	if hasFunctionCall {
		resp.StopReason = "tool_use"
	} else {
		resp.StopReason = "end_turn"
	}

	if res.UsageMetadata != nil {
		resp.Usage = types.AnthropicUsage{
			InputTokens:  res.UsageMetadata.PromptTokenCount,
			OutputTokens: res.UsageMetadata.CandidatesTokenCount,
		}
	}

	return resp
}
