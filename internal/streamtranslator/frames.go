package streamtranslator

import "cmm-gateway/internal/types"

func messageStartFrame(messageID, modelName string, inputTokens int) types.SSEFrame {
	return types.SSEFrame{
		Event: "message_start",
		Data: map[string]any{
			"type": "message_start",
			"message": map[string]any{
				"id":            messageID,
				"type":          "message",
				"role":          "assistant",
				"content":       []any{},
				"model":         modelName,
				"stop_reason":   nil,
				"stop_sequence": nil,
				"usage": map[string]any{
					"input_tokens":  inputTokens,
					"output_tokens": 0,
				},
			},
		},
	}
}

func pingFrame() types.SSEFrame {
	return types.SSEFrame{Event: "ping", Data: map[string]any{"type": "ping"}}
}

func contentBlockStartFrame(index int, block map[string]any) types.SSEFrame {
	return types.SSEFrame{
		Event: "content_block_start",
		Data: map[string]any{
			"type":          "content_block_start",
			"index":         index,
			"content_block": block,
		},
	}
}

func contentBlockDeltaFrame(index int, delta map[string]any) types.SSEFrame {
	return types.SSEFrame{
		Event: "content_block_delta",
		Data: map[string]any{
			"type":  "content_block_delta",
			"index": index,
			"delta": delta,
		},
	}
}

func contentBlockStopFrame(index int) types.SSEFrame {
	return types.SSEFrame{
		Event: "content_block_stop",
		Data: map[string]any{
			"type":  "content_block_stop",
			"index": index,
		},
	}
}

func messageDeltaFrame(stopReason string, outputTokens int) types.SSEFrame {
	return types.SSEFrame{
		Event: "message_delta",
		Data: map[string]any{
			"type": "message_delta",
			"delta": map[string]any{
				"stop_reason":   stopReason,
				"stop_sequence": nil,
			},
			"usage": map[string]any{
				"output_tokens": outputTokens,
			},
		},
	}
}

func messageStopFrame() types.SSEFrame {
	return types.SSEFrame{Event: "message_stop", Data: map[string]any{"type": "message_stop"}}
}

func errorFrame(errType, message string) types.SSEFrame {
	return types.SSEFrame{
		Event: "error",
		Data: map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    errType,
				"message": message,
			},
		},
	}
}

func textDelta(text string) map[string]any {
	return map[string]any{"type": "text_delta", "text": text}
}

func thinkingDelta(text string) map[string]any {
	return map[string]any{"type": "thinking_delta", "thinking": text}
}

func signatureDelta(signature string) map[string]any {
	return map[string]any{"type": "signature_delta", "signature": signature}
}

func inputJSONDelta(partialJSON string) map[string]any {
	return map[string]any{"type": "input_json_delta", "partial_json": partialJSON}
}

func textBlock() map[string]any {
	return map[string]any{"type": "text", "text": ""}
}

func thinkingBlock() map[string]any {
	return map[string]any{"type": "thinking", "thinking": "", "signature": ""}
}

func toolUseBlock(id, name string) map[string]any {
	return map[string]any{"type": "tool_use", "id": id, "name": name, "input": map[string]any{}}
}
