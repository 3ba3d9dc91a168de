// Package streamtranslator 把一条 Gemini 流式响应的 chunk 序列转换为
// Anthropic SSE 帧序列，同时维护内容块生命周期（C2）。
package streamtranslator

import (
	"cmm-gateway/internal/jsonutil"
	"cmm-gateway/internal/types"
)

// blockKind 标识当前处于开启状态的内容块类型；toolUse 块从不长期保持开启——
// 它的 start/delta/stop 三元组在同一次 handlePart 调用内完整发出。
type blockKind int

const (
	blockNone blockKind = iota
	blockText
	blockThinking
)

// Translator 是每个请求独有的状态机，从第一个 chunk 到流结束全程存活。
type Translator struct {
	messageID string
	modelName string

	blockIndex  int
	activeBlock blockKind
	started     bool

	hasFunctionCall bool
	inputTokens     int
	outputTokens    int
}

// New 创建一个新的 Translator，messageID 在这里一次性生成。
func New(modelName string) *Translator {
	return &Translator{
		messageID: types.NewMessageID(),
		modelName: modelName,
	}
}

// ProcessChunk 消费一个已解析的 Gemini chunk，返回这一步产生的全部 SSE 帧。
func (t *Translator) ProcessChunk(chunk *types.GeminiStreamChunk) []types.SSEFrame {
	if chunk.Error != nil {
		return []types.SSEFrame{errorFrame("api_error", chunk.Error.Message)}
	}

	var frames []types.SSEFrame

	if chunk.UsageMetadata != nil {
		t.inputTokens = chunk.UsageMetadata.PromptTokenCount
		t.outputTokens = chunk.UsageMetadata.CandidatesTokenCount
	}

	if !t.started {
		frames = append(frames, messageStartFrame(t.messageID, t.modelName, t.inputTokens), pingFrame())
		t.started = true
	}

	for _, candidate := range chunk.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				frames = append(frames, t.handlePart(part)...)
			}
		}
		if candidate.FinishReason != "" {
			frames = append(frames, t.finish()...)
		}
	}

	return frames
}

func (t *Translator) handlePart(part types.Part) []types.SSEFrame {
	switch {
	case part.FunctionCall != nil:
		return t.handleFunctionCall(part.FunctionCall)
	case part.Thought && part.Text != "":
		return t.handleThinkingDelta(part.Text)
	case part.Text != "":
		return t.handleTextDelta(part.Text)
	default:
		return nil
	}
}

func (t *Translator) handleFunctionCall(call *types.FunctionCall) []types.SSEFrame {
	frames := t.closeActiveBlock()

	id := types.NewToolUseID()
	index := t.blockIndex
	frames = append(frames, contentBlockStartFrame(index, toolUseBlock(id, call.Name)))

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	partialJSON, _ := jsonutil.FastMarshal(args)
	frames = append(frames, contentBlockDeltaFrame(index, inputJSONDelta(string(partialJSON))))
	frames = append(frames, contentBlockStopFrame(index))

	t.blockIndex++
	t.hasFunctionCall = true
	return frames
}

func (t *Translator) handleThinkingDelta(text string) []types.SSEFrame {
	var frames []types.SSEFrame
	if t.activeBlock != blockThinking {
		frames = append(frames, t.closeActiveBlock()...)
		frames = append(frames, contentBlockStartFrame(t.blockIndex, thinkingBlock()))
		t.activeBlock = blockThinking
	}
	frames = append(frames, contentBlockDeltaFrame(t.blockIndex, thinkingDelta(text)))
	return frames
}

func (t *Translator) handleTextDelta(text string) []types.SSEFrame {
	var frames []types.SSEFrame
	if t.activeBlock != blockText {
		frames = append(frames, t.closeActiveBlock()...)
		frames = append(frames, contentBlockStartFrame(t.blockIndex, textBlock()))
		t.activeBlock = blockText
	}
	frames = append(frames, contentBlockDeltaFrame(t.blockIndex, textDelta(text)))
	return frames
}

// closeActiveBlock 关闭当前开启的文本/思考块（若有）。若关闭的是思考块，
// 先补发一个 signature_delta 再 stop，随后递增 blockIndex 并清空 activeBlock。
func (t *Translator) closeActiveBlock() []types.SSEFrame {
	if t.activeBlock == blockNone {
		return nil
	}

	var frames []types.SSEFrame
	if t.activeBlock == blockThinking {
		frames = append(frames, contentBlockDeltaFrame(t.blockIndex, signatureDelta(types.NewThinkingSignature())))
	}
	frames = append(frames, contentBlockStopFrame(t.blockIndex))

	t.blockIndex++
	t.activeBlock = blockNone
	return frames
}

func (t *Translator) finish() []types.SSEFrame {
	frames := t.closeActiveBlock()
	frames = append(frames, messageDeltaFrame(t.stopReason(), t.outputTokens))
	frames = append(frames, messageStopFrame())
	return frames
}

func (t *Translator) stopReason() string {
	if t.hasFunctionCall {
		return "tool_use"
	}
	return "end_turn"
}
