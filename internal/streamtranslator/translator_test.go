package streamtranslator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmm-gateway/internal/types"
)

func eventTypes(frames []types.SSEFrame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func TestProcessChunk_S1文本流式(t *testing.T) {
	tr := New("claude-haiku-4-5-20251001")

	first := tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{Content: &types.GeminiContent{Parts: []types.Part{{Text: "Hello"}}}}},
	})

	assert.Equal(t, []string{"message_start", "ping", "content_block_start", "content_block_delta"}, eventTypes(first))
	assert.Equal(t, 0, first[3].Data["index"])
	assert.Equal(t, "Hello", first[3].Data["delta"].(map[string]any)["text"])

	second := tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{Content: &types.GeminiContent{Parts: []types.Part{{Text: " world"}}}}},
	})

	assert.Equal(t, []string{"content_block_delta"}, eventTypes(second), "同一块内的后续文本只产生delta，不重新start")
	assert.Equal(t, 0, second[0].Data["index"])
	assert.Equal(t, " world", second[0].Data["delta"].(map[string]any)["text"])
}

func TestProcessChunk_S2工具调用(t *testing.T) {
	tr := New("claude-haiku-4-5-20251001")

	frames := tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{
			Content: &types.GeminiContent{Parts: []types.Part{
				{FunctionCall: &types.FunctionCall{Name: "get_weather", Args: map[string]any{"location": "NYC"}}},
			}},
			FinishReason: "STOP",
		}},
		UsageMetadata: &types.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5},
	})

	assert.Equal(t, []string{
		"message_start", "ping",
		"content_block_start", "content_block_delta", "content_block_stop",
		"message_delta", "message_stop",
	}, eventTypes(frames))

	startBlock := frames[2].Data["content_block"].(map[string]any)
	assert.Equal(t, "tool_use", startBlock["type"])
	assert.Equal(t, "get_weather", startBlock["name"])
	assert.Regexp(t, `^toolu_cmm_`, startBlock["id"])

	delta := frames[3].Data["delta"].(map[string]any)
	assert.Equal(t, "input_json_delta", delta["type"])
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(delta["partial_json"].(string)), &args))
	assert.Equal(t, "NYC", args["location"])

	msgDelta := frames[5].Data["delta"].(map[string]any)
	assert.Equal(t, "tool_use", msgDelta["stop_reason"])
	assert.Equal(t, 5, frames[5].Data["usage"].(map[string]any)["output_tokens"])
}

func TestProcessChunk_thinking转text之间插入signature_delta(t *testing.T) {
	tr := New("gemini-2.5-pro")

	frames := tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{Content: &types.GeminiContent{Parts: []types.Part{
			{Text: "thinking...", Thought: true},
			{Text: "final answer"},
		}}}},
	})

	// message_start, ping, cbs(thinking), cbd(thinking_delta), cbd(signature_delta), cbs(stop old idx), cbs(text start), cbd(text_delta)
	types_ := eventTypes(frames)
	assert.Contains(t, types_, "content_block_stop")

	var sawSignature bool
	for _, f := range frames {
		if f.Event == "content_block_delta" {
			if d, ok := f.Data["delta"].(map[string]any); ok && d["type"] == "signature_delta" {
				sawSignature = true
			}
		}
	}
	assert.True(t, sawSignature, "从 thinking 切换到 text 前应补发 signature_delta")
}

func TestProcessChunk_空candidates仍发送前奏但无内容事件(t *testing.T) {
	tr := New("gemini-2.5-pro")
	frames := tr.ProcessChunk(&types.GeminiStreamChunk{})
	assert.Equal(t, []string{"message_start", "ping"}, eventTypes(frames))
}

func TestProcessChunk_ping只发送一次(t *testing.T) {
	tr := New("gemini-2.5-pro")
	first := tr.ProcessChunk(&types.GeminiStreamChunk{})
	second := tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{Content: &types.GeminiContent{Parts: []types.Part{{Text: "hi"}}}}},
	})

	pingCount := 0
	for _, f := range append(first, second...) {
		if f.Event == "ping" {
			pingCount++
		}
	}
	assert.Equal(t, 1, pingCount)
}

func TestProcessChunk_error短路(t *testing.T) {
	tr := New("gemini-2.5-pro")
	frames := tr.ProcessChunk(&types.GeminiStreamChunk{Error: &types.GeminiError{Message: "boom"}})
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Event)
}

func TestProcessChunk_块生命周期遵循property7(t *testing.T) {
	tr := New("gemini-2.5-pro")
	var all []types.SSEFrame
	all = append(all, tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{Content: &types.GeminiContent{Parts: []types.Part{{Text: "a"}}}}},
	})...)
	all = append(all, tr.ProcessChunk(&types.GeminiStreamChunk{
		Candidates: []types.Candidate{{
			Content:      &types.GeminiContent{Parts: []types.Part{{FunctionCall: &types.FunctionCall{Name: "x"}}}},
			FinishReason: "STOP",
		}},
	})...)

	assert.Equal(t, "message_start", all[0].Event)
	assert.Equal(t, "message_stop", all[len(all)-1].Event)

	starts := map[int]int{}
	stops := map[int]int{}
	var lastIndex = -1
	for _, f := range all {
		switch f.Event {
		case "content_block_start":
			idx := f.Data["index"].(int)
			starts[idx]++
			assert.Greater(t, idx, lastIndex)
		case "content_block_stop":
			idx := f.Data["index"].(int)
			stops[idx]++
			lastIndex = idx
		}
	}
	for idx, n := range starts {
		assert.Equal(t, 1, n, "块 %d 的 start 应恰好一次", idx)
		assert.Equal(t, 1, stops[idx], "块 %d 的 stop 应恰好一次", idx)
	}
}
