package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSchema_移除不支持的关键字(t *testing.T) {
	schema := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"additionalProperties": false,
		"type":                 "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":              "string",
				"exclusiveMinimum":  1,
				"description":       "the command to run",
			},
		},
		"required": []any{"command"},
	}

	cleaned := CleanSchema(schema, 0)

	assert.NotContains(t, cleaned, "$schema")
	assert.NotContains(t, cleaned, "additionalProperties")
	assert.Contains(t, cleaned, "type")
	assert.Contains(t, cleaned, "required")

	props, ok := cleaned["properties"].(map[string]any)
	assert.True(t, ok)
	command, ok := props["command"].(map[string]any)
	assert.True(t, ok)
	assert.NotContains(t, command, "exclusiveMinimum")
	assert.Contains(t, command, "description")
}

func TestCleanSchema_属性字段名永不过滤(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"$schema": map[string]any{"type": "string"}, // 字段名恰好撞上了黑名单词也不受影响
		},
	}

	cleaned := CleanSchema(schema, 0)
	props := cleaned["properties"].(map[string]any)
	assert.Contains(t, props, "$schema")
}

func TestCleanSchema_递归深度到达上限后原样返回(t *testing.T) {
	schema := map[string]any{"type": "object", "$schema": "should not survive at depth 0"}
	cleaned := CleanSchema(schema, 32)
	assert.Equal(t, schema, cleaned, "达到深度上限时应原样返回，不再清理")
}

func TestCleanSchema_nil输入返回nil(t *testing.T) {
	assert.Nil(t, CleanSchema(nil, 0))
}
