package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFastMarshal_Unmarshal_往返(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
		N    int    `json:"n"`
	}
	in := payload{Name: "gemini-2.5-pro", N: 7}

	data, err := FastMarshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, FastUnmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestSafeUnmarshal_拒绝畸形JSON(t *testing.T) {
	var out map[string]any
	err := SafeUnmarshal([]byte(`{"a":`), &out)
	assert.Error(t, err)
}

func TestSafeMarshal_保留非ASCII字符不转义(t *testing.T) {
	data, err := SafeMarshal(map[string]string{"text": "你好"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "你好")
}
