package sseframer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramer_S5跨块续传(t *testing.T) {
	f := New(1024)

	events, err := f.Feed([]byte("data: {\"a\":1}\n\ndata: {\"b\":"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"a":1}`, string(events[0]))

	events, err = f.Feed([]byte("2}\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"b":2}`, string(events[0]))
}

func TestFramer_单次Feed内多个完整块(t *testing.T) {
	f := New(1024)
	events, err := f.Feed([]byte("data: {\"n\":1}\n\ndata: {\"n\":2}\n\ndata: {\"n\":3}\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.JSONEq(t, `{"n":1}`, string(events[0]))
	assert.JSONEq(t, `{"n":3}`, string(events[2]))
}

func TestFramer_多行data用换行拼接(t *testing.T) {
	f := New(1024)
	events, err := f.Feed([]byte("data: {\"text\":\n" + "data: \"hi\"}\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"text":"hi"}`, string(events[0]))
}

func TestFramer_非data行被忽略(t *testing.T) {
	f := New(1024)
	events, err := f.Feed([]byte("event: message\nid: 1\ndata: {\"ok\":true}\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"ok":true}`, string(events[0]))
}

func TestFramer_畸形JSON静默丢弃不报错(t *testing.T) {
	f := New(1024)
	events, err := f.Feed([]byte("data: not-json\n\ndata: {\"ok\":true}\n\n"))
	require.NoError(t, err)
	require.Len(t, events, 1, "畸形块被丢弃，后一个有效块正常返回")
	assert.JSONEq(t, `{"ok":true}`, string(events[0]))
}

func TestFramer_没有空行结尾的块靠Flush收尾(t *testing.T) {
	f := New(1024)
	events, err := f.Feed([]byte("data: {\"tail\":true}"))
	require.NoError(t, err)
	assert.Empty(t, events, "没有终止空行前不应产出事件")

	flushed := f.Flush()
	require.Len(t, flushed, 1)
	assert.JSONEq(t, `{"tail":true}`, string(flushed[0]))
}

func TestFramer_超过上限报stream_overflow(t *testing.T) {
	f := New(16)
	_, err := f.Feed([]byte(strings.Repeat("x", 32)))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFramer_property6_任意边界切分都能还原原始事件序列(t *testing.T) {
	raw := "data: {\"i\":0}\n\ndata: {\"i\":1}\n\ndata: {\"i\":2}\n\n"

	for split := 0; split <= len(raw); split++ {
		f := New(1 << 20)
		var got []string
		first, err := f.Feed([]byte(raw[:split]))
		require.NoError(t, err)
		for _, e := range first {
			got = append(got, string(e))
		}
		second, err := f.Feed([]byte(raw[split:]))
		require.NoError(t, err)
		for _, e := range second {
			got = append(got, string(e))
		}
		got = appendFlush(got, f)

		require.Len(t, got, 3, "split at %d", split)
		assert.JSONEq(t, `{"i":0}`, got[0])
		assert.JSONEq(t, `{"i":1}`, got[1])
		assert.JSONEq(t, `{"i":2}`, got[2])
	}
}

func appendFlush(got []string, f *Framer) []string {
	for _, e := range f.Flush() {
		got = append(got, string(e))
	}
	return got
}
