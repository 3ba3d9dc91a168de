// Package sseframer 增量解析形如 "data: ...\n\n" 的 SSE 字节流（C3）。
package sseframer

import (
	"bytes"
	"encoding/json"
	"errors"

	"cmm-gateway/internal/jsonutil"
)

// ErrOverflow 在缓冲区超过配置上限时返回，调用方应视为硬错误并终止连接。
var ErrOverflow = errors.New("stream overflow")

const dataPrefix = "data: "

// Framer 是一个有状态、增量的 SSE 解析器：反复 Feed 追加字节，
// 内部缓冲跨调用保留尚未凑成完整块的尾部。
type Framer struct {
	buf     []byte
	maxSize int
}

// New 创建一个 Framer，maxSize 是缓冲区允许增长到的最大字节数。
func New(maxSize int) *Framer {
	return &Framer{maxSize: maxSize}
}

// Feed 追加一段字节，按 "\n\n" 切出所有完整块并解析，未完成的尾部留在缓冲区。
// 缓冲区超过 maxSize 时返回 ErrOverflow 并清空内部状态。
func (f *Framer) Feed(chunk []byte) ([]json.RawMessage, error) {
	f.buf = append(f.buf, chunk...)

	var events []json.RawMessage
	for {
		idx := bytes.Index(f.buf, []byte("\n\n"))
		if idx == -1 {
			break
		}
		block := f.buf[:idx]
		f.buf = f.buf[idx+2:]
		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}

	if len(f.buf) > f.maxSize {
		f.buf = nil
		return nil, ErrOverflow
	}

	return events, nil
}

// Flush 把缓冲区中剩余的、没有以空行结尾的内容当作最后一块解析，随后清空缓冲区。
func (f *Framer) Flush() []json.RawMessage {
	if len(f.buf) == 0 {
		return nil
	}
	block := f.buf
	f.buf = nil
	if ev, ok := parseBlock(block); ok {
		return []json.RawMessage{ev}
	}
	return nil
}

// parseBlock 收集块内所有 "data: " 前缀行，用 "\n" 拼接后尝试 JSON 解析；
// 解析失败静默丢弃这一块（不是异常），非 data: 行（event:、id:、注释）一律忽略。
func parseBlock(block []byte) (json.RawMessage, bool) {
	lines := bytes.Split(block, []byte("\n"))
	var dataLines [][]byte
	for _, line := range lines {
		if bytes.HasPrefix(line, []byte(dataPrefix)) {
			dataLines = append(dataLines, line[len(dataPrefix):])
		}
	}
	if len(dataLines) == 0 {
		return nil, false
	}

	data := bytes.Join(dataLines, []byte("\n"))

	var probe any
	if err := jsonutil.FastUnmarshal(data, &probe); err != nil {
		return nil, false
	}

	return json.RawMessage(data), true
}
