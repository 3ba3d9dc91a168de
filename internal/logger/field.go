package logger

import (
	"fmt"
	"time"
)

// Field 结构化字段类型
type Field struct {
	Key   string
	Value interface{}
	Type  FieldType
}

// FieldType 字段类型枚举。只保留这个网关实际打的字段种类——地址/模型名/
// 请求方法走 StringType，消息数/工具数/字节数走 IntType，退避延迟走
// DurationType，失败原因走 ErrorType；没有任何调用点需要时间戳字段或
// 兜底的 Any，所以两者都没有留下来当摆设。
type FieldType int

const (
	StringType FieldType = iota
	IntType
	FloatType
	BoolType
	DurationType
	ErrorType
)

// String 创建字符串类型字段
func String(key, value string) Field {
	return Field{
		Key:   key,
		Value: value,
		Type:  StringType,
	}
}

// Int 创建整数类型字段
func Int(key string, value int) Field {
	return Field{
		Key:   key,
		Value: value,
		Type:  IntType,
	}
}

// Int64 创建int64类型字段
func Int64(key string, value int64) Field {
	return Field{
		Key:   key,
		Value: value,
		Type:  IntType,
	}
}

// Float64 创建浮点数类型字段
func Float64(key string, value float64) Field {
	return Field{
		Key:   key,
		Value: value,
		Type:  FloatType,
	}
}

// Bool 创建布尔类型字段
func Bool(key string, value bool) Field {
	return Field{
		Key:   key,
		Value: value,
		Type:  BoolType,
	}
}

// Duration 创建时间间隔类型字段
func Duration(key string, value time.Duration) Field {
	return Field{
		Key:   key,
		Value: value,
		Type:  DurationType,
	}
}

// Err 创建错误类型字段
func Err(err error) Field {
	return Field{
		Key:   "error",
		Value: err.Error(),
		Type:  ErrorType,
	}
}

// FormatValue 格式化字段值为字符串
func (f Field) FormatValue() string {
	switch f.Type {
	case StringType:
		return fmt.Sprintf("%s", f.Value)
	case IntType:
		return fmt.Sprintf("%d", f.Value)
	case FloatType:
		return fmt.Sprintf("%g", f.Value)
	case BoolType:
		return fmt.Sprintf("%t", f.Value)
	case DurationType:
		if dur, ok := f.Value.(time.Duration); ok {
			return dur.String()
		}
		return fmt.Sprintf("%v", f.Value)
	case ErrorType:
		return fmt.Sprintf("%s", f.Value)
	default:
		return fmt.Sprintf("%v", f.Value)
	}
}
