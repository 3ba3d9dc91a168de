package translator

import "cmm-gateway/internal/config"

// allowedSchemaKeys 是 clean_schema 保留的 JSON-Schema 关键字白名单；
// properties 映射内部的键是用户定义的字段名，从不过滤。
var allowedSchemaKeys = map[string]bool{
	"type": true, "description": true, "properties": true, "required": true,
	"items": true, "enum": true, "format": true, "nullable": true,
	"minimum": true, "maximum": true, "minItems": true, "maxItems": true,
	"minLength": true, "maxLength": true, "pattern": true, "default": true,
	"example": true, "title": true, "anyOf": true, "oneOf": true,
}

// CleanSchema 递归清理一个 JSON-Schema，只保留上游支持的关键字。
// depth 从 0 开始；达到 config.MaxSchemaDepth 时停止递归，原样返回剩余结构，
// 防御病态（极深嵌套或自引用）的 schema。
func CleanSchema(schema map[string]any, depth int) map[string]any {
	if schema == nil {
		return nil
	}
	if depth >= config.MaxSchemaDepth {
		return schema
	}

	cleaned := make(map[string]any, len(schema))
	for key, value := range schema {
		if !allowedSchemaKeys[key] {
			continue
		}

		switch key {
		case "properties":
			if props, ok := value.(map[string]any); ok {
				cleaned[key] = cleanProperties(props, depth+1)
				continue
			}
		case "items":
			if item, ok := value.(map[string]any); ok {
				cleaned[key] = CleanSchema(item, depth+1)
				continue
			}
		case "anyOf", "oneOf":
			if list, ok := value.([]any); ok {
				cleaned[key] = cleanSchemaList(list, depth+1)
				continue
			}
		}
		cleaned[key] = value
	}
	return cleaned
}

// cleanProperties 清理 properties 映射：键（字段名）保持不变，值（各字段自己的 schema）递归清理。
func cleanProperties(props map[string]any, depth int) map[string]any {
	cleaned := make(map[string]any, len(props))
	for field, fieldSchema := range props {
		if m, ok := fieldSchema.(map[string]any); ok {
			cleaned[field] = CleanSchema(m, depth)
		} else {
			cleaned[field] = fieldSchema
		}
	}
	return cleaned
}

func cleanSchemaList(list []any, depth int) []any {
	cleaned := make([]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			cleaned = append(cleaned, CleanSchema(m, depth))
		} else {
			cleaned = append(cleaned, item)
		}
	}
	return cleaned
}
