package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel_Enabled按严重程度过滤(t *testing.T) {
	tests := []struct {
		name     string
		current  Level
		target   Level
		expected bool
	}{
		{"configured=INFO, log DEBUG 被过滤", INFO, DEBUG, false},
		{"configured=INFO, log INFO 放行", INFO, INFO, true},
		{"configured=INFO, log ERROR 放行", INFO, ERROR, true},
		{"configured=ERROR, log WARN 被过滤", ERROR, WARN, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.current.Enabled(tt.target))
		})
	}
}

func TestParseLevel_未知级别报错且回落到INFO(t *testing.T) {
	level, err := ParseLevel("bogus")
	assert.Error(t, err)
	assert.Equal(t, INFO, level)
}

func TestParseLevel_大小写和空白不敏感(t *testing.T) {
	level, err := ParseLevel("  warn  ")
	assert.NoError(t, err)
	assert.Equal(t, WARN, level)
}
