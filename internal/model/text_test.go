package model

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClampText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  hi  ", 10, "hi"},
		{"under limit", "hello", 5, "hello"},
		{"cuts runes not bytes", "가나다라", 2, "가나"},
		{"no limit", "abc", 0, "abc"},
		{"blank", "   ", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampText(tt.in, tt.max))
		})
	}

	long := ClampText(strings.Repeat("🙂", 600), DefaultChatMaxLength)
	assert.Equal(t, DefaultChatMaxLength, utf8.RuneCountInString(long))
}

func TestPresenceStatusValid(t *testing.T) {
	assert.True(t, StatusIdle.Valid())
	assert.True(t, StatusFocusing.Valid())
	assert.True(t, StatusDone.Valid())
	assert.False(t, PresenceStatus("away").Valid())
}
