package model

import (
	"strings"
	"unicode/utf8"
)

// ClampText 앞뒤 공백 제거 후 최대 max rune으로 자르기
func ClampText(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
