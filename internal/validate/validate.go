package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Comment field limits, shared with the player page through /api/limits.
const (
	MaxCommentBodyLength = 1000
	MaxUsernameLength    = 50
	MaxRefLength         = 1024
)

func checkLen(value string, max int, field string) string {
	if utf8.RuneCountInString(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func CommentBody(s string) string {
	if strings.TrimSpace(s) == "" {
		return "comment is required"
	}
	return checkLen(s, MaxCommentBodyLength, "comment")
}

func Username(s string) string { return checkLen(s, MaxUsernameLength, "username") }

func Ref(s string) string {
	if s == "" {
		return "ref is required"
	}
	return checkLen(s, MaxRefLength, "ref")
}

// FieldLimits returns the limits exposed by /api/limits.
func FieldLimits() map[string]int {
	return map[string]int{
		"commentBody": MaxCommentBodyLength,
		"username":    MaxUsernameLength,
	}
}
