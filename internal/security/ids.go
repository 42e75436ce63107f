package security

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseID validates a numeric path parameter. All persisted ids are positive
// bigserials; anything else is a bad request, not a lookup miss.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return id, nil
}

// SanitizeInput strips control characters except common whitespace.
func SanitizeInput(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			result = append(result, r)
		}
	}
	return string(result)
}
