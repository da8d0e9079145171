package service

import (
	"strconv"
	"strings"
)

// ParseVoucherCode accepts "ORD-000123", "ord-123" or a bare "123".
func ParseVoucherCode(code string) (int64, bool) {
	s := strings.TrimSpace(code)
	if len(s) > 4 && strings.EqualFold(s[:4], "ORD-") {
		s = s[4:]
	}
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
