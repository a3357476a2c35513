package util

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone tries to normalize user input into E.164-like format,
// assuming Brazilian numbers when no country code is present.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	s = nonDigits.ReplaceAllString(s, "")

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "55") && len(s) >= 12:
		s = "+" + s
	case strings.HasPrefix(s, "0") && len(s) == 11:
		s = "+55" + s[1:]
	case !strings.HasPrefix(s, "+") && (len(s) == 10 || len(s) == 11):
		s = "+55" + s
	}

	return s
}
