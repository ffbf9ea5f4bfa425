package http

import (
	"errors"
	"strings"
)

var errNotBool = errors.New("want true, false, 1 or 0")

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// joinURL joins a base URL and an absolute path without doubling slashes.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
