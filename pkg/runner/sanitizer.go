package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 4KB.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "ARBOR_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// SanitizeInput validates free text destined for the tree (text children,
// prop values). It rejects oversized or invalid UTF-8 input rather than
// truncating it, and strips control characters other than newline, tab and
// carriage return so escape sequences never reach logs or terminals.
func SanitizeInput(input string) (string, error) {
	if err := checkInput(input); err != nil {
		return "", err
	}
	return strip(input, func(r rune) (rune, bool) {
		if r == '\n' || r == '\t' || r == '\r' {
			return r, true
		}
		return 0, false
	}), nil
}

// SanitizeLine validates one console command line. Tabs become spaces and
// every other control character is dropped, so the result is a single line.
func SanitizeLine(input string) (string, error) {
	if err := checkInput(input); err != nil {
		return "", err
	}
	out := strip(input, func(r rune) (rune, bool) {
		if r == '\t' {
			return ' ', true
		}
		return 0, false
	})
	return strings.TrimSpace(out), nil
}

func checkInput(input string) error {
	limit := MaxInputSize()
	if len(input) > limit {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return ErrInvalidUTF8
	}
	return nil
}

// strip removes control runes; keep may map a control rune to a replacement.
func strip(input string, keep func(rune) (rune, bool)) string {
	dirty := strings.IndexFunc(input, func(r rune) bool {
		if !unicode.IsControl(r) {
			return false
		}
		repl, ok := keep(r)
		return !ok || repl != r
	})
	if dirty < 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	b.WriteString(input[:dirty])
	for _, r := range input[dirty:] {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
			continue
		}
		if repl, ok := keep(r); ok {
			b.WriteRune(repl)
		}
	}
	return b.String()
}

// MaxInputSize returns the input limit, honoring EnvMaxInputSize.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
