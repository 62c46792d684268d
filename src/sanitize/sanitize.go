// Package sanitize cleans raw conversation exports before they are parsed.
// Terminal copy-paste and chat exports carry ANSI escapes, byte order marks,
// invisible direction marks and Windows line endings that would otherwise
// leak into sender labels and message bodies.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	// ANSI escape codes: CSI sequences and OSC sequences terminated by BEL or ST.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

	// Zero-width and bidi control characters. WhatsApp wraps names and
	// attachments in U+200E/U+200F; iOS exports prefix lines with them.
	invisiblePattern = regexp.MustCompile("[\u200b\u200c\u200d\u200e\u200f\u2060\u202a-\u202e\u2066-\u2069]")
)

const bom = "\ufeff"

// StripANSI removes ANSI escape codes.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// StripInvisible removes zero-width, direction-mark and byte-order-mark runes.
// U+200D is kept when it joins two emoji so that ZWJ sequences stay intact.
func StripInvisible(s string) string {
	s = strings.ReplaceAll(s, bom, "")
	if !strings.ContainsAny(s, "\u200b\u200c\u200d\u200e\u200f\u2060\u202a\u202b\u202c\u202d\u202e\u2066\u2067\u2068\u2069") {
		return s
	}
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == '\u200d' && i > 0 && i < len(runes)-1 && isPictographic(runes[i-1]) && isPictographic(runes[i+1]) {
			b.WriteRune(r)
			continue
		}
		if invisiblePattern.MatchString(string(r)) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Clean applies all sanitization: ANSI, invisible runes, CRLF normalization
// and removal of trailing blank lines.
func Clean(s string) string {
	s = StripANSI(s)
	s = StripInvisible(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimRight(s, "\n \t")
}

func isPictographic(r rune) bool {
	return r >= 0x1F000 || (r >= 0x2600 && r <= 0x27BF) || r == '\uFE0F'
}
