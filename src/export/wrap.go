package export

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// VisualWidth returns the display width of s in terminal cells.
func VisualWidth(s string) int {
	return runewidth.StringWidth(s)
}

// Truncate shortens s to at most maxLen cells, ending in "..." when ellipsis
// is set and there is room for it.
func Truncate(s string, maxLen int, ellipsis bool) string {
	s = strings.TrimSpace(s)
	if maxLen <= 0 {
		return ""
	}
	if VisualWidth(s) <= maxLen {
		return s
	}
	if ellipsis && maxLen > 3 {
		return runewidth.Truncate(s, maxLen, "...")
	}
	return runewidth.Truncate(s, maxLen, "")
}

// TruncateAndPad truncates s and pads it with spaces to exactly width cells.
func TruncateAndPad(s string, width int, ellipsis bool) string {
	return runewidth.FillRight(Truncate(s, width, ellipsis), width)
}

// Wrap breaks text into lines of at most width cells on word boundaries.
// Existing line breaks are kept. Words wider than width are split.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	paragraphs := strings.Split(text, "\n")
	for i, p := range paragraphs {
		paragraphs[i] = wrapParagraph(p, width)
	}
	return strings.Join(paragraphs, "\n")
}

func wrapParagraph(text string, width int) string {
	var out strings.Builder
	lineWidth := 0
	newline := func() {
		out.WriteByte('\n')
		lineWidth = 0
	}

	for _, word := range strings.Fields(text) {
		for VisualWidth(word) > width {
			if lineWidth > 0 {
				newline()
			}
			chunk := runewidth.Truncate(word, width, "")
			if chunk == "" {
				// A single rune wider than width.
				chunk = string([]rune(word)[:1])
			}
			out.WriteString(chunk)
			word = word[len(chunk):]
			newline()
		}
		if word == "" {
			continue
		}

		w := VisualWidth(word)
		switch {
		case lineWidth == 0:
		case lineWidth+1+w <= width:
			out.WriteByte(' ')
			lineWidth++
		default:
			newline()
		}
		out.WriteString(word)
		lineWidth += w
	}
	return strings.TrimSuffix(out.String(), "\n")
}

// SplitLines splits text on newlines. Empty text has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}
