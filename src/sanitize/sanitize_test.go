package sanitize

import "testing"

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "color codes",
			input:    "\x1b[31mAlex\x1b[0m: hey",
			expected: "Alex: hey",
		},
		{
			name:     "no ANSI",
			input:    "plain text message",
			expected: "plain text message",
		},
		{
			name:     "cursor movement",
			input:    "\x1b[2Khello\x1b[1A",
			expected: "hello",
		},
		{
			name:     "osc title",
			input:    "\x1b]0;terminal\x07Sam: hi",
			expected: "Sam: hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripANSI(tt.input)
			if result != tt.expected {
				t.Errorf("StripANSI(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStripInvisible(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bom", "\ufeffAlex: hi", "Alex: hi"},
		{"direction marks", "\u200e[1/2/24, 9:00 AM] Alex: hi", "[1/2/24, 9:00 AM] Alex: hi"},
		{"zero width space", "he\u200bllo", "hello"},
		{"zwj emoji kept", "\U0001F468\u200d\U0001F469", "\U0001F468\u200d\U0001F469"},
		{"stray zwj dropped", "a\u200db", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripInvisible(tt.input)
			if result != tt.expected {
				t.Errorf("StripInvisible(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "full cleanup",
			input:    "\ufeff\x1b[31mAlex\x1b[0m: message\r\n",
			expected: "Alex: message",
		},
		{
			name:     "carriage returns",
			input:    "line1\r\nline2\rline3",
			expected: "line1\nline2\nline3",
		},
		{
			name:     "already clean",
			input:    "Sam: clean message",
			expected: "Sam: clean message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Clean(tt.input)
			if result != tt.expected {
				t.Errorf("Clean(%q) = %q, expected %q", tt.input, result, tt.expected)
			}
		})
	}
}
