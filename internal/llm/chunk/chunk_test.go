package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitReconstructs(t *testing.T) {
	long := strings.Repeat("x", 120)
	tests := []struct {
		name   string
		text   string
		maxLen int
	}{
		{"single paragraph", "hello world", 50},
		{"several small", "alpha\n\nbeta\n\ngamma\n\ndelta", 12},
		{"oversized first", long + "\n\nshort", 50},
		{"oversized middle", "a\n\n" + long + "\n\nb", 50},
		{"empty paragraphs", "a\n\n\n\nb\n\n", 3},
		{"only separators", "\n\n\n\n", 2},
		{"unicode", "привет мир\n\nещё абзац\n\nи ещё", 12},
		{"default limit", strings.Repeat("word ", 2000) + "\n\n" + strings.Repeat("more ", 900), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.maxLen)
			if got := strings.Join(chunks, Separator); got != tt.text {
				t.Fatalf("join mismatch:\n got %q\nwant %q", got, tt.text)
			}
			limit := tt.maxLen
			if limit <= 0 {
				limit = DefaultMaxLen
			}
			for i, c := range chunks {
				if utf8.RuneCountInString(c) <= limit {
					continue
				}
				if strings.Contains(c, Separator) {
					t.Errorf("chunk %d exceeds %d and holds more than one paragraph", i, limit)
				}
			}
		})
	}
}

func TestSplitEmpty(t *testing.T) {
	if got := Split("", 10); len(got) != 0 {
		t.Errorf("Split(\"\") = %q, want no chunks", got)
	}
}

func TestSplitGreedy(t *testing.T) {
	// "aaaa\n\nbbbb" is 10 characters; the third paragraph does not fit.
	got := Split("aaaa\n\nbbbb\n\ncccc", 10)
	want := []string{"aaaa\n\nbbbb", "cccc"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %q, want %q", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitOversizedParagraphStandsAlone(t *testing.T) {
	long := strings.Repeat("y", 30)
	got := Split("ab\n\n"+long+"\n\ncd", 10)
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3: %q", len(got), got)
	}
	if got[1] != long {
		t.Errorf("middle chunk = %q, want the long paragraph", got[1])
	}
}

func TestAllStopsEarly(t *testing.T) {
	n := 0
	for range All("a\n\nb\n\nc\n\nd", 1) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d times, want 2", n)
	}
}
