package markdown

import (
	"reflect"
	"testing"
)

func TestStripInlineEmphasis(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"**bold**", "bold"},
		{"__bold__", "bold"},
		{"*italic*", "italic"},
		{"_italic_", "italic"},
		{"text **bold** more", "text bold more"},
		{"**bold *italic* text**", "bold italic text"},
		{"snake_case_name stays", "snake_case_name stays"},
	}
	for _, tt := range tests {
		got := StripInline(tt.input)
		if got != tt.expected {
			t.Errorf("StripInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStripInlineLinksAndImages(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"[Shop now](https://example.com)", "Shop now"},
		{"[New tab](https://example.com)^", "New tab"},
		{"![Front view](/img/a.jpg)", "Front view"},
		{"see ![alt](/x.png){width:50%|640|480} here", "see alt here"},
	}
	for _, tt := range tests {
		got := StripInline(tt.input)
		if got != tt.expected {
			t.Errorf("StripInline(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestStripInlineCodeKeepsMarkers(t *testing.T) {
	got := StripInline("use `**raw**` here")
	if got != "use **raw** here" {
		t.Errorf("got %q", got)
	}
}

func TestStripInlineCollapsesWhitespace(t *testing.T) {
	got := StripInline("  lots   of\tspace  ")
	if got != "lots of space" {
		t.Errorf("got %q", got)
	}
}

func TestPlainParagraphs(t *testing.T) {
	md := "First line\ncontinues here.\n\nSecond **paragraph**."
	want := "First line continues here.\nSecond paragraph."
	if got := Plain(md); got != want {
		t.Errorf("Plain() = %q, want %q", got, want)
	}
}

func TestPlainBlocks(t *testing.T) {
	md := `## Built to last

- Waterproof *shell*
* Taped seams
1. Two-year warranty
> Loved by hikers
---
| Weight | 320 g |
|--------|-------|
| Colour | Slate |

` + "```\nSKU-123\n```"
	want := "Built to last\nWaterproof shell\nTaped seams\nTwo-year warranty\nLoved by hikers\nWeight: 320 g\nColour: Slate\nSKU-123"
	if got := Plain(md); got != want {
		t.Errorf("Plain() =\n%q\nwant\n%q", got, want)
	}
}

func TestPlainCRLF(t *testing.T) {
	if got := Plain("a\r\nb\r\n"); got != "a b" {
		t.Errorf("got %q", got)
	}
}

func TestPlainEmpty(t *testing.T) {
	if got := Plain("  \n\n "); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestItems(t *testing.T) {
	got := Items("- one\n- **two**\n\n• three\n")
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Items() = %v, want %v", got, want)
	}
}

func TestFilterEmpty(t *testing.T) {
	got := FilterEmpty([]string{"a", " ", "", " b "})
	want := []string{"a", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterEmpty() = %v, want %v", got, want)
	}
}
