// Package markdown reduces the light Markdown found in generated marketing copy
// to plain text suitable for rasterising.
package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reBold             = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reBoldUnderscore   = regexp.MustCompile(`__(.+?)__`)
	reItalic           = regexp.MustCompile(`\*([^*]+)\*`)
	reItalicUnderscore = regexp.MustCompile(`(^|\W)_([^_]+)_(\W|$)`)
	reInlineCode       = regexp.MustCompile("`([^`]+)`")
	reLink             = regexp.MustCompile(`\[(.*?)\]\((.*?)\)(\^)?`)
	reOrderedList      = regexp.MustCompile(`^(\d+)[.)]\s`)
	reHeading          = regexp.MustCompile(`^#{1,6}\s+`)
	// ![alt](url) with an optional {style} or {style|width|height} suffix
	reImg = regexp.MustCompile(`\!\[(.*?)\]\((.*?)\)(\{[^}]*\})?`)
)

// Plain returns md as plain text. Paragraphs, headings, quotes and list items
// each become one line; inline markers are removed and links keep their text.
func Plain(md string) string {
	var out []string
	var para []string
	inCode := false

	flushPara := func() {
		if len(para) > 0 {
			out = append(out, strings.Join(para, " "))
			para = nil
		}
	}

	for _, raw := range strings.Split(md, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			flushPara()
			inCode = !inCode
			continue
		}
		if inCode {
			if s := strings.TrimSpace(line); s != "" {
				out = append(out, s)
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushPara()
			continue
		}

		switch {
		case isRule(trimmed):
			flushPara()
		case reHeading.MatchString(trimmed):
			flushPara()
			out = append(out, StripInline(reHeading.ReplaceAllString(trimmed, "")))
		case strings.HasPrefix(trimmed, "|"):
			flushPara()
			if isTableSeparator(trimmed) {
				continue
			}
			cells := parseTableCells(trimmed)
			for i := range cells {
				cells[i] = StripInline(cells[i])
			}
			out = append(out, strings.Join(FilterEmpty(cells), ": "))
		case hasBullet(trimmed):
			flushPara()
			item, _ := bulletText(trimmed)
			out = append(out, StripInline(item))
		case reOrderedList.MatchString(trimmed):
			flushPara()
			out = append(out, StripInline(strings.TrimSpace(reOrderedList.ReplaceAllString(trimmed, ""))))
		case strings.HasPrefix(trimmed, ">"):
			flushPara()
			out = append(out, StripInline(strings.TrimSpace(strings.TrimLeft(trimmed, "> "))))
		default:
			para = append(para, StripInline(trimmed))
		}
	}
	flushPara()
	return strings.Join(out, "\n")
}

// Items returns the list items of md. Text that is not a list becomes one
// item per paragraph.
func Items(md string) []string {
	return FilterEmpty(strings.Split(Plain(md), "\n"))
}

func hasBullet(line string) bool {
	_, ok := bulletText(line)
	return ok
}

func bulletText(line string) (string, bool) {
	for _, p := range []string{"- ", "* ", "+ ", "• "} {
		if strings.HasPrefix(line, p) {
			return strings.TrimSpace(line[len(p):]), true
		}
	}
	return "", false
}

func isRule(line string) bool {
	if len(line) < 3 {
		return false
	}
	c := line[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != c && line[i] != ' ' {
			return false
		}
	}
	return true
}

func parseTableCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isTableSeparator(line string) bool {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "|")
	for _, cell := range strings.Split(line, "|") {
		cell = strings.TrimSpace(cell)
		cleaned := strings.ReplaceAll(strings.ReplaceAll(cell, "-", ""), ":", "")
		if cleaned != "" {
			return false
		}
	}
	return true
}

// StripInline removes inline formatting from s. Images are replaced by their
// alt text and links by their label.
func StripInline(s string) string {
	s = reImg.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	// Inline code is set aside so emphasis markers inside it survive.
	var code []string
	s = reInlineCode.ReplaceAllStringFunc(s, func(m string) string {
		match := reInlineCode.FindStringSubmatch(m)
		placeholder := "\x00IC" + strconv.Itoa(len(code)) + "\x00"
		code = append(code, match[1])
		return placeholder
	})
	s = reBold.ReplaceAllString(s, "$1")
	s = reBoldUnderscore.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1")
	s = reItalicUnderscore.ReplaceAllString(s, "$1$2$3")
	for i, c := range code {
		s = strings.Replace(s, "\x00IC"+strconv.Itoa(i)+"\x00", c, 1)
	}
	return strings.Join(strings.Fields(s), " ")
}

// FilterEmpty removes empty or whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
