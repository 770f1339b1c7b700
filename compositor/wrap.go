package compositor

import "strings"

// Wrap breaks text into lines of at most maxChars runes. Newlines in text
// always start a new line, and a word longer than maxChars is split across
// lines.
func Wrap(text string, maxChars int) []string {
	maxChars = max(maxChars, 1)
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var cur []rune
		for _, w := range words {
			word := []rune(w)
			switch {
			case len(cur) == 0:
			case len(cur)+1+len(word) <= maxChars:
				cur = append(cur, ' ')
				cur = append(cur, word...)
				continue
			default:
				lines = append(lines, string(cur))
				cur = nil
			}
			for len(word) > maxChars {
				lines = append(lines, string(word[:maxChars]))
				word = word[maxChars:]
			}
			cur = append(cur, word...)
		}
		lines = append(lines, string(cur))
	}
	return lines
}
