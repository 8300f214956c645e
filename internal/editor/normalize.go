package editor

import (
	"strings"

	"golang.org/x/net/html"
)

// EmptyLine is the block written for a blank paragraph.
const EmptyLine = "<p><br></p>"

// HasMarkup reports whether s contains at least one HTML tag.
func HasMarkup(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			return true
		}
	}
}

// Normalize converts plain text into paragraph blocks. Text is split on
// blank-line boundaries; each non-blank segment becomes a <p> with single
// newlines kept as <br>, each blank segment becomes EmptyLine. Input that
// already carries markup is returned unchanged.
func Normalize(s string) string {
	if s == "" || HasMarkup(s) {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	for _, segment := range strings.Split(s, "\n\n") {
		if strings.TrimSpace(segment) == "" {
			b.WriteString(EmptyLine)
			continue
		}
		lines := strings.Split(strings.Trim(segment, "\n"), "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
