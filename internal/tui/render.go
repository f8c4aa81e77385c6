package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
)

var (
	openFenceRe     = regexp.MustCompile("([^\\n])```([A-Za-z0-9_+-]*)")
	numberedListRe  = regexp.MustCompile(`^(\s*)(\d+)\.\s+(.+)`)
	inlineCodeRe    = regexp.MustCompile("`([^`]+)`")
	boldRe          = regexp.MustCompile(`\*\*(.+?)\*\*`)
	strikethroughRe = regexp.MustCompile(`~~(.+?)~~`)
	linkRe          = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	hrRe            = regexp.MustCompile(`^[-*_]{3,}\s*$`)
	headingRe       = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
)

// WrapWords splits s into lines that fit within width, breaking at word
// boundaries. Words longer than width are hard-broken.
func WrapWords(s string, width int) []string {
	if width < 10 {
		width = 10
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, word := range words {
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if len(next) <= width {
			cur = next
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		for len(word) > width {
			lines = append(lines, word[:width])
			word = word[width:]
		}
		cur = word
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// RenderMarkdown turns an answer into styled, wrapped terminal text.
// Fenced code is highlighted; headings, lists, quotes and rules get their
// own styles; everything else is wrapped to width.
func RenderMarkdown(content string, width int) string {
	return strings.Join(RenderLines(content, width), "\n")
}

// RenderLines is RenderMarkdown without the final join.
func RenderLines(content string, width int) []string {
	if width < 20 {
		width = 20
	}
	text := strings.ReplaceAll(content, "\r\n", "\n")
	text = openFenceRe.ReplaceAllString(text, "$1\n```$2")
	raw := strings.Split(strings.TrimRight(text, "\n"), "\n")

	out := make([]string, 0, len(raw))
	var (
		inCode bool
		lang   string
		code   []string
	)
	for _, l := range raw {
		line := strings.TrimRight(l, " \t")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				out = append(out, highlightCode(lang, strings.Join(code, "\n"))...)
				inCode, lang, code = false, "", nil
			} else {
				inCode = true
				lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			}
			continue
		}
		if inCode {
			code = append(code, line)
			continue
		}

		switch {
		case trimmed == "":
			out = append(out, "")
		case hrRe.MatchString(trimmed):
			out = append(out, HrStyle.Render(strings.Repeat("─", min(width, 40))))
		case strings.HasPrefix(trimmed, ">"):
			quote := strings.TrimSpace(strings.TrimPrefix(trimmed, ">"))
			for _, wl := range WrapWords(quote, width-2) {
				out = append(out, BlockquoteStyle.Render("│ ")+ApplyInlineFormatting(wl))
			}
		case headingRe.MatchString(trimmed):
			heading := headingRe.FindStringSubmatch(trimmed)[1]
			for _, wl := range WrapWords(heading, width) {
				out = append(out, HeadingStyle.Render(ApplyInlineFormatting(wl)))
			}
		default:
			out = append(out, renderListOrText(line, width)...)
		}
	}
	// An unterminated fence still renders what it collected.
	if inCode {
		out = append(out, highlightCode(lang, strings.Join(code, "\n"))...)
	}
	return out
}

func renderListOrText(line string, width int) []string {
	indent, marker, item := 0, "", ""
	if n, it, ok := ParseBulletLine(line); ok {
		indent, marker, item = n, BulletStyle.Render("•")+" ", it
	} else if m := numberedListRe.FindStringSubmatch(line); m != nil {
		indent, marker, item = len(m[1]), BulletStyle.Render(m[2]+".")+" ", m[3]
	} else {
		var out []string
		for _, wl := range WrapWords(line, width) {
			out = append(out, ApplyInlineFormatting(wl))
		}
		return out
	}

	pad := strings.Repeat(" ", indent)
	markerWidth := lipgloss.Width(marker)
	wrapped := WrapWords(item, width-indent-markerWidth)
	out := []string{pad + marker + ApplyInlineFormatting(wrapped[0])}
	for _, wl := range wrapped[1:] {
		out = append(out, pad+strings.Repeat(" ", markerWidth)+ApplyInlineFormatting(wl))
	}
	return out
}

// ParseBulletLine detects a -, + or * list item with optional leading
// whitespace. Tabs count as two spaces of indent.
func ParseBulletLine(line string) (indent int, item string, ok bool) {
	i := 0
	for ; i < len(line); i++ {
		if line[i] == ' ' {
			indent++
		} else if line[i] == '\t' {
			indent += 2
		} else {
			break
		}
	}
	rest := line[i:]
	if len(rest) < 2 || rest[1] != ' ' {
		return 0, "", false
	}
	switch rest[0] {
	case '-', '+':
	case '*':
		if hrRe.MatchString(strings.TrimSpace(rest)) {
			return 0, "", false
		}
	default:
		return 0, "", false
	}
	return indent, strings.TrimSpace(rest[2:]), true
}

// highlightCode syntax-highlights a fenced block with chroma and adds a
// line-number gutter.
func highlightCode(lang, code string) []string {
	if lang == "" || lang == "text" {
		lang = "plaintext"
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, code, lang, "terminal256", "dracula"); err != nil {
		buf.Reset()
		buf.WriteString(code)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		out = append(out, CodeGutterStyle.Render(fmt.Sprintf("%3d │ ", i+1))+l)
	}
	return out
}

// ApplyInlineFormatting styles `code`, [text](url), **bold**, *italic* and
// ~~strikethrough~~ within one line.
func ApplyInlineFormatting(s string) string {
	// Code spans first so their contents are left alone.
	var spans []string
	s = inlineCodeRe.ReplaceAllStringFunc(s, func(m string) string {
		spans = append(spans, InlineCodeStyle.Render(inlineCodeRe.FindStringSubmatch(m)[1]))
		return fmt.Sprintf("\x00%d\x00", len(spans)-1)
	})
	s = linkRe.ReplaceAllStringFunc(s, func(m string) string {
		p := linkRe.FindStringSubmatch(m)
		return p[1] + LinkURLStyle.Render(" ("+p[2]+")")
	})
	s = strikethroughRe.ReplaceAllStringFunc(s, func(m string) string {
		return StrikethroughStyle.Render(strikethroughRe.FindStringSubmatch(m)[1])
	})
	s = boldRe.ReplaceAllStringFunc(s, func(m string) string {
		return BoldInlineStyle.Render(boldRe.FindStringSubmatch(m)[1])
	})
	s = applyItalic(s)
	for i, span := range spans {
		s = strings.Replace(s, fmt.Sprintf("\x00%d\x00", i), span, 1)
	}
	return s
}

// applyItalic styles single-asterisk spans, skipping ** pairs and ANSI
// sequences left by earlier passes.
func applyItalic(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '\x1b' {
			j := strings.IndexByte(s[i:], 'm')
			if j < 0 {
				b.WriteString(s[i:])
				break
			}
			b.WriteString(s[i : i+j+1])
			i += j + 1
			continue
		}
		if s[i] != '*' || (i+1 < len(s) && s[i+1] == '*') {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], '*')
		if end <= 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		end += i + 1
		if end+1 < len(s) && s[end+1] == '*' {
			b.WriteByte(s[i])
			i++
			continue
		}
		b.WriteString(ItalicInlineStyle.Render(s[i+1 : end]))
		i = end + 1
	}
	return b.String()
}
