package tui

import (
	"strings"
	"testing"
)

func TestWrapWords(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		width     int
		wantLines int
	}{
		{"empty", "", 40, 1},
		{"fits in one line", "hello world", 40, 1},
		{"wraps at word boundary", "hello world foo bar", 11, 2},
		{"long word hard breaks", strings.Repeat("x", 25), 10, 3},
		{"width below min uses 10", "hello world", 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapWords(tt.input, tt.width)
			if len(got) != tt.wantLines {
				t.Errorf("WrapWords(%q, %d) = %d lines, want %d: %v", tt.input, tt.width, len(got), tt.wantLines, got)
			}
		})
	}
}

func TestParseBulletLine(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantIndent int
		wantItem   string
		wantOK     bool
	}{
		{"top-level dash", "- item", 0, "item", true},
		{"indented dash", "  - sub item", 2, "sub item", true},
		{"tab indent", "\t- tabbed", 2, "tabbed", true},
		{"plus marker", "+ item", 0, "item", true},
		{"asterisk marker", "* item", 0, "item", true},
		{"not a bullet", "regular text", 0, "", false},
		{"dash without space", "-flag", 0, "", false},
		{"horizontal rule", "***", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indent, item, ok := ParseBulletLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if indent != tt.wantIndent {
				t.Errorf("indent = %d, want %d", indent, tt.wantIndent)
			}
			if item != tt.wantItem {
				t.Errorf("item = %q, want %q", item, tt.wantItem)
			}
		})
	}
}

func TestApplyInlineFormatting(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		gone    string
		present []string
	}{
		{"inline code", "use `fmt.Println` here", "`", []string{"fmt.Println"}},
		{"bold", "this is **bold** text", "**", []string{"bold"}},
		{"strikethrough", "this is ~~removed~~ text", "~~", []string{"removed"}},
		{"link", "see [docs](https://example.com)", "[docs]", []string{"docs", "https://example.com"}},
		{"code protects bold", "use `**kwargs**` in Python", "`", []string{"**kwargs**"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyInlineFormatting(tt.in)
			if strings.Contains(got, tt.gone) {
				t.Errorf("%q still contains %q", got, tt.gone)
			}
			for _, p := range tt.present {
				if !strings.Contains(got, p) {
					t.Errorf("%q lost %q", got, p)
				}
			}
		})
	}
}

func TestRenderLines_Blocks(t *testing.T) {
	t.Run("heading drops hashes", func(t *testing.T) {
		lines := RenderLines("## Plan", 60)
		if len(lines) != 1 || strings.Contains(lines[0], "#") || !strings.Contains(lines[0], "Plan") {
			t.Errorf("lines = %q", lines)
		}
	})
	t.Run("hashtag is plain text", func(t *testing.T) {
		lines := RenderLines("#hashtag", 60)
		if len(lines) != 1 || !strings.Contains(lines[0], "#hashtag") {
			t.Errorf("lines = %q", lines)
		}
	})
	t.Run("nested bullets keep indent", func(t *testing.T) {
		lines := RenderLines("- top\n  - nested", 60)
		if len(lines) != 2 {
			t.Fatalf("lines = %q", lines)
		}
		if strings.HasPrefix(lines[0], " ") || !strings.HasPrefix(lines[1], "  ") {
			t.Errorf("indent wrong: %q", lines)
		}
	})
	t.Run("numbered list", func(t *testing.T) {
		lines := RenderLines("1. first\n2. second", 60)
		if len(lines) != 2 || !strings.Contains(lines[1], "2.") {
			t.Errorf("lines = %q", lines)
		}
	})
	t.Run("blockquote", func(t *testing.T) {
		lines := RenderLines("> quoted", 60)
		if len(lines) != 1 || !strings.Contains(lines[0], "│") || strings.Contains(lines[0], ">") {
			t.Errorf("lines = %q", lines)
		}
	})
	t.Run("rule", func(t *testing.T) {
		lines := RenderLines("---", 60)
		if len(lines) != 1 || !strings.Contains(lines[0], "─") {
			t.Errorf("lines = %q", lines)
		}
	})
}

func TestRenderLines_CodeFence(t *testing.T) {
	lines := RenderLines("Here:\n```go\nx := 1\ny := 2\n```\ndone", 60)
	if len(lines) != 4 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	if !strings.Contains(lines[1], "1 │") || !strings.Contains(lines[2], "2 │") {
		t.Errorf("missing gutter: %q", lines[1:3])
	}
	for _, l := range lines {
		if strings.Contains(l, "```") {
			t.Errorf("fence marker leaked: %q", l)
		}
	}
}

func TestRenderLines_UnterminatedFence(t *testing.T) {
	lines := RenderLines("```\nplain", 60)
	if len(lines) != 1 || !strings.Contains(lines[0], "plain") {
		t.Errorf("lines = %q", lines)
	}
}

func TestRenderMarkdown_JoinsLines(t *testing.T) {
	got := RenderMarkdown("one\n\ntwo", 60)
	if got != "one\n\ntwo" {
		t.Errorf("RenderMarkdown = %q", got)
	}
}
