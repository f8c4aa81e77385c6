package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/batalabs/microcode/internal/agent"
	"github.com/batalabs/microcode/internal/domain"
)

var bannerArt = []string{
	"┌┬┐┬┌─┐┬─┐┌─┐",
	"││││├─┘├┬┘│ │",
	"┴ ┴┴└─┘┴└─└─┘",
	"┌─┐┌─┐┌┬┐┌─┐",
	"│  │ │ ││├┤ ",
	"└─┘└─┘─┴┘└─┘",
}

// Gradient from light to deep blue, one color per art line.
var bannerGradient = []string{"153", "117", "111", "75", "69", "33"}

// BannerInfo is what the startup banner reports.
type BannerInfo struct {
	Model        string
	SubModel     string
	Cwd          string
	HistoryLimit int
	MaxTokens    int
	Verbose      bool
}

// Banner renders the startup banner: art on the left, settings and quick
// commands on the right.
func Banner(info BannerInfo) string {
	art := make([]string, len(bannerArt))
	for i, l := range bannerArt {
		c := bannerGradient[i%len(bannerGradient)]
		art[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render(l)
	}

	maxTokens := "unset"
	if info.MaxTokens > 0 {
		maxTokens = strconv.Itoa(info.MaxTokens)
	}
	kv := func(k, v string) string {
		return "  " + BannerMeta.Render(k+":") + " " + v
	}
	right := []string{
		BannerStyle.Render("MICROCODE") + BannerMeta.Render(" - an efficient RLM terminal agent"),
		"",
		BannerMeta.Render("RLM:"),
		kv("model", agent.DisplayModelID(info.Model)),
		kv("sub_model", agent.DisplayModelID(info.SubModel)),
		"",
		BannerMeta.Render("Settings:"),
		kv("max_turns", strconv.Itoa(info.HistoryLimit)),
		kv("max_tokens", maxTokens),
		kv("verbose", strconv.FormatBool(info.Verbose)),
		kv("cwd", info.Cwd),
		"",
		BannerMeta.Render("Quick commands:"),
	}
	for _, name := range []string{"/help", "/model", "/key", "/c", "/q"} {
		for _, c := range domain.CommandDefs {
			if c.Name == name {
				right = append(right, "  "+StatusModel.Render(c.Name+" - "+c.Description))
			}
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		strings.Join(art, "\n"),
		"   ",
		strings.Join(right, "\n"),
	)
}

// StatusLine summarises the working directory, model pair and MCP tool
// count on one line.
func StatusLine(cwd, model, subModel string, mcpTools int) string {
	return fmt.Sprintf("%s %s  %s %s  %s %s  %s %d",
		StatusMeta.Render("cwd:"), cwd,
		StatusMeta.Render("RLM(model):"), StatusModel.Render(agent.DisplayModelID(model)),
		StatusMeta.Render("sub_model:"), StatusModel.Render(agent.DisplayModelID(subModel)),
		StatusMeta.Render("mcp_tools:"), mcpTools,
	)
}

// Separator is a horizontal rule as wide as the terminal.
func Separator(width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	return SeparatorStyle.Render(strings.Repeat("─", width))
}

// Help lists the slash commands grouped as in domain.CommandGroups.
func Help() string {
	var b strings.Builder
	b.WriteString(HeadingStyle.Render("Microcode commands") + "\n")
	for _, g := range domain.CommandGroups {
		b.WriteString("\n" + StatusHead.Render(g.Label) + "\n")
		for _, c := range domain.CommandDefs {
			if c.Group != g.Key {
				continue
			}
			name := c.Name
			if c.Usage != "" {
				name = c.Usage
			}
			if len(c.Aliases) > 0 {
				name += " (" + strings.Join(c.Aliases, ", ") + ")"
			}
			fmt.Fprintf(&b, "  %s %s\n", StatusModel.Render(fmt.Sprintf("%-26s", name)), c.Description)
		}
	}
	return b.String()
}

// ShortCwd keeps the last two components of path.
func ShortCwd(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return filepath.Join(parts[len(parts)-2:]...)
}
