package tui

import "github.com/charmbracelet/lipgloss"

var (
	BannerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	BannerMeta    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	PromptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("183"))
	AsstIconStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	ThinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	SeparatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	StatusHead  = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	StatusModel = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	StatusMeta  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	ErrorLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	NoticeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	BulletStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	HeadingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("222")).Bold(true)
	CodeGutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	BoldInlineStyle    = lipgloss.NewStyle().Bold(true)
	ItalicInlineStyle  = lipgloss.NewStyle().Italic(true)
	StrikethroughStyle = lipgloss.NewStyle().Strikethrough(true)
	LinkURLStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	InlineCodeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	HrStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	BlockquoteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	MenuTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("222")).Bold(true)
	MenuItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	MenuSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("62"))
	MenuHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)
