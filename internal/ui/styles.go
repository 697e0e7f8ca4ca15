package ui

import (
	"io"

	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/samsaffron/aleph/internal/config"
)

// Theme defines the color palette for the UI
type Theme struct {
	Primary   lipgloss.Color // agent prompt, commands, highlights
	Secondary lipgloss.Color // headers, borders
	Success   lipgloss.Color // system messages, user panels
	Error     lipgloss.Color
	Warning   lipgloss.Color // warnings, instruction panel
	Muted     lipgloss.Color // info lines
	Text      lipgloss.Color
	Spinner   lipgloss.Color
	Accent    lipgloss.Color // model panels in history
}

// DefaultTheme returns the default color theme (gruvbox)
func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#8ec07c"), // gruvbox aqua
		Secondary: lipgloss.Color("#83a598"), // gruvbox blue
		Success:   lipgloss.Color("#b8bb26"), // gruvbox green
		Error:     lipgloss.Color("#fb4934"), // gruvbox red
		Warning:   lipgloss.Color("#fabd2f"), // gruvbox yellow
		Muted:     lipgloss.Color("#928374"), // gruvbox gray
		Text:      lipgloss.Color("#ebdbb2"), // gruvbox foreground
		Spinner:   lipgloss.Color("#d3869b"), // gruvbox purple
		Accent:    lipgloss.Color("#d3869b"),
	}
}

// ThemeFromConfig creates a theme with config overrides applied
func ThemeFromConfig(cfg config.ThemeConfig) *Theme {
	theme := DefaultTheme()
	override := func(dst *lipgloss.Color, v string) {
		if v != "" {
			*dst = lipgloss.Color(v)
		}
	}
	override(&theme.Primary, cfg.Primary)
	override(&theme.Secondary, cfg.Secondary)
	override(&theme.Success, cfg.Success)
	override(&theme.Error, cfg.Error)
	override(&theme.Warning, cfg.Warning)
	override(&theme.Muted, cfg.Muted)
	override(&theme.Text, cfg.Text)
	return theme
}

// Styles holds lipgloss styles bound to one output.
type Styles struct {
	renderer *lipgloss.Renderer
	theme    *Theme

	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	System  lipgloss.Style
	Bold    lipgloss.Style
	Agent   lipgloss.Style
	Prompt  lipgloss.Style

	TableTitle  lipgloss.Style
	TableHeader lipgloss.Style
	TableCell   lipgloss.Style
	TableIndex  lipgloss.Style
	TableBorder lipgloss.Style

	Spinner lipgloss.Style
	Rule    lipgloss.Style
}

// NewStyles creates styles for w. Color is dropped automatically when w is not a terminal.
func NewStyles(w io.Writer, theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	r := lipgloss.NewRenderer(w)

	return &Styles{
		renderer: r,
		theme:    theme,

		Error:   r.NewStyle().Bold(true).Foreground(theme.Error),
		Warning: r.NewStyle().Foreground(theme.Warning),
		Muted:   r.NewStyle().Foreground(theme.Muted),
		System:  r.NewStyle().Bold(true).Foreground(theme.Success),
		Bold:    r.NewStyle().Bold(true),
		Agent:   r.NewStyle().Bold(true).Foreground(theme.Primary),
		Prompt:  r.NewStyle().Bold(true).Foreground(theme.Success),

		TableTitle:  r.NewStyle().Bold(true).Foreground(theme.Secondary),
		TableHeader: r.NewStyle().Bold(true).Foreground(theme.Text).Padding(0, 1),
		TableCell:   r.NewStyle().Padding(0, 1),
		TableIndex:  r.NewStyle().Foreground(theme.Primary).Padding(0, 1),
		TableBorder: r.NewStyle().Foreground(theme.Secondary),

		Spinner: r.NewStyle().Foreground(theme.Spinner),
		Rule:    r.NewStyle().Bold(true).Foreground(theme.Secondary),
	}
}

// Theme returns the theme used by these styles
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Box returns a bordered panel style in the given color.
func (s *Styles) Box(color lipgloss.Color) lipgloss.Style {
	return s.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2)
}

// Colored returns a bold style in the given color.
func (s *Styles) Colored(color lipgloss.Color) lipgloss.Style {
	return s.renderer.NewStyle().Bold(true).Foreground(color)
}

// GlamourStyleFromTheme recolors glamour's dark style with the theme palette.
func GlamourStyleFromTheme(theme *Theme) ansi.StyleConfig {
	primary := string(theme.Primary)
	secondary := string(theme.Secondary)
	warning := string(theme.Warning)
	text := string(theme.Text)

	style := styles.DarkStyleConfig
	margin := uint(0)
	style.Document.Margin = &margin
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	style.Document.Color = &text
	style.Heading.Color = &secondary
	style.Strong.Color = &primary
	style.Emph.Color = &warning
	style.Code.Color = &primary
	style.Link.Color = &secondary
	style.LinkText.Color = &primary
	style.CodeBlock.Margin = &margin
	return style
}
