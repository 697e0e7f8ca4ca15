package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

type rendererKey struct {
	width int
	color bool
}

// markdownRenderer caches glamour renderers per width, since building one is expensive.
type markdownRenderer struct {
	theme *Theme
	color bool
	cache sync.Map // map[rendererKey]*glamour.TermRenderer
}

func newMarkdownRenderer(theme *Theme, color bool) *markdownRenderer {
	return &markdownRenderer{theme: theme, color: color}
}

func (m *markdownRenderer) get(width int) (*glamour.TermRenderer, error) {
	key := rendererKey{width: width, color: m.color}
	if cached, ok := m.cache.Load(key); ok {
		return cached.(*glamour.TermRenderer), nil
	}

	style := styles.NoTTYStyleConfig
	if m.color {
		style = GlamourStyleFromTheme(m.theme)
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}

	m.cache.Store(key, renderer)
	return renderer, nil
}

// Render renders markdown; on error the original content is returned unchanged.
func (m *markdownRenderer) Render(content string, width int) string {
	if content == "" {
		return ""
	}
	renderer, err := m.get(width)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}
