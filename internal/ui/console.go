package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/samsaffron/aleph/internal/llm"
)

const defaultWidth = 80

// Header is the status panel shown at startup and by /status.
type Header struct {
	AgentName string
	Model     string
	Mode      string
	Commands  []string
}

// Console is the terminal presentation layer. All user-visible output goes through it.
type Console struct {
	out       io.Writer
	styles    *Styles
	markdown  *markdownRenderer
	agentName string
	tty       bool
	fd        int

	readLine func(prompt string) (string, error)

	mu      sync.Mutex
	program *tea.Program // set while a spinner owns the terminal
}

// NewConsole creates a console writing to out, with colors and interactive
// widgets enabled when out is a terminal.
func NewConsole(out *os.File, agentName string, theme *Theme) *Console {
	fd := int(out.Fd())
	tty := term.IsTerminal(fd)
	c := newConsole(out, agentName, theme, tty)
	c.fd = fd
	return c
}

// NewPlainConsole creates a console without terminal features, for pipes and tests.
func NewPlainConsole(out io.Writer, agentName string) *Console {
	return newConsole(out, agentName, DefaultTheme(), false)
}

func newConsole(out io.Writer, agentName string, theme *Theme, tty bool) *Console {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Console{
		out:       out,
		styles:    NewStyles(out, theme),
		markdown:  newMarkdownRenderer(theme, tty),
		agentName: agentName,
		tty:       tty,
		fd:        -1,
		readLine:  func(string) (string, error) { return "", io.EOF },
	}
}

// SetLineInput sets the line source used by prompts when no interactive widget is available.
func (c *Console) SetLineInput(fn func(prompt string) (string, error)) {
	c.readLine = fn
}

// IsTTY reports whether interactive widgets are enabled.
func (c *Console) IsTTY() bool { return c.tty }

// Width returns the terminal width, or 80 when unknown.
func (c *Console) Width() int {
	if c.fd >= 0 {
		if w, _, err := term.GetSize(c.fd); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// println writes a line, routing it above the spinner while one is running.
func (c *Console) println(line string) {
	c.mu.Lock()
	p := c.program
	c.mu.Unlock()
	if p != nil {
		p.Send(tea.Println(line)())
		return
	}
	fmt.Fprintln(c.out, line)
}

func (c *Console) Error(msg string) {
	c.println(c.styles.Error.Render("Error:") + " " + msg)
}

// Fatal prints a labelled error, such as "Configuration Error: <msg>".
func (c *Console) Fatal(label, msg string) {
	c.println(c.styles.Error.Render(label+":") + " " + msg)
}

func (c *Console) Warning(msg string) {
	c.println(c.styles.Warning.Render("Warning:") + " " + msg)
}

func (c *Console) Info(msg string) {
	c.println(c.styles.Muted.Render(msg))
}

func (c *Console) System(msg string) {
	c.println(c.styles.System.Render(msg))
}

// Notice prints msg in the warning color without a prefix.
func (c *Console) Notice(msg string) {
	c.println(c.styles.Colored(c.styles.theme.Warning).Render(msg))
}

func (c *Console) clearScreen() {
	if c.tty {
		fmt.Fprint(c.out, "\033[H\033[2J")
	}
}

// Header clears the screen and draws the status panel.
func (c *Console) Header(h Header) {
	c.clearScreen()
	theme := c.styles.theme
	body := strings.Join([]string{
		"Agent: " + c.styles.Colored(theme.Primary).Render(h.AgentName),
		"Model: " + c.styles.Colored(theme.Accent).Render(h.Model),
		"Mode: " + c.styles.Colored(theme.Warning).Render(strings.ToUpper(h.Mode)),
		"Commands: " + strings.Join(h.Commands, ", "),
	}, "\n")
	c.box("Terminal Interface", body, theme.Secondary)
}

// Panel draws markdown content in a bordered box.
func (c *Console) Panel(title, content string, color lipgloss.Color) {
	c.box(title, c.markdown.Render(content, c.innerWidth()), color)
}

// InstructionPanel shows the active system instruction.
func (c *Console) InstructionPanel(mode, instruction string) {
	c.Panel(fmt.Sprintf("Current System Instruction (Mode: %s)", strings.ToUpper(mode)), instruction, c.styles.theme.Warning)
}

func (c *Console) innerWidth() int {
	return max(c.Width()-8, 20)
}

func (c *Console) box(title, body string, color lipgloss.Color) {
	content := c.styles.Colored(color).Render(title) + "\n\n" + body
	c.println(c.styles.Box(color).Width(c.Width() - 2).Render(content))
}

// Table prints a titled table.
func (c *Console) Table(title string, columns []string, rows [][]string) {
	c.println(c.renderTable(title, columns, rows, false))
}

func (c *Console) renderTable(title string, columns []string, rows [][]string, indexed bool) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.styles.TableBorder).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return c.styles.TableHeader
			case indexed && col == 0:
				return c.styles.TableIndex
			default:
				return c.styles.TableCell
			}
		})
	return c.styles.TableTitle.Render(title) + "\n" + t.Render()
}

// History prints every message in its own panel between two rules.
func (c *Console) History(msgs []llm.Message) {
	if len(msgs) == 0 {
		c.Info("No conversation history yet.")
		return
	}

	theme := c.styles.theme
	c.println(c.rule("Conversation History"))
	for i, msg := range msgs {
		if msg.Role == llm.RoleUser {
			c.Panel(fmt.Sprintf("You > (%d)", i+1), msg.Content, theme.Success)
		} else {
			c.Panel(fmt.Sprintf("%s $ (%d)", c.agentName, i+1), msg.Content, theme.Accent)
		}
	}
	c.println(c.rule(""))
}

// rule draws a horizontal line across the terminal with an optional centered title.
func (c *Console) rule(title string) string {
	width := c.Width()
	if title == "" {
		return c.styles.Rule.Render(strings.Repeat("─", width))
	}
	label := " " + Truncate(title, width-4) + " "
	side := max((width-runewidth.StringWidth(label))/2, 1)
	rest := max(width-side-runewidth.StringWidth(label), 1)
	return c.styles.Rule.Render(strings.Repeat("─", side) + label + strings.Repeat("─", rest))
}

// Goodbye prints the exit message.
func (c *Console) Goodbye() {
	c.println(c.styles.Colored(c.styles.theme.Secondary).Render("Goodbye!"))
}

// Truncate shortens s to fit width terminal cells, adding an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "...")
}
