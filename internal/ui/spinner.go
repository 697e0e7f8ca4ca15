package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/samsaffron/aleph/internal/llm"
)

type streamChunkMsg int

type streamDoneMsg struct {
	err error
}

// spinnerModel shows progress while a reply stream is drained in the background.
type spinnerModel struct {
	spinner    spinner.Model
	label      string
	cancel     context.CancelFunc
	cancelling bool
	received   int
	done       bool
	dimStyle   lipgloss.Style
}

func newSpinnerModel(label string, cancel context.CancelFunc, styles *Styles) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner
	return spinnerModel{
		spinner:  s,
		label:    label,
		cancel:   cancel,
		dimStyle: styles.Muted,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEscape || msg.Type == tea.KeyCtrlC {
			// keep running until the stream reports the cancellation
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
		}
	case streamChunkMsg:
		m.received += int(msg)
	case streamDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	if m.cancelling {
		return m.spinner.View() + " Cancelling..."
	}
	status := m.label
	if m.received > 0 {
		status += fmt.Sprintf(" (%d chars)", m.received)
	}
	return m.spinner.View() + " " + status + " " + m.dimStyle.Render("(esc to cancel)")
}

// RenderStream drains stream, then renders the accumulated reply as markdown.
// Whatever arrived before a failure is still rendered; the failure is returned.
// On a terminal a spinner runs meanwhile and Esc or Ctrl+C calls cancel.
func (c *Console) RenderStream(stream *llm.TextStream, cancel context.CancelFunc) (string, error) {
	defer stream.Close()

	var err error
	if c.tty {
		err = c.drainWithSpinner(stream, cancel)
	} else {
		err = drain(stream, nil)
	}

	text := stream.Text()
	c.println("\n" + c.styles.Agent.Render(c.agentName+" $"))
	if text != "" {
		c.println(c.markdown.Render(text, c.Width()))
	}
	return text, err
}

func drain(stream *llm.TextStream, onChunk func(int)) error {
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if onChunk != nil {
			onChunk(len(chunk))
		}
	}
}

func (c *Console) drainWithSpinner(stream *llm.TextStream, cancel context.CancelFunc) error {
	model := newSpinnerModel(c.agentName+" is thinking...", cancel, c.styles)
	p := tea.NewProgram(model, tea.WithOutput(c.out))

	c.mu.Lock()
	c.program = p
	c.mu.Unlock()

	result := make(chan error, 1)
	go func() {
		err := drain(stream, func(n int) { p.Send(streamChunkMsg(n)) })
		result <- err
		p.Send(streamDoneMsg{err: err})
	}()

	_, runErr := p.Run()

	c.mu.Lock()
	c.program = nil
	c.mu.Unlock()

	if runErr != nil {
		// the terminal failed under us; stop the request and wait for the drain
		cancel()
	}
	return <-result
}
