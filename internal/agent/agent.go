// Package agent implements the interactive loop and slash-command state machine.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/samsaffron/aleph/internal/analysis"
	"github.com/samsaffron/aleph/internal/config"
	"github.com/samsaffron/aleph/internal/history"
	"github.com/samsaffron/aleph/internal/llm"
	"github.com/samsaffron/aleph/internal/signal"
	"github.com/samsaffron/aleph/internal/ui"
)

const inputPrompt = "You > "

// ChatClient owns the session and the committed history.
type ChatClient interface {
	InitializeSession(ctx context.Context, model, system string, history []llm.Message) error
	SendMessageStream(ctx context.Context, text string) (*llm.TextStream, error)
	History() []llm.Message
}

// Analyzer runs one-shot file and directory analysis.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, model, path, prompt string, consume analysis.Consumer) error
	AnalyzeDirectory(ctx context.Context, model, dir, prompt string, consume analysis.Consumer) error
}

// Presenter is everything the agent shows to the user.
type Presenter interface {
	Error(msg string)
	Warning(msg string)
	Info(msg string)
	System(msg string)
	Notice(msg string)
	Header(h ui.Header)
	InstructionPanel(mode, instruction string)
	Table(title string, columns []string, rows [][]string)
	History(msgs []llm.Message)
	Select(title string, options []ui.Option) (string, error)
	RenderStream(stream *llm.TextStream, cancel context.CancelFunc) (string, error)
	Goodbye()
}

// LineReader supplies input lines. It returns io.EOF when input ends.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// Deps are the collaborators of an Agent.
type Deps struct {
	Catalog     config.Catalog
	Client      ChatClient
	Analyzer    Analyzer
	UI          Presenter
	Input       LineReader
	Logger      *zap.Logger
	HistoryFile string // default for /save and /load
}

// Agent holds the current model, mode and instruction. It is driven from a single goroutine.
type Agent struct {
	catalog     config.Catalog
	client      ChatClient
	analyzer    Analyzer
	ui          Presenter
	input       LineReader
	logger      *zap.Logger
	historyFile string

	model       string
	mode        string
	instruction string
}

// New creates an agent in the default mode with no model selected.
func New(d Deps) *Agent {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	historyFile := d.HistoryFile
	if historyFile == "" {
		historyFile = "chat_history.json"
	}
	mode := d.Catalog.DefaultMode()
	return &Agent{
		catalog:     d.Catalog,
		client:      d.Client,
		analyzer:    d.Analyzer,
		ui:          d.UI,
		input:       d.Input,
		logger:      logger,
		historyFile: historyFile,
		mode:        mode,
		instruction: d.Catalog.Instruction(mode),
	}
}

func (a *Agent) Model() string       { return a.model }
func (a *Agent) Mode() string        { return a.mode }
func (a *Agent) Instruction() string { return a.instruction }

// Start selects the initial model and opens the first session. Any failure is fatal.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.selectModel(ctx); err != nil {
		return fmt.Errorf("agent initialization failed: %w", err)
	}
	return nil
}

// selectModel picks a model (automatically when only one is configured) and
// re-opens the session on it with the current history.
func (a *Agent) selectModel(ctx context.Context) error {
	models := a.catalog.Models()

	var id string
	if len(models) == 1 {
		id = models[0].ID
	} else {
		options := make([]ui.Option, 0, len(models))
		for _, m := range models {
			options = append(options, ui.Option{Value: m.ID, Label: m.DisplayName(), Description: m.Description})
		}
		selected, err := a.ui.Select("Select AI Model", options)
		if err != nil {
			if errors.Is(err, ui.ErrNoSelection) {
				return &CommandError{Msg: "No model selected."}
			}
			return err
		}
		id = selected
	}

	if err := a.client.InitializeSession(ctx, id, a.instruction, a.client.History()); err != nil {
		return err
	}
	a.model = id
	a.logger.Info("model selected", zap.String("model", id), zap.String("mode", a.mode))
	a.ui.Notice("Switched to " + a.catalog.ModelName(id))
	return nil
}

// Run reads input until /quit, /exit or end of input.
func (a *Agent) Run(ctx context.Context) error {
	a.showHeader()

	for {
		line, err := a.input.ReadLine(inputPrompt)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			line = "/quit"
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := a.handle(ctx, line); errors.Is(err, ErrQuit) {
			a.ui.Goodbye()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handle runs one input line with its own interrupt scope and reports any failure.
// Only ErrQuit is returned.
func (a *Agent) handle(ctx context.Context, line string) error {
	turnCtx, stop := signal.NotifyContext(ctx)
	defer stop()

	err := a.safeDispatch(turnCtx, line)
	if err == nil || errors.Is(err, ErrQuit) {
		return err
	}
	a.report(err)
	return nil
}

func (a *Agent) safeDispatch(ctx context.Context, line string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic in command",
				zap.String("input", line),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("%v", r)
		}
	}()
	return a.Dispatch(ctx, line)
}

// Dispatch runs a slash command or sends line as a chat message.
func (a *Agent) Dispatch(ctx context.Context, line string) error {
	if strings.HasPrefix(line, "/") {
		return a.runCommand(ctx, line)
	}
	return a.chat(ctx, line)
}

// report maps an error to a user-visible message.
func (a *Agent) report(err error) {
	var (
		cmdErr      *CommandError
		analysisErr *analysis.Error
		historyErr  *history.Error
		svcErr      *llm.ServiceError
	)
	switch {
	case errors.Is(err, context.Canceled):
		a.ui.Warning("Interrupted. Type /quit to exit.")
		return
	case errors.As(err, &cmdErr), errors.As(err, &analysisErr), errors.As(err, &historyErr), errors.As(err, &svcErr):
		a.ui.Error(err.Error())
	default:
		a.ui.Error("An unexpected error occurred during command execution: " + err.Error())
	}
	a.logger.Warn("command failed", zap.Error(err))
}

func (a *Agent) chat(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := a.client.SendMessageStream(ctx, text)
	if err != nil {
		return err
	}
	if _, err := a.ui.RenderStream(stream, cancel); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		a.logger.Warn("chat stream failed", zap.Error(err))
		a.ui.Error("Streaming failed: " + err.Error())
	}
	return nil
}

func (a *Agent) showHeader() {
	a.ui.Header(ui.Header{
		AgentName: a.catalog.AgentName(),
		Model:     a.model,
		Mode:      a.mode,
		Commands:  headerCommands,
	})
}
