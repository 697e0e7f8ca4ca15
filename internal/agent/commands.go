package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/samsaffron/aleph/internal/analysis"
	"github.com/samsaffron/aleph/internal/config"
	"github.com/samsaffron/aleph/internal/history"
	"github.com/samsaffron/aleph/internal/llm"
)

// headerCommands is the command summary shown in the status panel.
var headerCommands = []string{
	"/model", "/save", "/load", "/clear", "/history", "/system", "/help", "/analyze", "/dir_analyze", "/quit",
}

type command struct {
	name    string
	aliases []string
	usage   string
	desc    string
	run     func(a *Agent, ctx context.Context, arg string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "/help", desc: "Displays this list of commands.", run: (*Agent).cmdHelp},
		{name: "/status", desc: "Redraws the header with current agent status.", run: (*Agent).cmdStatus},
		{name: "/model", desc: "Switch the active Gemini model (retains history).", run: (*Agent).cmdModel},
		{name: "/system", usage: "/system [mode/text]", desc: "Switch modes (core/quant/debate) or set custom instruction.", run: (*Agent).cmdSystem},
		{name: "/history", aliases: []string{"/hist"}, desc: "Display all previous messages in styled panels.", run: (*Agent).cmdHistory},
		{name: "/clear", desc: "Wipe the conversation history from memory.", run: (*Agent).cmdClear},
		{name: "/save", usage: "/save [file]", desc: "Save current chat history to a JSON file.", run: (*Agent).cmdSave},
		{name: "/load", usage: "/load [file]", desc: "Load chat history from a JSON file.", run: (*Agent).cmdLoad},
		{name: "/analyze", usage: "/analyze [filepath] [prompt]", desc: "Upload and analyze a single file with a prompt.", run: (*Agent).cmdAnalyze},
		{name: "/dir_analyze", usage: "/dir_analyze [dirpath] [prompt]", desc: "Upload and analyze all relevant files in a directory.", run: (*Agent).cmdDirAnalyze},
		{name: "/quit", aliases: []string{"/exit"}, desc: "Exit the terminal agent.", run: (*Agent).cmdQuit},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, alias := range c.aliases {
			if alias == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// suggestCommand returns the closest known command name, if any.
func suggestCommand(name string) string {
	var names []string
	for _, c := range commands {
		names = append(names, c.name)
		names = append(names, c.aliases...)
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

func (a *Agent) runCommand(ctx context.Context, line string) error {
	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	cmd, ok := lookupCommand(name)
	if !ok {
		msg := "Unknown command: " + name
		if suggestion := suggestCommand(name); suggestion != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", suggestion)
		}
		return &CommandError{Msg: msg}
	}
	a.logger.Debug("command", zap.String("name", cmd.name))
	return cmd.run(a, ctx, arg)
}

func (a *Agent) cmdHelp(context.Context, string) error {
	rows := make([][]string, 0, len(commands))
	for _, c := range commands {
		usage := c.usage
		if usage == "" {
			usage = c.name
		}
		for _, alias := range c.aliases {
			usage += " | " + alias
		}
		rows = append(rows, []string{usage, c.desc})
	}
	a.ui.Table("Available Slash Commands", []string{"Command", "Description"}, rows)
	return nil
}

func (a *Agent) cmdStatus(context.Context, string) error {
	a.showHeader()
	return nil
}

func (a *Agent) cmdModel(ctx context.Context, _ string) error {
	if err := a.selectModel(ctx); err != nil {
		return err
	}
	a.showHeader()
	return nil
}

func (a *Agent) cmdSystem(ctx context.Context, arg string) error {
	if arg == "" {
		a.ui.Warning("No argument provided for /system. Current system instruction will be displayed.")
	} else {
		mode, instruction := config.CustomMode, arg
		if key := strings.ToLower(arg); a.catalog.HasMode(key) {
			mode, instruction = key, a.catalog.Instruction(key)
		}

		if err := a.client.InitializeSession(ctx, a.model, instruction, a.client.History()); err != nil {
			return err
		}
		a.mode, a.instruction = mode, instruction
		a.logger.Info("mode switched", zap.String("mode", mode))

		if mode == config.CustomMode {
			a.ui.Notice("System instruction set to CUSTOM.")
		} else {
			a.ui.System("Mode switched to: " + strings.ToUpper(mode))
		}
	}

	a.ui.InstructionPanel(a.mode, a.instruction)
	a.ui.System("Quick Switch Modes: /system " + strings.Join(a.catalog.ModeNames(), " | "))
	return nil
}

func (a *Agent) cmdHistory(context.Context, string) error {
	a.ui.History(a.client.History())
	return nil
}

func (a *Agent) cmdClear(ctx context.Context, _ string) error {
	if err := a.client.InitializeSession(ctx, a.model, a.instruction, nil); err != nil {
		return err
	}
	a.ui.Notice("Memory wiped.")
	return nil
}

func (a *Agent) cmdSave(_ context.Context, arg string) error {
	path := a.historyPath(arg)
	if err := history.Save(path, a.client.History()); err != nil {
		return err
	}
	a.ui.Info("History saved to " + path)
	return nil
}

func (a *Agent) cmdLoad(ctx context.Context, arg string) error {
	path := a.historyPath(arg)
	msgs, err := history.Load(path)
	if err != nil {
		return err
	}
	if err := a.client.InitializeSession(ctx, a.model, a.instruction, msgs); err != nil {
		return err
	}
	a.logger.Info("history loaded", zap.String("path", path), zap.Int("messages", len(msgs)))
	a.ui.System("History loaded from " + path)
	return nil
}

func (a *Agent) historyPath(arg string) string {
	if arg != "" {
		return arg
	}
	return a.historyFile
}

func (a *Agent) cmdAnalyze(ctx context.Context, arg string) error {
	return a.analyze(ctx, "/analyze", "file", arg, a.analyzer.AnalyzeFile)
}

func (a *Agent) cmdDirAnalyze(ctx context.Context, arg string) error {
	return a.analyze(ctx, "/dir_analyze", "directory", arg, a.analyzer.AnalyzeDirectory)
}

type analyzeFunc func(ctx context.Context, model, path, prompt string, consume analysis.Consumer) error

func (a *Agent) analyze(ctx context.Context, name, kind, arg string, fn analyzeFunc) error {
	path, prompt, _ := strings.Cut(arg, " ")
	prompt = strings.TrimSpace(prompt)
	if path == "" || prompt == "" {
		return &CommandError{Msg: fmt.Sprintf("Usage: %s [path] [prompt]", name)}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.ui.Info(fmt.Sprintf("Analyzing %s %s...", kind, path))
	return fn(ctx, a.model, path, prompt, func(stream *llm.TextStream) error {
		_, err := a.ui.RenderStream(stream, cancel)
		return err
	})
}

func (a *Agent) cmdQuit(context.Context, string) error {
	return ErrQuit
}
