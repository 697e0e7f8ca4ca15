package ui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// LineReader reads edited input lines with recall history persisted to a file.
type LineReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader creates a reader. An empty historyFile disables persistence.
func NewLineReader(historyFile string) *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &LineReader{line: line, historyFile: historyFile}
	r.loadHistory()
	return r
}

func (r *LineReader) loadHistory() {
	if r.historyFile == "" {
		return
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
}

// ReadLine prompts for one line. Ctrl+C yields an empty line; Ctrl+D yields io.EOF.
func (r *LineReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", nil
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (r *LineReader) Close() error {
	r.saveHistory()
	return r.line.Close()
}

func (r *LineReader) saveHistory() {
	if r.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	r.line.WriteHistory(f)
}
