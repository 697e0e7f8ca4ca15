package ui

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/ansi"
)

// ErrNoSelection is returned when input ends before a valid choice is made.
var ErrNoSelection = errors.New("no selection made")

// Option is one entry of a selection list.
type Option struct {
	Value       string
	Label       string
	Description string
}

// Select asks the user to pick one option and returns its Value.
// Terminals get an arrow-key list; otherwise a numbered table is printed
// and the prompt repeats until a valid index is entered.
func (c *Console) Select(title string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", ErrNoSelection
	}
	if c.tty {
		return c.selectInteractive(title, options)
	}
	return c.PromptSelect(title, options)
}

func (c *Console) selectInteractive(title string, options []Option) (string, error) {
	var selected string
	width := c.Width() - 6

	huhOptions := make([]huh.Option[string], 0, len(options))
	for i, opt := range options {
		label := fmt.Sprintf("%d. %s", i+1, opt.Label)
		// the description is styled, so truncation has to skip escape codes
		if opt.Description != "" {
			label += c.styles.Muted.Render("  " + opt.Description)
		}
		huhOptions = append(huhOptions, huh.NewOption(ansi.Truncate(label, width, "..."), opt.Value))
	}

	c.clearScreen()
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(huhOptions...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrNoSelection
		}
		return "", err
	}
	return selected, nil
}

// PromptSelect prints options as a numbered table and reads an index.
func (c *Console) PromptSelect(title string, options []Option) (string, error) {
	columns := []string{"Index", "Name"}
	hasDesc := false
	for _, opt := range options {
		if opt.Description != "" {
			hasDesc = true
			break
		}
	}
	if hasDesc {
		columns = append(columns, "Description")
	}

	rows := make([][]string, 0, len(options))
	choices := make([]string, 0, len(options))
	for i, opt := range options {
		idx := strconv.Itoa(i + 1)
		row := []string{idx, opt.Label}
		if hasDesc {
			row = append(row, opt.Description)
		}
		rows = append(rows, row)
		choices = append(choices, idx)
	}

	c.clearScreen()
	c.println(c.renderTable(title, columns, rows, true))

	prompt := fmt.Sprintf("Choose an option [%s]: ", strings.Join(choices, "/"))
	for {
		line, err := c.readLine(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrNoSelection
			}
			return "", err
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(options) {
			c.Error("Invalid selection. Please try again.")
			continue
		}
		return options[n-1].Value, nil
	}
}
