package agent

import "errors"

// ErrQuit is returned by the quit commands to end the input loop.
var ErrQuit = errors.New("quit")

// CommandError reports malformed command usage or an unknown command.
type CommandError struct {
	Msg string
}

func (e *CommandError) Error() string { return e.Msg }
