package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrProtocolViolation      = stderrors.New("engine protocol violation")
	ErrAnalysisParse          = stderrors.New("unparsable analysis line")
	ErrOutOfRange             = stderrors.New("coordinate out of range")
	ErrEngineIdentityMismatch = stderrors.New("unexpected engine identity")
	ErrEngineStopped          = stderrors.New("engine is not running")
	ErrInvalidBoardSize       = stderrors.New("invalid board size")
)

// CommandError is returned when the engine answered a command with the
// failure marker. Unlike the sentinels above it is recoverable: the session
// is still in sync and the next exchange can proceed.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("engine rejected %q: %s", e.Command, e.Message)
}

// AsCommandError reports whether err carries a CommandError anywhere in its chain.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if stderrors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
