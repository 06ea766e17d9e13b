package dispatch

import "fmt"

// Kind classifies why a request was rejected
type Kind string

const (
	KindUnknownCommand      Kind = "unknown_command"
	KindUnsafeCommand       Kind = "unsafe_command"
	KindMissingArgument     Kind = "missing_argument"
	KindInvalidArgumentType Kind = "invalid_argument_type"
)

// ValidationError is returned for requests that never reach nodetool
type ValidationError struct {
	Kind     Kind
	Command  string
	Argument string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindUnknownCommand:
		return fmt.Sprintf("unknown command '%s'", e.Command)
	case KindUnsafeCommand:
		return fmt.Sprintf("command '%s' is not marked safe", e.Command)
	case KindMissingArgument:
		return fmt.Sprintf("missing required argument '%s' for command '%s'", e.Argument, e.Command)
	case KindInvalidArgumentType:
		return fmt.Sprintf("argument '%s' for command '%s' must be a string", e.Argument, e.Command)
	default:
		return fmt.Sprintf("invalid request for command '%s'", e.Command)
	}
}
