package bot

import (
	"strings"
)

// Command prefixes understood by the bot.
const (
	reminderCommand = "!reminder"
	listCommand     = "!list"
	cancelCommand   = "!cancel"
	clearCommand    = "!clear"
)

type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdCreate
	CmdList
	CmdCancel
	CmdClear
)

// Command is a classified inbound message.
type Command struct {
	Kind CommandKind

	// CmdCreate: the time query before the separator and the reminder
	// body after it, both trimmed.
	Query string
	Body  string

	// CmdCancel: the reminder id argument.
	TargetID string
}

// MalformedError reports a recognized command with bad syntax. It
// carries the command-specific help text, as opposed to CmdUnknown
// which gets the full usage message.
type MalformedError struct {
	Help string
}

func (e *MalformedError) Error() string { return "malformed command" }

// ParseCommand classifies raw message text. It is pure: no side
// effects, no external calls.
func ParseCommand(text string) (Command, error) {
	switch {
	case strings.HasPrefix(text, reminderCommand):
		rest := text[len(reminderCommand):]
		sep := strings.Index(rest, ";")
		if sep < 0 {
			return Command{}, &MalformedError{Help: msgReminderHelp}
		}
		query := strings.TrimSpace(rest[:sep])
		body := strings.TrimSpace(rest[sep+1:])
		if query == "" || body == "" {
			return Command{}, &MalformedError{Help: msgReminderHelp}
		}
		return Command{Kind: CmdCreate, Query: query, Body: body}, nil

	case strings.HasPrefix(text, listCommand):
		return Command{Kind: CmdList}, nil

	case strings.HasPrefix(text, cancelCommand):
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return Command{}, &MalformedError{Help: msgCancelHelp}
		}
		return Command{Kind: CmdCancel, TargetID: fields[1]}, nil

	case strings.HasPrefix(text, clearCommand):
		return Command{Kind: CmdClear}, nil

	default:
		return Command{Kind: CmdUnknown}, nil
	}
}
