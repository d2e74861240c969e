package ipc

import (
	"encoding/json"
	"slices"
	"time"
)

// Commands accepted by the owner process.
const (
	CommandStatus     = "status"
	CommandStart      = "start"
	CommandStop       = "stop"
	CommandToggle     = "toggle"
	CommandReport     = "report"
	CommandExportJSON = "export-json"
	CommandExportText = "export-text"
	CommandCopy       = "copy"
)

var commands = []string{
	CommandStatus,
	CommandStart,
	CommandStop,
	CommandToggle,
	CommandReport,
	CommandExportJSON,
	CommandExportText,
	CommandCopy,
}

const (
	statusTimeout = 250 * time.Millisecond
	// commandTimeout covers device acquisition and clipboard writes in the owner.
	commandTimeout = 5 * time.Second
)

// Timeout is how long one roundtrip for command may take. Status is polled by
// scripts and status bars, so it fails fast when the owner is wedged.
func Timeout(command string) time.Duration {
	if command == CommandStatus {
		return statusTimeout
	}
	return commandTimeout
}

// Known reports whether command is part of the owner protocol.
func Known(command string) bool {
	return slices.Contains(commands, command)
}

type Request struct {
	Command string `json:"command"`
}

// Response is one newline-delimited JSON reply. Snapshot holds the owner's
// session snapshot at reply time; Path is set for export commands.
type Response struct {
	OK       bool            `json:"ok"`
	State    string          `json:"state,omitempty"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Path     string          `json:"path,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

// Failure builds a not-OK response carrying err's message.
func Failure(state string, err error) Response {
	return Response{OK: false, State: state, Error: err.Error()}
}
