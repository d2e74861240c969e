package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rbright/scribe/internal/export"
	"github.com/rbright/scribe/internal/fsm"
	"github.com/rbright/scribe/internal/ipc"
	"github.com/rbright/scribe/internal/session"
)

// Owner executes session commands for IPC clients and the TUI. It holds the
// process's single controller.
type Owner struct {
	controller *session.Controller
	exports    *export.Manager
	logger     *slog.Logger
}

func newOwner(controller *session.Controller, exports *export.Manager, logger *slog.Logger) *Owner {
	return &Owner{controller: controller, exports: exports, logger: logger}
}

// Handle implements ipc.Handler. Every reply carries the post-command snapshot.
func (o *Owner) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	var (
		resp ipc.Response
		err  error
	)

	switch req.Command {
	case ipc.CommandStatus:
	case ipc.CommandStart:
		err = o.controller.Start(ctx)
	case ipc.CommandStop:
		err = o.controller.Stop(ctx)
	case ipc.CommandToggle:
		err = o.controller.Toggle(ctx)
	case ipc.CommandReport:
		err = o.controller.GenerateReport(ctx)
	case ipc.CommandExportJSON:
		resp.Path, err = o.exports.ExportJSON()
	case ipc.CommandExportText:
		resp.Path, err = o.exports.ExportText()
	case ipc.CommandCopy:
		if err = o.exports.CopyNarrative(ctx); err == nil {
			resp.Message = "discharge summary copied to clipboard"
		}
	default:
		err = fmt.Errorf("unknown command %q", req.Command)
	}

	snap := o.controller.Snapshot()
	if err != nil {
		o.logWarn("command failed", "command", req.Command, "state", snap.State, "error", err.Error())
		resp = ipc.Failure(string(snap.State), err)
	} else {
		resp.OK = true
		if resp.Message == "" && resp.Path == "" {
			resp.Message = stateMessage(snap.State)
		}
		o.logInfo("command handled", "command", req.Command, "state", snap.State)
	}
	resp.State = string(snap.State)

	raw, marshalErr := json.Marshal(snap)
	if marshalErr == nil {
		resp.Snapshot = raw
	}
	return resp
}

func stateMessage(state fsm.State) string {
	switch state {
	case fsm.StateRecording:
		return "recording"
	case fsm.StateProcessing:
		return "transcribing"
	case fsm.StateReporting:
		return "generating report"
	default:
		return string(state)
	}
}

func (o *Owner) logInfo(msg string, args ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Info(msg, args...)
}

func (o *Owner) logWarn(msg string, args ...any) {
	if o.logger == nil {
		return
	}
	o.logger.Warn(msg, args...)
}
