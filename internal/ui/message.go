package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPreviewLoaded MsgKind = iota
	MsgProgressUpdate
	MsgSyncComplete
)

type previewResult struct {
	preview *Preview
	err     error
}

type syncResult struct {
	result *tasks.RunResult
	err    error
}

// previewLoadedMsg is the constructor for [MsgPreviewLoaded]
func previewLoadedMsg(p *Preview, err error) Msg {
	return Msg{kind: MsgPreviewLoaded, data: previewResult{p, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// syncCompleteMsg is the constructor for [MsgSyncComplete]
func syncCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgSyncComplete, data: syncResult{result, err}}
}
