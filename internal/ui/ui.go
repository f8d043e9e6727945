package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	InputView ViewState = iota
	LoadingView
	PreviewView
	SyncView
	ResultView
)

const (
	urlInput = iota
	destInput
)

// number of retry/skip lines kept on the sync view
const eventLines = 5

// syncRun is an engine run in flight. result and err are set before done is closed.
type syncRun struct {
	progress chan tasks.ProgressUpdate
	done     chan struct{}
	result   *tasks.RunResult
	err      error
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	view    ViewState
	source  services.PlaylistSource
	engine  *tasks.Engine
	action  tasks.Action
	opts    tasks.Options
	width   int
	height  int
	inputs  []textinput.Model
	focus   int
	preview *Preview
	items   list.Model
	spinner spinner.Model

	run      *syncRun
	canceled bool
	progress tasks.ProgressUpdate
	events   []string

	result *tasks.RunResult
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model. URL and destination in opts pre-fill the inputs.
func NewModel(ctx context.Context, source services.PlaylistSource, engine *tasks.Engine, action tasks.Action, opts tasks.Options) *Model {
	url := textinput.New()
	url.Placeholder = "https://www.youtube.com/playlist?list=..."
	url.Prompt = "Playlist URL: "
	url.SetValue(opts.PlaylistURL)
	url.Focus()

	dest := textinput.New()
	dest.Placeholder = "."
	dest.Prompt = "Destination:  "
	dest.SetValue(opts.DestinationDir)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title.UnsetMarginBottom()

	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     ctx,
		cancel:  cancel,
		view:    InputView,
		source:  source,
		engine:  engine,
		action:  action,
		opts:    opts,
		inputs:  []textinput.Model{url, dest},
		spinner: sp,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the cursor blinking in the URL input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Result returns the outcome of the last sync, or nils when none finished.
// A model canceled before any sync finished reports [context.Canceled].
func (m *Model) Result() (*tasks.RunResult, error) {
	switch {
	case m.view == ResultView:
		return m.result, m.err
	case m.canceled:
		return nil, context.Canceled
	}
	return nil, nil
}

// Wait blocks until a sync still in flight returns and records its outcome.
//
// Call it only after the program has stopped, e.g. when it was killed through its context.
func (m *Model) Wait() {
	if m.run == nil {
		return
	}
	<-m.run.done
	m.finishSync(m.run.result, m.run.err)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.preview != nil {
			m.items.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case LoadingView:
			if key.Matches(msg, m.keys.abort) {
				m.canceled = true
				m.cancel()
				return m, tea.Quit
			}
			return m, nil
		case SyncView:
			// the engine keeps running until it has persisted what succeeded
			if key.Matches(msg, m.keys.abort) && !m.canceled {
				m.canceled = true
				m.cancel()
			}
			return m, nil
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != LoadingView && m.view != SyncView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPreviewLoaded:
		data := msg.data.(previewResult)
		if data.err != nil {
			m.err = data.err
			m.view = InputView
			return m, nil
		}
		m.setPreview(data.preview)
		m.view = PreviewView
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.Phase == tasks.RetryItem || update.Phase == tasks.SkipItem {
			m.events = append(m.events, update.Message)
			if len(m.events) > eventLines {
				m.events = m.events[len(m.events)-eventLines:]
			}
		}
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncResult)
		m.finishSync(data.result, data.err)
		if m.canceled {
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) finishSync(result *tasks.RunResult, err error) {
	m.result = result
	m.err = err
	m.view = ResultView
	m.run = nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case InputView:
		return m.renderInput()
	case LoadingView:
		return fmt.Sprintf("%s Fetching playlist...", m.spinner.View())
	case PreviewView:
		return m.renderPreview()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		return m, m.setFocus(1 - m.focus)
	case "enter":
		if m.focus == urlInput {
			return m, m.setFocus(destInput)
		}
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.items.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.items, cmd = m.items.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "n":
		m.view = InputView
		return m, m.setFocus(urlInput)
	case "enter", "y":
		m.view = SyncView
		return m, m.startSync()
	}

	var cmd tea.Cmd
	m.items, cmd = m.items.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	case "r":
		m.view = InputView
		m.preview = nil
		m.progress = tasks.ProgressUpdate{}
		m.events = nil
		m.err = nil
		m.result = nil
		return m, m.setFocus(urlInput)
	}
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case InputView:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	case PreviewView:
		m.items, cmd = m.items.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			continue
		}
		m.inputs[j].Blur()
	}
	return m.inputs[i].Focus()
}

// submit validates the inputs and starts loading the preview.
func (m *Model) submit() tea.Cmd {
	opts := m.opts
	opts.PlaylistURL = strings.TrimSpace(m.inputs[urlInput].Value())
	opts.DestinationDir = strings.TrimSpace(m.inputs[destInput].Value())
	if opts.DestinationDir == "" {
		opts.DestinationDir = "."
	}
	if err := opts.Validate(); err != nil {
		m.err = err
		return nil
	}

	m.opts = opts
	m.err = nil
	m.view = LoadingView
	return tea.Batch(m.spinner.Tick, m.loadPreview())
}

func (m *Model) setPreview(p *Preview) {
	m.preview = p
	items := make([]list.Item, len(p.Items))
	for i, it := range p.Items {
		items[i] = playlistItem{item: it}
	}
	m.items = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.items.Title = fmt.Sprintf("New in '%s'", shared.SanitizeDisplayName(p.Playlist.Title))
	m.items.SetSize(max(m.width-4, 20), max(m.height-10, 10))
}

func (m *Model) loadPreview() tea.Cmd {
	ctx, source, opts := m.ctx, m.source, m.opts
	return func() tea.Msg {
		p, err := LoadPreview(ctx, source, opts)
		return previewLoadedMsg(p, err)
	}
}

func (m *Model) startSync() tea.Cmd {
	run := &syncRun{
		progress: make(chan tasks.ProgressUpdate, 50),
		done:     make(chan struct{}),
	}
	m.run = run

	ctx, engine, opts, action := m.ctx, m.engine, m.opts, m.action
	go func() {
		defer close(run.done)
		defer close(run.progress)
		if engine == nil {
			run.err = shared.ErrServiceUnavailable
			return
		}
		run.result, run.err = engine.Run(ctx, run.progress, opts, action)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	run := m.run
	return func() tea.Msg {
		if run == nil {
			return syncCompleteMsg(nil, shared.ErrServiceUnavailable)
		}
		if update, ok := <-run.progress; ok {
			return progressUpdateMsg(update)
		}
		<-run.done
		return syncCompleteMsg(run.result, run.err)
	}
}

func (m *Model) renderInput() string {
	title := styles.title.Render("Sync a playlist")

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}

	quit := key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "quit"))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.next, m.keys.enter, quit})
	return fmt.Sprintf("%s\n%s", b.String(), helpView)
}

func (m *Model) renderPreview() string {
	p := m.preview
	info := fmt.Sprintf("Ledger: %s (%d known)", p.LedgerPath, p.Known)
	if len(p.Items) == 0 {
		info += "\n" + styles.ok.Render("Nothing to do: playlist is up to date")
	}

	syncKey := key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("enter/y", m.action.Name()))
	helpView := m.help.ShortHelpView([]key.Binding{syncKey, m.keys.back, m.keys.quit})

	if len(p.Items) == 0 {
		return fmt.Sprintf("%s\n%s\n\n%s", styles.title.Render(shared.SanitizeDisplayName(p.Playlist.Title)), info, helpView)
	}
	return fmt.Sprintf("%s\n%s\n\n%s", m.items.View(), styles.help.Render(info), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render(fmt.Sprintf("Syncing (%s)", m.action.Name()))

	var phase string
	switch m.progress.Phase {
	case tasks.FetchPlaylist:
		phase = "Fetching playlist..."
	case tasks.LoadLedger, tasks.ComputeBatch:
		phase = "Reading ledger..."
	case tasks.ProcessItem, tasks.RetryItem, tasks.SkipItem:
		phase = fmt.Sprintf("Processing items (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.PersistLedger:
		phase = "Writing ledger..."
	default:
		phase = "Working..."
	}

	var events string
	for _, e := range m.events {
		events += "\n" + styles.warn.Render(e)
	}

	if m.canceled {
		phase = "Canceling, waiting for the current item..."
	}

	return fmt.Sprintf("%s\n%s %s\n%s%s", title, m.spinner.View(), phase, m.progress.Message, events)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", RenderSummary(m.result, m.err), helpView)
}
