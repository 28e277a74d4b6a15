package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/engine"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/keys"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	appsync "github.com/akashrathod3565/Vendor-Automation-Application/internal/sync"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/ui"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/ui/command"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/ui/compose"
	helpview "github.com/akashrathod3565/Vendor-Automation-Application/internal/ui/help"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/ui/logview"
)

// historyLimit is how many audit entries the history command shows.
const historyLimit = 20

// LogLineMsg carries one status line from the engine into the console.
type LogLineMsg struct {
	At   time.Time
	Text string
}

// FetchTriggerMsg asks the console to start a fetch run. The scheduler
// posts it into the program so the run picks up the manual address
// currently entered in the console.
type FetchTriggerMsg struct {
	Reason string
}

// runFinishedMsg is sent when an async run reports back.
type runFinishedMsg struct {
	report *engine.Report
}

type registryReloadedMsg struct {
	reg *model.Registry
	err error
}

type folderOpenedMsg struct {
	path string
	err  error
}

type historyLoadedMsg struct {
	entries []model.AuditEntry
	err     error
}

type tickMsg time.Time

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLog ViewState = iota
	ViewManual
	ViewHelp
	ViewCommand
	ViewCompose
)

// Model is the root Bubble Tea model for the vendor console.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	deps         Deps

	logView     logview.Model
	helpView    helpview.Model
	commandView command.Model
	composeView compose.Model
	manual      textinput.Model

	fetching int
	sending  int
	ready    bool
}

// New creates the root console model.
func New(deps Deps) Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	km := keys.DefaultKeyMap()

	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "all registry vendors"
	ti.CharLimit = 254

	help := helpview.New(km, 80, 24)
	if deps.Scheduler != nil {
		var times []string
		for _, t := range deps.Scheduler.Times() {
			times = append(times, t.String())
		}
		help.SetSchedule(times)
	}

	return Model{
		currentView: ViewLog,
		keys:        km,
		deps:        deps,
		logView:     logview.New(80, 20),
		helpView:    help,
		commandView: command.New(80, 24),
		composeView: compose.New(80, 24),
		manual:      ti,
	}
}

// Init reports the loaded registry and starts the header clock.
func (m Model) Init() tea.Cmd {
	reg := m.registry()
	line := fmt.Sprintf("Ready. %d vendors from %d suppliers loaded.", reg.Len(), len(reg.Suppliers))
	if reg.Len() == 0 {
		line = "Ready. No vendors loaded; use a manual email or reload the registry."
	}
	return tea.Batch(m.logLine(line), tick())
}

// ManualEmail returns the manual address currently entered.
func (m Model) ManualEmail() string {
	return strings.TrimSpace(m.manual.Value())
}

// Lines returns the status lines shown in the log.
func (m Model) Lines() []string {
	return m.logView.Lines()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.logView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.manual.Width = contentWidth - 16
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case LogLineMsg:
		m.logView.Append(msg.At, msg.Text)
		return m, nil

	case tickMsg:
		return m, tick()

	case FetchTriggerMsg:
		cmd := m.startFetch(msg.Reason)
		return m, cmd

	case runFinishedMsg:
		cmd := m.finishRun(msg.report)
		return m, cmd

	case registryReloadedMsg:
		if msg.err != nil {
			return m, m.logLine(fmt.Sprintf("Error: reloading vendor registry: %v", msg.err))
		}
		return m, nil

	case folderOpenedMsg:
		if msg.err != nil {
			return m, m.logLine(fmt.Sprintf("Error: %v", msg.err))
		}
		return m, m.logLine("Opened " + msg.path)

	case historyLoadedMsg:
		m.showHistory(msg)
		return m, nil

	case compose.SubmittedMsg:
		m.currentView = ViewLog
		if msg.Values.ManualEmail != m.ManualEmail() {
			m.manual.SetValue(msg.Values.ManualEmail)
		}
		cmd := m.startDispatch(msg.Values)
		return m, cmd

	case compose.CancelMsg:
		m.currentView = ViewLog
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case command.ErrorMsg:
		m.currentView = m.previousView
		return m, m.logLine(fmt.Sprintf("Error: %v", msg.Err))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}

		switch m.currentView {
		case ViewManual:
			switch msg.String() {
			case "enter", "esc":
				m.manual.Blur()
				m.currentView = ViewLog
				return m, nil
			}
			var cmd tea.Cmd
			m.manual, cmd = m.manual.Update(msg)
			return m, cmd

		case ViewCompose:
			return m.updateActiveView(msg)

		case ViewHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			return m, nil

		case ViewCommand:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			return m.updateActiveView(msg)
		}

		// Log view keys.
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, m.quit()

		case key.Matches(msg, m.keys.Help):
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Command):
			m.previousView = m.currentView
			m.currentView = ViewCommand
			cmd := m.commandView.Focus()
			return m, cmd

		case key.Matches(msg, m.keys.Manual):
			m.currentView = ViewManual
			cmd := m.manual.Focus()
			return m, cmd

		case key.Matches(msg, m.keys.Fetch):
			return m, m.fetchNow()

		case key.Matches(msg, m.keys.Send):
			cmd := m.openCompose()
			return m, cmd

		case key.Matches(msg, m.keys.Open):
			return m, m.openFolder(m.ManualEmail())

		case key.Matches(msg, m.keys.Reload):
			return m, m.reloadRegistry()
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLog:
		m.logView, cmd = m.logView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Vendor Automation", m.statusSegments()...)
	manual := m.layout.RenderContext("Manual email: ", m.manual.View())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, manual, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewCompose:
		return m.composeView.View()
	default:
		return m.logView.View()
	}
}


// status returns the right-hand side of the header: registry snapshot,
// in-flight runs and the next scheduled fetch.
func (m Model) status() string {
	return strings.Join(m.statusSegments(), ui.StatusSeparator)
}

// statusSegments lists header status items, most important first.
func (m Model) statusSegments() []string {
	reg := m.registry()
	parts := []string{fmt.Sprintf("registry v%d · %d vendors", reg.Version, reg.Len())}

	if m.fetching > 0 {
		parts = append(parts, fmt.Sprintf("fetching (%d)", m.fetching))
	}
	if m.sending > 0 {
		parts = append(parts, fmt.Sprintf("sending (%d)", m.sending))
	}

	next := time.Time{}
	if m.deps.Scheduler != nil {
		next = m.deps.Scheduler.NextRun()
	}
	if next.IsZero() {
		parts = append(parts, "schedule off")
	} else {
		parts = append(parts, "next fetch "+formatNext(next, m.deps.Now()))
	}
	return parts
}

func formatNext(next, now time.Time) string {
	y1, m1, d1 := next.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return next.Format("15:04")
	}
	return next.Format("Mon 15:04")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewCompose:
		return "enter next | esc cancel"
	case ViewManual:
		return "type an address, empty for all vendors | enter done"
	default:
		return "f fetch | s send | o open folder | r reload | m manual | : command | ? help | q quit"
	}
}

func (m Model) registry() *model.Registry {
	if m.deps.Registry == nil {
		return &model.Registry{}
	}
	if reg := m.deps.Registry(); reg != nil {
		return reg
	}
	return &model.Registry{}
}

func (m Model) logLine(text string) tea.Cmd {
	at := m.deps.Now()
	return func() tea.Msg { return LogLineMsg{At: at, Text: text} }
}

func tick() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// fetchNow goes through the scheduler so on-demand and scheduled runs
// share one trigger path. Without a scheduler the run starts directly.
func (m Model) fetchNow() tea.Cmd {
	if m.deps.Scheduler == nil {
		return func() tea.Msg { return FetchTriggerMsg{Reason: appsync.ReasonManual} }
	}
	m.deps.Scheduler.FetchNow()
	return nil
}

func (m *Model) startFetch(reason string) tea.Cmd {
	if m.deps.Runner == nil {
		return nil
	}
	req := engine.FetchRequest{ManualEmail: m.ManualEmail(), Trigger: reason}
	m.fetching++

	label := "Fetch started"
	if reason == appsync.ReasonSchedule {
		label = "Scheduled fetch started"
	}
	if req.ManualEmail != "" {
		label += " for " + req.ManualEmail
	}

	runner := m.deps.Runner
	run := func() tea.Msg {
		done := make(chan *engine.Report, 1)
		runner.FetchAsync(context.Background(), req, func(r *engine.Report) { done <- r })
		return runFinishedMsg{report: <-done}
	}
	return tea.Batch(m.logLine(label+"..."), run)
}

func (m *Model) openCompose() tea.Cmd {
	d := m.deps.Defaults
	m.currentView = ViewCompose
	return m.composeView.Start(compose.Values{
		ManualEmail: m.ManualEmail(),
		CC:          d.ManualCC,
		Subject:     d.Subject,
		Body:        d.BodyTemplate,
		Attachment:  d.AttachmentPath,
		AutoSend:    d.AutoSend,
	})
}

func (m *Model) startDispatch(v compose.Values) tea.Cmd {
	if m.deps.Runner == nil {
		return nil
	}
	req := engine.DispatchRequest{
		ManualEmail:    v.ManualEmail,
		Subject:        v.Subject,
		BodyTemplate:   v.Body,
		AttachmentPath: v.Attachment,
		ManualCC:       v.CC,
		AutoSend:       v.AutoSend,
		Trigger:        appsync.ReasonManual,
	}
	m.sending++

	label := "Send started for all registry vendors..."
	if req.ManualEmail != "" {
		label = "Send started for " + req.ManualEmail + "..."
	}

	runner := m.deps.Runner
	run := func() tea.Msg {
		done := make(chan *engine.Report, 1)
		runner.DispatchAsync(context.Background(), req, func(r *engine.Report) { done <- r })
		return runFinishedMsg{report: <-done}
	}
	return tea.Batch(m.logLine(label), run)
}

func (m *Model) finishRun(rep *engine.Report) tea.Cmd {
	if rep == nil {
		return nil
	}
	switch rep.Kind {
	case model.RunKindFetch:
		if m.fetching > 0 {
			m.fetching--
		}
	case model.RunKindDispatch:
		if m.sending > 0 {
			m.sending--
		}
	}
	return m.logLine(Summary(rep))
}

// Summary renders a one-line run summary.
func Summary(rep *engine.Report) string {
	succeeded, skipped, failed := rep.Counts()
	noun := "Fetch"
	if rep.Kind == model.RunKindDispatch {
		noun = "Send"
	}
	if rep.Err != nil {
		return fmt.Sprintf("Error: %s run failed: %v", strings.ToLower(noun), rep.Err)
	}
	return fmt.Sprintf("%s run finished: %d ok, %d skipped, %d failed in %s",
		noun, succeeded, skipped, failed, rep.Duration().Round(time.Millisecond))
}

func (m Model) reloadRegistry() tea.Cmd {
	reload := m.deps.ReloadRegistry
	if reload == nil {
		return nil
	}
	return func() tea.Msg {
		reg, err := reload()
		return registryReloadedMsg{reg: reg, err: err}
	}
}

func (m Model) openFolder(email string) tea.Cmd {
	open := m.deps.OpenFolder
	if open == nil {
		return nil
	}
	return func() tea.Msg {
		path, err := open(email)
		return folderOpenedMsg{path: path, err: err}
	}
}

func (m Model) loadHistory() tea.Cmd {
	history := m.deps.History
	if history == nil {
		return m.logLine("Error: run history is disabled")
	}
	return func() tea.Msg {
		entries, err := history(context.Background(), historyLimit)
		return historyLoadedMsg{entries: entries, err: err}
	}
}

func (m *Model) showHistory(msg historyLoadedMsg) {
	now := m.deps.Now()
	switch {
	case msg.err != nil:
		m.logView.Append(now, fmt.Sprintf("Error: loading history: %v", msg.err))
		return
	case len(msg.entries) == 0:
		m.logView.Append(now, "History is empty.")
		return
	}

	m.logView.Append(now, fmt.Sprintf("Last %d activity entries:", len(msg.entries)))
	// Oldest first so the newest ends up at the bottom of the log.
	for i := len(msg.entries) - 1; i >= 0; i-- {
		e := msg.entries[i]
		m.logView.Append(now, fmt.Sprintf("  %s %-16s %-12s %s %s",
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			e.Action, e.Supplier, strings.Join(e.VendorEmails, ";"), e.Details))
	}
}

func (m Model) quit() tea.Cmd {
	if m.deps.Scheduler != nil {
		m.deps.Scheduler.Stop()
	}
	return tea.Quit
}

// executeCommand handles a parsed command from the command palette.
func (m Model) executeCommand(cmd command.CommandMsg) (tea.Model, tea.Cmd) {
	switch cmd.Name {
	case command.Fetch:
		return m, m.fetchNow()
	case command.Send:
		cmd := m.openCompose()
		return m, cmd
	case command.Open:
		email := cmd.Arg
		if email == "" {
			email = m.ManualEmail()
		}
		return m, m.openFolder(email)
	case command.Manual:
		m.manual.SetValue(cmd.Arg)
		if cmd.Arg == "" {
			return m, m.logLine("Manual email cleared.")
		}
		return m, m.logLine("Manual email set to " + cmd.Arg)
	case command.Reload:
		return m, m.reloadRegistry()
	case command.History:
		return m, m.loadHistory()
	case command.Quit:
		return m, m.quit()
	default:
		return m, nil
	}
}
