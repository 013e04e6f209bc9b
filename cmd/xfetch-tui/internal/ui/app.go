// Package ui provides the terminal user interface for browsing an xfetch
// server: download history, post resolution, thumbnail jobs, and settings.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/client"
	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/config"
)

// Panel identifies a UI panel.
type Panel int

const (
	PanelHistory Panel = iota
	PanelResolve
	PanelJobs
	PanelSettings
	PanelHelp
)

// App is the main TUI application.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	cfg    *config.Config
	api    *client.Client
	ctx    context.Context
	cancel context.CancelFunc

	currentPanel Panel

	// UI components
	mainFlex     *tview.Flex
	header       *tview.TextView
	footer       *tview.TextView
	statusBar    *tview.TextView
	historyTable *tview.Table
	resolveView  *tview.Flex
	jobsTable    *tview.Table
	settingsForm *tview.Form
	helpView     *tview.TextView

	// State
	historyOffset int
	historyTotal  int
	records       []client.Record
	resolved      *client.ResolvedPost
}

// NewApp creates the TUI application.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("XFETCH_API_KEY is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		cfg:    cfg,
		api:    client.NewClient(cfg.ServerURL, cfg.APIKey),
		ctx:    ctx,
		cancel: cancel,
	}
	a.setupUI()
	return a, nil
}

func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)
	a.header.SetText(fmt.Sprintf("[white::b]xfetch[-::-] %s", a.cfg.ServerURL))

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]1[white]:History [yellow]2[white]:Resolve [yellow]3[white]:Jobs [yellow]4[white]:Settings [yellow]?[white]:Help [yellow]q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	a.statusBar = tview.NewTextView().SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	a.createHistoryPanel()
	a.createResolvePanel()
	a.createJobsPanel()
	a.createSettingsPanel()
	a.createHelpPanel()

	a.pages.AddPage("history", a.historyTable, true, true)
	a.pages.AddPage("resolve", a.resolveView, true, false)
	a.pages.AddPage("jobs", a.jobsTable, true, false)
	a.pages.AddPage("settings", a.settingsForm, true, false)
	a.pages.AddPage("help", a.helpView, true, false)

	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
}

func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	// Input widgets swallow plain runes; only intercept when a table or
	// text view has focus.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}
	if _, ok := a.app.GetFocus().(*tview.Form); ok {
		if event.Key() != tcell.KeyEscape {
			return event
		}
		a.switchPanel(PanelHistory)
		return nil
	}

	switch event.Rune() {
	case '1':
		a.switchPanel(PanelHistory)
		return nil
	case '2':
		a.switchPanel(PanelResolve)
		return nil
	case '3':
		a.switchPanel(PanelJobs)
		return nil
	case '4':
		a.switchPanel(PanelSettings)
		return nil
	case '?':
		a.switchPanel(PanelHelp)
		return nil
	case 'q':
		a.Stop()
		return nil
	}
	return event
}

func (a *App) switchPanel(panel Panel) {
	a.currentPanel = panel
	switch panel {
	case PanelHistory:
		a.pages.SwitchToPage("history")
		a.app.SetFocus(a.historyTable)
		a.refreshHistory()
	case PanelResolve:
		a.pages.SwitchToPage("resolve")
	case PanelJobs:
		a.pages.SwitchToPage("jobs")
		a.app.SetFocus(a.jobsTable)
		a.refreshJobs()
	case PanelSettings:
		a.pages.SwitchToPage("settings")
		a.app.SetFocus(a.settingsForm)
		a.loadSettings()
	case PanelHelp:
		a.pages.SwitchToPage("help")
	}
}

// setStatus updates the status bar from any goroutine.
func (a *App) setStatus(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetText(" " + text)
	})
}

// Run starts the TUI event loop and the background refreshers.
func (a *App) Run() error {
	go a.refreshLoop()
	a.refreshHistory()
	return a.app.SetRoot(a.mainFlex, true).Run()
}

// Stop shuts the application down.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

func (a *App) refreshLoop() {
	history := time.NewTicker(a.cfg.HistoryRefresh)
	jobs := time.NewTicker(a.cfg.JobsRefresh)
	defer history.Stop()
	defer jobs.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-history.C:
			if a.currentPanel == PanelHistory {
				a.refreshHistory()
			}
		case <-jobs.C:
			if a.currentPanel == PanelJobs {
				a.refreshJobs()
			}
		}
	}
}
