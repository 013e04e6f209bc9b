package ui

import (
	"github.com/rivo/tview"
)

func (a *App) createHelpPanel() {
	a.helpView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.helpView.SetBorder(true).SetTitle(" Help ")
	a.helpView.SetText(`
[yellow]Global keys[white]
  1        History panel
  2        Resolve panel
  3        Thumbnail jobs panel
  4        Settings panel
  ?        This help
  q        Quit

[yellow]History panel[white]
  d        Delete selected record
  D        Delete every record of the selected post
  t        Re-queue animated thumbnail for the selected record
  n / p    Next / previous page
  r        Refresh now

[yellow]Resolve panel[white]
  Enter    (in URL field) resolve the post
  Enter    (in media table) download the selected item
  a        Download all media of the resolved post
  Esc      Back to the URL field

[yellow]Configuration[white]
  XFETCH_SERVER_URL       server base URL (default http://127.0.0.1:9310)
  XFETCH_API_KEY          API key (required)
  XFETCH_HISTORY_REFRESH  history refresh interval (default 5s)
  XFETCH_JOBS_REFRESH     jobs refresh interval (default 2s)
`)
}
