package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/client"
)

func (a *App) createResolvePanel() {
	urlInput := tview.NewInputField().
		SetLabel("Post URL: ").
		SetFieldWidth(0)

	mediaTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	mediaTable.SetBorder(true).
		SetTitle(" Media - Enter:download selected 'a':download all ")
	mediaTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorDarkCyan))

	headers := []string{"IDX", "KIND", "DURATION", "BEST VARIANT", "URL"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if i == len(headers)-1 {
			cell.SetExpansion(3)
		}
		mediaTable.SetCell(0, i, cell)
	}

	urlInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		url := urlInput.GetText()
		if url == "" {
			return
		}
		a.resolvePost(url, mediaTable)
		a.app.SetFocus(mediaTable)
	})

	mediaTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if a.resolved == nil {
			return event
		}
		switch {
		case event.Key() == tcell.KeyEnter:
			row, _ := mediaTable.GetSelection()
			if idx := row - 1; idx >= 0 && idx < len(a.resolved.Media) {
				a.downloadMedia(a.resolved.URL, []client.Selection{{Index: idx}})
			}
			return nil
		case event.Rune() == 'a':
			a.downloadMedia(a.resolved.URL, nil)
			return nil
		case event.Key() == tcell.KeyEscape:
			a.app.SetFocus(urlInput)
			return nil
		}
		return event
	})

	a.resolveView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(urlInput, 1, 0, true).
		AddItem(mediaTable, 0, 1, false)
}

func (a *App) resolvePost(url string, mediaTable *tview.Table) {
	a.setStatus("resolving %s ...", url)
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
		defer cancel()

		post, err := a.api.Resolve(ctx, url)
		if err != nil {
			a.setStatus("[red]resolve: %v", err)
			return
		}

		a.app.QueueUpdateDraw(func() {
			a.resolved = post
			for mediaTable.GetRowCount() > 1 {
				mediaTable.RemoveRow(1)
			}
			for i, m := range post.Media {
				row := i + 1
				duration := "-"
				if m.Duration > 0 {
					duration = fmt.Sprintf("%.0fs", m.Duration)
				}
				best := "-"
				if len(m.Variants) > 0 {
					best = m.Variants[0].Quality
				}
				mediaTable.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%d", i)).SetExpansion(1))
				mediaTable.SetCell(row, 1, tview.NewTableCell(m.Kind).SetExpansion(1))
				mediaTable.SetCell(row, 2, tview.NewTableCell(duration).SetExpansion(1))
				mediaTable.SetCell(row, 3, tview.NewTableCell(best).SetExpansion(1))
				mediaTable.SetCell(row, 4, tview.NewTableCell(truncate(m.URL, 50)).SetExpansion(3))
			}
		})
		a.setStatus("@%s: %d media candidates", post.AuthorHandle, len(post.Media))
	}()
}

func (a *App) downloadMedia(postURL string, selections []client.Selection) {
	a.setStatus("downloading ...")
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Minute)
		defer cancel()

		result, err := a.api.Download(ctx, postURL, selections)
		if err != nil {
			a.setStatus("[red]download: %v", err)
			return
		}

		var ok, failed int
		for _, item := range result.Items {
			if item.Error == "" {
				ok++
			} else {
				failed++
			}
		}
		if failed > 0 {
			a.setStatus("[yellow]downloaded %d, failed %d", ok, failed)
		} else {
			a.setStatus("downloaded %d media", ok)
		}
	}()
}
