package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/client"
)

func (a *App) createHistoryPanel() {
	a.historyTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.historyTable.SetBorder(true).
		SetTitle(" History - 'd':delete 'D':delete post 't':regen thumbnail 'n/p':page 'r':refresh ")

	a.historyTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorDarkCyan))

	headers := []string{"AUTHOR", "KIND", "IDX", "DOWNLOADED", "THUMB", "TEXT"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if i == len(headers)-1 {
			cell.SetExpansion(3)
		}
		a.historyTable.SetCell(0, i, cell)
	}

	a.historyTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		row, _ := a.historyTable.GetSelection()
		rec := a.selectedRecord(row)

		switch event.Rune() {
		case 'r':
			a.refreshHistory()
			return nil
		case 'n':
			if a.historyOffset+a.cfg.PageSize < a.historyTotal {
				a.historyOffset += a.cfg.PageSize
				a.refreshHistory()
			}
			return nil
		case 'p':
			if a.historyOffset > 0 {
				a.historyOffset -= a.cfg.PageSize
				if a.historyOffset < 0 {
					a.historyOffset = 0
				}
				a.refreshHistory()
			}
			return nil
		case 'd':
			if rec != nil {
				a.deleteRecord(rec.ID)
			}
			return nil
		case 'D':
			if rec != nil {
				a.deletePost(rec.PostID)
			}
			return nil
		case 't':
			if rec != nil {
				a.regenThumbnail(rec.ID)
			}
			return nil
		}
		return event
	})
}

func (a *App) selectedRecord(row int) *client.Record {
	idx := row - 1
	if idx < 0 || idx >= len(a.records) {
		return nil
	}
	return &a.records[idx]
}

func (a *App) refreshHistory() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		page, err := a.api.History(ctx, a.cfg.PageSize, a.historyOffset)
		if err != nil {
			a.setStatus("[red]history: %v", err)
			return
		}

		a.app.QueueUpdateDraw(func() {
			a.records = page.Records
			a.historyTotal = page.Total
			a.renderHistory()
		})
		a.setStatus("%d-%d of %d records",
			a.historyOffset+1, a.historyOffset+len(page.Records), page.Total)
	}()
}

func (a *App) renderHistory() {
	for a.historyTable.GetRowCount() > 1 {
		a.historyTable.RemoveRow(1)
	}
	for i, rec := range a.records {
		row := i + 1
		author := rec.AuthorHandle
		if author == "" {
			author = rec.AuthorName
		}
		thumb := "-"
		if rec.HasThumbnail {
			thumb = "yes"
		}
		index := fmt.Sprintf("%d/%d", rec.MediaIndex+1, rec.MediaCount)

		a.historyTable.SetCell(row, 0, tview.NewTableCell("@"+author).SetExpansion(1))
		a.historyTable.SetCell(row, 1, tview.NewTableCell(rec.MediaKind).SetExpansion(1))
		a.historyTable.SetCell(row, 2, tview.NewTableCell(index).SetExpansion(1))
		a.historyTable.SetCell(row, 3, tview.NewTableCell(rec.DownloadedAt.Local().Format("2006-01-02 15:04")).SetExpansion(1))
		a.historyTable.SetCell(row, 4, tview.NewTableCell(thumb).SetExpansion(1))
		a.historyTable.SetCell(row, 5, tview.NewTableCell(truncate(rec.Text, 60)).SetExpansion(3))
	}
}

func (a *App) deleteRecord(recordID string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		if err := a.api.DeleteRecord(ctx, recordID); err != nil {
			a.setStatus("[red]delete: %v", err)
			return
		}
		a.setStatus("record deleted")
		a.refreshHistory()
	}()
}

func (a *App) deletePost(postID string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		if err := a.api.DeletePost(ctx, postID); err != nil {
			a.setStatus("[red]delete post: %v", err)
			return
		}
		a.setStatus("post records deleted")
		a.refreshHistory()
	}()
}

func (a *App) regenThumbnail(recordID string) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		if err := a.api.RegenerateThumbnail(ctx, recordID); err != nil {
			a.setStatus("[red]thumbnail: %v", err)
			return
		}
		a.setStatus("thumbnail job queued")
	}()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
