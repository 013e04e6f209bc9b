package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func (a *App) createJobsPanel() {
	a.jobsTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(false, false).
		SetFixed(1, 0)
	a.jobsTable.SetBorder(true).SetTitle(" Thumbnail Jobs ")

	headers := []string{"RECORD", "STATE", "PROGRESS", "UPDATED", "ERROR"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if i == len(headers)-1 {
			cell.SetExpansion(2)
		}
		a.jobsTable.SetCell(0, i, cell)
	}
}

func (a *App) refreshJobs() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		jobs, err := a.api.Jobs(ctx)
		if err != nil {
			a.setStatus("[red]jobs: %v", err)
			return
		}

		a.app.QueueUpdateDraw(func() {
			for a.jobsTable.GetRowCount() > 1 {
				a.jobsTable.RemoveRow(1)
			}
			for i, job := range jobs {
				row := i + 1
				color := tcell.ColorWhite
				switch job.State {
				case "complete":
					color = tcell.ColorGreen
				case "failed":
					color = tcell.ColorRed
				}
				a.jobsTable.SetCell(row, 0, tview.NewTableCell(truncate(job.RecordID, 12)).SetTextColor(color).SetExpansion(1))
				a.jobsTable.SetCell(row, 1, tview.NewTableCell(job.State).SetTextColor(color).SetExpansion(1))
				a.jobsTable.SetCell(row, 2, tview.NewTableCell(progressBar(job.Percent)).SetExpansion(1))
				a.jobsTable.SetCell(row, 3, tview.NewTableCell(job.At.Local().Format("15:04:05")).SetExpansion(1))
				a.jobsTable.SetCell(row, 4, tview.NewTableCell(truncate(job.Error, 40)).SetTextColor(tcell.ColorRed).SetExpansion(2))
			}
		})
		a.setStatus("%d thumbnail jobs", len(jobs))
	}()
}

func progressBar(percent int) string {
	const width = 20
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return fmt.Sprintf("%s %3d%%", bar, percent)
}
