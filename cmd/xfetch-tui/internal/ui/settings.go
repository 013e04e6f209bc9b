package ui

import (
	"context"
	"time"

	"github.com/rivo/tview"

	"github.com/iconidentify/xfetch/cmd/xfetch-tui/internal/client"
)

func (a *App) createSettingsPanel() {
	a.settingsForm = tview.NewForm()
	a.settingsForm.SetBorder(true).SetTitle(" Settings - Esc to return ")
}

func (a *App) loadSettings() {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		s, err := a.api.GetSettings(ctx)
		if err != nil {
			a.setStatus("[red]settings: %v", err)
			return
		}

		a.app.QueueUpdateDraw(func() {
			a.renderSettings(s)
		})
	}()
}

func (a *App) renderSettings(s *client.Settings) {
	a.settingsForm.Clear(true)

	state := *s
	a.settingsForm.
		AddCheckbox("Animated thumbnails", state.AnimatedThumbnails, func(checked bool) {
			state.AnimatedThumbnails = checked
		}).
		AddCheckbox("Delete files with history", state.DeleteFilesWithHistory, func(checked bool) {
			state.DeleteFilesWithHistory = checked
		}).
		AddInputField("Username", state.Username, 40, nil, func(text string) {
			state.Username = text
		}).
		AddPasswordField("Password", "", 40, '*', func(text string) {
			state.Password = text
		}).
		AddButton("Save", func() {
			a.saveSettings(&state)
		}).
		AddButton("Cancel", func() {
			a.switchPanel(PanelHistory)
		})

	status := "logged out"
	if state.LoggedIn {
		status = "logged in"
	}
	a.settingsForm.SetTitle(" Settings (" + status + ") - Esc to return ")
}

func (a *App) saveSettings(s *client.Settings) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()

		stored, err := a.api.PutSettings(ctx, s)
		if err != nil {
			a.setStatus("[red]save settings: %v", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.renderSettings(stored)
		})
		a.setStatus("settings saved")
	}()
}
