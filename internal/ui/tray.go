package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/ncruces/zenity"

	"github.com/tikops/tikops-agent/internal/catalog"
	"github.com/tikops/tikops-agent/internal/factory"
	"github.com/tikops/tikops-agent/internal/share"
)

type Tray struct {
	catalogSvc catalog.CatalogService
	runner     *factory.Runner
	shareSrv   *share.Server
	logger     *slog.Logger

	statusItem  *systray.MenuItem
	sourcesItem *systray.MenuItem
	pauseItem   *systray.MenuItem
	shareItem   *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	CatalogService catalog.CatalogService
	Runner         *factory.Runner
	ShareServer    *share.Server
	Logger         *slog.Logger
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		catalogSvc: cfg.CatalogService,
		runner:     cfg.Runner,
		shareSrv:   cfg.ShareServer,
		logger:     cfg.Logger,
		onQuit:     cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("TikOps")
	systray.SetTooltip("TikOps Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.sourcesItem = systray.AddMenuItem("Sources: 0", "Watched material folders")
	t.sourcesItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause Processing", "Pause batch processing")

	addFolderItem := systray.AddMenuItem("Add Material Folder...", "Catalog a folder of source videos")

	t.shareItem = systray.AddMenuItem("Start Phone Transfer", "Serve processed videos over Wi-Fi")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit TikOps Agent")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-addFolderItem.ClickedCh:
				t.handleAddFolder()
			case <-t.shareItem.ClickedCh:
				t.toggleShare()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.refreshSourcesCount()
	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Processing")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Processing")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleAddFolder() {
	path, err := zenity.SelectFile(
		zenity.Directory(),
		zenity.Title("Select Material Folder"),
	)
	if err != nil {
		if !errors.Is(err, zenity.ErrCanceled) {
			t.logger.Error("folder dialog failed", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	source, err := t.catalogSvc.AddFolder(ctx, path, "")
	if err != nil {
		t.logger.Error("failed to add folder", "path", path, "error", err)
		return
	}

	n, err := t.catalogSvc.ScanSource(ctx, source.ID)
	if err != nil {
		t.logger.Error("initial scan failed", "source_id", source.ID, "error", err)
		return
	}

	t.logger.Info("folder added from tray", "path", path, "cataloged", n)
	t.refreshSourcesCount()
}

func (t *Tray) toggleShare() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shareSrv == nil {
		return
	}

	if t.shareSrv.IsRunning() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.shareSrv.Stop(ctx); err != nil {
			t.logger.Error("failed to stop share server", "error", err)
			return
		}
		t.shareItem.SetTitle("Start Phone Transfer")
		return
	}

	if err := t.shareSrv.Start(); err != nil {
		t.logger.Error("failed to start share server", "error", err)
		return
	}
	t.shareItem.SetTitle(fmt.Sprintf("Stop Phone Transfer (%s)", t.shareSrv.URL()))
}

func (t *Tray) refreshSourcesCount() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sources, err := t.catalogSvc.GetSources(ctx)
	if err != nil {
		return
	}
	t.sourcesItem.SetTitle(fmt.Sprintf("Sources: %d", len(sources)))
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// The runner can emit progress before onReady has built the menu.
	if t.statusItem == nil {
		return
	}
	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) Quit() {
	systray.Quit()
}
