package ui

import (
	"io"
	"log/slog"
	"testing"
)

// Batches claimed at startup can emit progress before the tray menu is
// built; UpdateStatus must tolerate the missing menu item.
func TestUpdateStatusBeforeTrayReady(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tray := NewTray(TrayConfig{Logger: logger})

	tray.UpdateStatus("Processing 1/3 (0%)")
	tray.UpdateStatus("Done: 3 ok, 0 failed")
}
