package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wastebot/internal/due"
	"wastebot/internal/waste"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestAppLifecycle(t *testing.T) {
	day := time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	path := writeConfig(t, `{
		"sources": {
			"items": [
				{"type": "paper", "dates": ["`+day+`"]}
			]
		},
		"logging": {"level": "error", "console": false}
	}`)

	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-a.Session().Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("first snapshot not published")
	}

	events := a.Session().Events()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Types[0] != waste.TypePaper {
		t.Fatalf("type = %q", events[0].Types[0])
	}

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestAppRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, `{"timezone": "Not/AZone"}`)
	if _, err := New(path); err == nil {
		t.Fatal("expected error for bad timezone")
	}
}

func TestAlertText(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2024, 6, 11, 21, 0, 0, 0, loc)
	alert := due.Alert{
		Types: []waste.Type{waste.TypeGeneral, waste.TypePaper},
		At:    time.Date(2024, 6, 12, 20, 0, 0, 0, loc),
	}

	got := alertText(alert, now, waste.DefaultTypeTable())
	want := "Bins out! Pickup tomorrow: Restmüll, Papier"
	if got != want {
		t.Fatalf("alertText = %q, want %q", got, want)
	}

	sameDay := alertText(alert, time.Date(2024, 6, 12, 9, 0, 0, 0, loc), waste.DefaultTypeTable())
	if sameDay != "Bins out! Pickup today: Restmüll, Papier" {
		t.Fatalf("alertText same day = %q", sameDay)
	}
}
