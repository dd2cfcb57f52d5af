package shared

import (
	"errors"
	"os/exec"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCmd
	t.Cleanup(func() {
		getRuntime, startCmd = origRuntime, origStart
	})

	tc := []struct {
		goos     string
		wantName string
		wantErr  bool
	}{
		{goos: "darwin", wantName: "open"},
		{goos: "linux", wantName: "xdg-open"},
		{goos: "windows", wantName: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			var started *exec.Cmd
			getRuntime = func() string { return tt.goos }
			startCmd = func(cmd *exec.Cmd) error {
				started = cmd
				return nil
			}

			err := OpenBrowser("http://localhost:8000/login")
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenBrowser() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if started == nil {
				t.Fatal("expected command to be started")
			}
			if started.Args[0] != tt.wantName {
				t.Errorf("expected %s, got %s", tt.wantName, started.Args[0])
			}
			if last := started.Args[len(started.Args)-1]; last != "http://localhost:8000/login" {
				t.Errorf("expected URL as last argument, got %s", last)
			}
		})
	}

	t.Run("start failure", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		startCmd = func(*exec.Cmd) error { return errors.New("no display") }

		if err := OpenBrowser("http://localhost"); err == nil {
			t.Error("expected error when command fails to start")
		}
	})
}
