package logging

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetup_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "splitdeck.log")

	closer, err := Setup(path)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		closer.Close()
	}()

	log.Printf("[WEB] test line %d", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "[WEB] test line 42") {
		t.Errorf("log file missing the written line: %q", data)
	}
}

func TestSetup_EmptyPathKeepsStderr(t *testing.T) {
	closer, err := Setup("")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		closer.Close()
	}()
}

func TestDefaultPath(t *testing.T) {
	got := DefaultPath("/home/u/.splitdeck")
	want := filepath.Join("/home/u/.splitdeck", "logs", "splitdeck.log")
	if got != want {
		t.Errorf("DefaultPath = %q, want %q", got, want)
	}
}
