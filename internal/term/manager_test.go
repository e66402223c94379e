package term

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/splitdeck/splitdeck/internal/layout"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testProviders avoids depending on any assistant CLI being installed.
func testProviders() map[string]Provider {
	return map[string]Provider{
		"shell": {Name: "shell"},
		"echo":  {Name: "echo", Command: "echo", Args: []string{"hello-from-pane"}},
		"cat":   {Name: "cat", Command: "cat"},
	}
}

func newTestManager(t *testing.T, archiveDir string) (*Manager, chan ExitEvent) {
	t.Helper()
	m := NewManager(Options{
		Shell:           "/bin/sh",
		ScrollbackBytes: 64 * 1024,
		ArchiveDir:      archiveDir,
		Providers:       testProviders(),
	})
	events := make(chan ExitEvent, 8)
	m.OnExit = func(e ExitEvent) { events <- e }
	t.Cleanup(m.CloseAll)
	return m, events
}

func waitExit(t *testing.T, events chan ExitEvent) ExitEvent {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for exit event")
		return ExitEvent{}
	}
}

func terminalContent(mode string) *layout.PaneContent {
	return layout.TerminalContent(layout.TerminalMode(mode), "")
}

func TestManager_RunsCommandAndCaptures(t *testing.T) {
	archiveDir := t.TempDir()
	m, events := newTestManager(t, archiveDir)

	require.NoError(t, m.Start("p1", terminalContent("echo")))

	e := waitExit(t, events)
	assert.Equal(t, "p1", e.PaneID)
	assert.Equal(t, "echo", e.Provider)

	out, err := m.Capture("p1")
	require.NoError(t, err)
	assert.Contains(t, string(out), "hello-from-pane")

	assert.False(t, m.IsRunning("p1"))
	list := m.List()
	require.Len(t, list, 1)
	assert.False(t, list[0].Running)

	// The exit path archived the scrollback.
	archives, err := ListArchives(archiveDir, "p1")
	require.NoError(t, err)
	assert.Len(t, archives, 1)

	assert.Equal(t, 1, m.PruneExited())
	assert.Empty(t, m.List())
}

func TestManager_WriteReachesCommand(t *testing.T) {
	m, events := newTestManager(t, "")

	require.NoError(t, m.Start("p1", terminalContent("cat")))
	ch, cancel, err := m.Subscribe("p1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, m.Write("p1", []byte("marker-123\n")))

	var seen bytes.Buffer
	deadline := time.After(10 * time.Second)
	for !strings.Contains(seen.String(), "marker-123") {
		select {
		case chunk, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed before marker arrived, saw %q", seen.String())
			}
			seen.Write(chunk)
		case <-deadline:
			t.Fatalf("timed out waiting for marker, saw %q", seen.String())
		}
	}

	require.NoError(t, m.Close("p1"))
	e := waitExit(t, events)
	assert.Equal(t, "p1", e.PaneID)
}

func TestManager_WorkDir(t *testing.T) {
	m, events := newTestManager(t, "")
	dir := t.TempDir()

	m.providers["pwd"] = Provider{Name: "pwd", Command: "pwd"}
	content := terminalContent("pwd")
	content.WorkDir = dir

	require.NoError(t, m.Start("p1", content))
	waitExit(t, events)

	out, err := m.Capture("p1")
	require.NoError(t, err)
	assert.Contains(t, string(out), filepath.Base(dir))
}

func TestManager_StartValidation(t *testing.T) {
	m, _ := newTestManager(t, "")

	assert.Error(t, m.Start("p1", nil))
	assert.Error(t, m.Start("p1", layout.BrowserContent("https://example.com")))
	assert.Error(t, m.Start("p1", terminalContent("no-such-provider")))

	missing := terminalContent("cat")
	missing.WorkDir = filepath.Join(t.TempDir(), "does-not-exist")
	assert.Error(t, m.Start("p1", missing))
}

func TestManager_DuplicateStartThenReplaceAfterExit(t *testing.T) {
	m, events := newTestManager(t, "")

	require.NoError(t, m.Start("p1", terminalContent("cat")))
	assert.Error(t, m.Start("p1", terminalContent("cat")), "second start on a running pane must fail")

	require.NoError(t, m.Close("p1"))
	waitExit(t, events)

	// An exited pane can be started again.
	require.NoError(t, m.Start("p1", terminalContent("echo")))
	waitExit(t, events)
}

func TestManager_Resize(t *testing.T) {
	m, events := newTestManager(t, "")

	require.NoError(t, m.Start("p1", terminalContent("cat")))
	assert.NoError(t, m.Resize("p1", 120, 40))
	assert.Error(t, m.Resize("p1", 0, 40))

	require.NoError(t, m.Close("p1"))
	waitExit(t, events)
}

func TestManager_UnknownPane(t *testing.T) {
	m, _ := newTestManager(t, "")

	assert.Error(t, m.Write("nope", []byte("x")))
	assert.Error(t, m.Resize("nope", 80, 24))
	assert.Error(t, m.Close("nope"))
	_, err := m.Capture("nope")
	assert.Error(t, err)
	_, _, err = m.Subscribe("nope")
	assert.Error(t, err)
}

func TestManager_SubscribeAfterExitReplaysScrollback(t *testing.T) {
	m, events := newTestManager(t, "")

	require.NoError(t, m.Start("p1", terminalContent("echo")))
	waitExit(t, events)

	ch, cancel, err := m.Subscribe("p1")
	require.NoError(t, err)
	defer cancel()

	select {
	case chunk := <-ch:
		assert.Contains(t, string(chunk), "hello-from-pane")
	case <-time.After(time.Second):
		t.Fatal("no backlog delivered to late subscriber")
	}
}

func TestManager_CloseAllStopsEverything(t *testing.T) {
	m, events := newTestManager(t, "")

	require.NoError(t, m.Start("p1", terminalContent("cat")))
	require.NoError(t, m.Start("p2", terminalContent("cat")))

	m.CloseAll()
	waitExit(t, events)
	waitExit(t, events)

	assert.False(t, m.IsRunning("p1"))
	assert.False(t, m.IsRunning("p2"))
}
