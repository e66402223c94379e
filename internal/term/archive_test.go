package term

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveScrollback_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("$ make test\nok\n"), 200)

	path, err := archiveScrollback(dir, "pane-1", data, time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "pane-1-20260301T123000.log.zst", filepath.Base(path))

	got, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(data)), "archive should compress repetitive scrollback")
}

func TestListArchives_FiltersByPane(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := archiveScrollback(dir, "pane-a", []byte("one"), base)
	require.NoError(t, err)
	_, err = archiveScrollback(dir, "pane-a", []byte("two"), base.Add(time.Hour))
	require.NoError(t, err)
	_, err = archiveScrollback(dir, "pane-b", []byte("three"), base)
	require.NoError(t, err)

	all, err := ListArchives(dir, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	paneA, err := ListArchives(dir, "pane-a")
	require.NoError(t, err)
	require.Len(t, paneA, 2)
	assert.True(t, strings.HasSuffix(paneA[0], "pane-a-20260301T000000.log.zst"))
	assert.True(t, strings.HasSuffix(paneA[1], "pane-a-20260301T010000.log.zst"))
}

func TestListArchives_MissingDir(t *testing.T) {
	got, err := ListArchives(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTrimArchiveDir_RemovesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	// Three archives of roughly equal size with increasing mod times.
	var paths []string
	for i, pane := range []string{"old", "mid", "new"} {
		p, err := archiveScrollback(dir, pane, bytes.Repeat([]byte{byte('a' + i)}, 4096), base)
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(p, base.Add(time.Duration(i)*time.Minute), base.Add(time.Duration(i)*time.Minute)))
		paths = append(paths, p)
	}

	var total int64
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		total += info.Size()
	}

	// Budget for two of the three files: the oldest goes.
	removed, err := trimArchiveDir(dir, total*2/3)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(paths[0])
	assert.True(t, os.IsNotExist(err), "oldest archive should be removed")
	for _, p := range paths[1:] {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestTrimArchiveDir_UnderBudgetIsNoop(t *testing.T) {
	dir := t.TempDir()
	_, err := archiveScrollback(dir, "p", []byte("small"), time.Now())
	require.NoError(t, err)

	removed, err := trimArchiveDir(dir, 1<<20)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestTrimArchiveDir_MissingDir(t *testing.T) {
	removed, err := trimArchiveDir(filepath.Join(t.TempDir(), "nope"), 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRunMaintenance_PrunesExitedAndTrims(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(Options{ArchiveDir: dir})

	exited := &Instance{PaneID: "gone", scrollback: NewRingBuffer(16), done: make(chan struct{}), exited: true}
	close(exited.done)
	live := &Instance{PaneID: "live", scrollback: NewRingBuffer(16), done: make(chan struct{})}
	m.instances["gone"] = exited
	m.instances["live"] = live

	p, err := archiveScrollback(dir, "gone", bytes.Repeat([]byte("x"), 8192), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	info, err := os.Stat(p)
	require.NoError(t, err)

	result := m.RunMaintenance(MaintenanceOptions{ArchiveDir: dir, ArchiveBudget: info.Size() - 1})
	assert.Equal(t, 1, result.PrunedInstances)
	assert.Equal(t, 1, result.TrimmedArchives)

	if _, ok := m.instances["live"]; !ok {
		t.Error("live instance should survive maintenance")
	}
	if _, ok := m.instances["gone"]; ok {
		t.Error("exited instance should be pruned")
	}
}
