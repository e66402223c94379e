package term

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const archiveSuffix = ".log.zst"

// Shared codec state. The encoder is handed concurrency 1 and reused via
// EncodeAll, which is safe from multiple goroutines.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

// archiveScrollback compresses a pane's scrollback into the archive
// directory and returns the file path. Files are named so lexical order is
// chronological per pane.
func archiveScrollback(dir, paneID string, data []byte, ts time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s%s", paneID, ts.UTC().Format("20060102T150405"), archiveSuffix)
	path := filepath.Join(dir, name)

	compressed := zstdEncoder.EncodeAll(data, nil)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return path, nil
}

// ReadArchive decompresses an archived scrollback file.
func ReadArchive(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// ListArchives returns archive paths for one pane, oldest first. An empty
// paneID lists every archive in the directory.
func ListArchives(dir, paneID string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, archiveSuffix) {
			continue
		}
		if paneID != "" && !strings.HasPrefix(name, paneID+"-") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// trimArchiveDir deletes the oldest archives until the directory's total
// size fits the byte budget. Returns how many files were removed.
func trimArchiveDir(dir string, budget int64) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	type archive struct {
		path    string
		size    int64
		modTime time.Time
	}
	var archives []archive
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), archiveSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		archives = append(archives, archive{
			path:    filepath.Join(dir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	if total <= budget {
		return 0, nil
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].modTime.Before(archives[j].modTime)
	})

	removed := 0
	for _, a := range archives {
		if total <= budget {
			break
		}
		if err := os.Remove(a.path); err != nil {
			continue
		}
		total -= a.size
		removed++
	}
	return removed, nil
}
