// Package execd runs one-shot shell commands and collects any files the
// command left behind in its output directory.
package execd

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"sort"

	"github.com/adi-family/cocoon/internal/signaling"
)

// responseFileName is reserved and never collected, mirroring the path the
// executor itself might use to stash structured results.
const responseFileName = ".cocoon_response.json"

const binarySampleSize = 8192

// CollectFiles walks dir and returns every regular file found, text files
// decoded lossily as UTF-8 and binary files base64-encoded. I/O errors on
// individual entries are skipped rather than surfaced, since a single
// unreadable file should not fail the whole collection.
func CollectFiles(dir string) []signaling.CollectedFile {
	out := []signaling.CollectedFile{}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return out
	}

	var paths []string
	_ = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if fi.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil || rel == responseFileName {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	sort.Strings(paths)

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		binary := isBinary(data)
		content := string(data)
		if binary {
			content = base64.StdEncoding.EncodeToString(data)
		}
		out = append(out, signaling.CollectedFile{
			Path:    rel,
			Content: content,
			Binary:  binary,
		})
	}
	return out
}

func isBinary(data []byte) bool {
	sample := data
	if len(sample) > binarySampleSize {
		sample = sample[:binarySampleSize]
	}
	return bytes.IndexByte(sample, 0) >= 0
}
