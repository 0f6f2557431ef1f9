package media

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// VideoExtensions are the extensions picked up when walking directories.
//
//nolint:gochecknoglobals
var VideoExtensions = []string{".mp4", ".mov", ".mkv", ".webm", ".avi", ".m4v"}

// Collect expands directories into the video files below them. Files named explicitly
// are kept regardless of extension. Converted copies are skipped.
func Collect(paths []string) ([]string, error) {
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)

			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() || !isVideo(p) || strings.HasPrefix(d.Name(), "converted_") {
				return nil
			}

			files = append(files, p)

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", path, err)
		}
	}

	slices.Sort(files)

	return slices.Compact(files), nil
}

func isVideo(path string) bool {
	return slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(path)))
}
