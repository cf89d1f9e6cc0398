package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// imageExts lists the on-disk extensions produced by Save.
var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// ListImages returns the image files in dir sorted by name. Subdirectories
// and in-flight temp files are skipped.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".part-") {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// CountImages counts the image files in dir. A missing directory counts as
// empty rather than an error, since the scan runs before any download may
// have created it.
func CountImages(dir string) int {
	files, err := ListImages(dir)
	if err != nil {
		return 0
	}
	return len(files)
}

// RenameSequential renumbers the images in dir to a zero-padded sequence
// starting at 1 ("000001.jpg", ...), preserving extensions. Returns how many
// files were renamed. A two-phase rename avoids clobbering when old and new
// names overlap.
func RenameSequential(dir string, width int) (int, error) {
	if width <= 0 {
		width = 6
	}

	files, err := ListImages(dir)
	if err != nil {
		return 0, err
	}

	staged := make([]string, len(files))
	for i, path := range files {
		tmp := filepath.Join(dir, fmt.Sprintf(".part-rename-%d%s", i, filepath.Ext(path)))
		if err := os.Rename(path, tmp); err != nil {
			return 0, fmt.Errorf("stage rename %s: %w", path, err)
		}
		staged[i] = tmp
	}

	renamed := 0
	for i, tmp := range staged {
		final := filepath.Join(dir, fmt.Sprintf("%0*d%s", width, i+1, filepath.Ext(tmp)))
		if err := os.Rename(tmp, final); err != nil {
			return renamed, fmt.Errorf("final rename %s: %w", tmp, err)
		}
		renamed++
	}
	return renamed, nil
}
