package brain

import (
	"encoding/base64"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SargassoLLC/anemone/core/types"
)

// Ledger files the agent never treats as user input.
var ignoreFiles = map[string]bool{
	"memory_stream.jsonl": true,
	"identity.json":       true,
}

// Root-level files managed by the agent itself.
var internalRootFiles = map[string]bool{
	"projects.md": true,
}

var textExts = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".json": true, ".csv": true,
	".yaml": true, ".yml": true, ".toml": true, ".js": true, ".ts": true,
	".html": true, ".css": true, ".sh": true, ".log": true,
}

var imageMIMEs = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func isSubPath(rel string) bool {
	return strings.ContainsRune(rel, filepath.Separator)
}

func readFileString(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	return string(data), err
}

// scanEnvFiles walks the confined root and returns all visible files by
// relative path. Dotfiles and ledger files are skipped.
func (b *Brain) scanEnvFiles() map[string]bool {
	files := map[string]bool{}
	filepath.WalkDir(b.envPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != b.envPath {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || ignoreFiles[name] {
			return nil
		}
		if rel, err := filepath.Rel(b.envPath, path); err == nil {
			files[rel] = true
		}
		return nil
	})
	return files
}

func (b *Brain) listEnvFiles() []string {
	var files []string
	for f := range b.scanEnvFiles() {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// checkNewFiles diffs the root against what the agent has already seen and
// loads whatever is new for the inbox.
func (b *Brain) checkNewFiles() []types.NewFileInfo {
	current := b.scanEnvFiles()
	var newPaths []string
	for f := range current {
		if !b.seenEnvFiles[f] {
			newPaths = append(newPaths, f)
		}
	}
	b.seenEnvFiles = current
	sort.Strings(newPaths)

	var results []types.NewFileInfo
	for _, rel := range newPaths {
		fpath := filepath.Join(b.envPath, rel)
		info, err := os.Stat(fpath)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(rel))

		entry := types.NewFileInfo{Name: rel}
		switch {
		case textExts[ext]:
			if content, err := os.ReadFile(fpath); err == nil {
				entry.Content = truncate(string(content), 2000)
			} else {
				entry.Content = "(could not read file)"
			}
		case imageMIMEs[ext] != "":
			if data, err := os.ReadFile(fpath); err == nil {
				entry.Image = "data:" + imageMIMEs[ext] + ";base64," +
					base64.StdEncoding.EncodeToString(data)
			}
		default:
			entry.Content = "(binary file: " + rel + ")"
		}
		results = append(results, entry)
	}
	return results
}

// loadCurrentFocus pulls the "# Current focus" section out of projects.md.
func (b *Brain) loadCurrentFocus() string {
	content, err := readFileString(b.envPath, "projects.md")
	if err != nil {
		return ""
	}
	inFocus := false
	var focusLines []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "# current focus") {
			inFocus = true
			continue
		}
		if inFocus {
			if strings.HasPrefix(line, "# ") {
				break
			}
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				focusLines = append(focusLines, trimmed)
			}
		}
	}
	return truncate(strings.Join(focusLines, " "), 300)
}
