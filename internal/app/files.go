package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corey/shapegrep/internal/ports"
)

// skipDirs lists directories never searched (matches the fsnotify watcher).
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	"vendor":       true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
	".shapegrep":   true,
	".next":        true,
	".mypy_cache":  true,
}

// CollectOptions filters the files a search reads.
type CollectOptions struct {
	// Include globs widen the selection beyond supported extensions; when set,
	// a file is kept only if it matches one of them.
	Include []string
	// Exclude globs drop files and directories.
	Exclude []string
	// Language restricts the selection to one language's extensions.
	Language ports.Language
}

// CollectFiles walks roots and returns the files to search, sorted and
// deduplicated. A root naming a file is always kept. Globs are matched
// against the base name and against the slash-separated path relative to
// the root.
func CollectFiles(roots []string, opts CollectOptions) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip inaccessible paths
			}
			rel, _ := filepath.Rel(root, path)
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if path != root && (skipDirs[d.Name()] || matchAny(opts.Exclude, d.Name(), rel)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if matchAny(opts.Exclude, d.Name(), rel) {
				return nil
			}
			if !opts.selects(d.Name(), rel) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func (o CollectOptions) selects(name, rel string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if o.Language != "" {
		lang, ok := ports.LanguageForPath(name)
		if !ok || lang != o.Language {
			return false
		}
	}
	if len(o.Include) > 0 {
		return matchAny(o.Include, name, rel)
	}
	return ports.IsSupportedExtension(ext)
}

func matchAny(globs []string, name, rel string) bool {
	for _, g := range globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
		if ok, _ := filepath.Match(g, rel); ok {
			return true
		}
	}
	return false
}
