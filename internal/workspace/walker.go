// Package workspace provides gitignore-aware traversal of the project tree
// shared by the file tools and the system-prompt sampler.
package workspace

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// alwaysSkipped are directories never worth surfacing to the model.
var alwaysSkipped = map[string]bool{
	".git":         true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
}

// Ignore holds the patterns of a project's .gitignore (root file only;
// nested ignore files are out of scope for sampling purposes).
type Ignore struct {
	patterns []string
	negated  []string
}

// LoadIgnore reads root/.gitignore. A missing file yields an empty matcher.
func LoadIgnore(root string) *Ignore {
	ig := &Ignore{}
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return ig
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		negate := strings.HasPrefix(line, "!")
		if negate {
			line = strings.TrimPrefix(line, "!")
		}
		pattern := normalizePattern(line)
		if negate {
			ig.negated = append(ig.negated, pattern)
		} else {
			ig.patterns = append(ig.patterns, pattern)
		}
	}
	return ig
}

// normalizePattern converts a gitignore line into a doublestar pattern
// matched against slash-separated paths relative to the root.
func normalizePattern(line string) string {
	line = strings.TrimSuffix(line, "/")
	if strings.HasPrefix(line, "/") {
		return strings.TrimPrefix(line, "/")
	}
	return "**/" + line
}

// Match reports whether a root-relative slash path is ignored.
func (ig *Ignore) Match(rel string) bool {
	matched := false
	for _, p := range ig.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			matched = true
			break
		}
		// Directory patterns ignore everything beneath them.
		if ok, _ := doublestar.Match(p+"/**", rel); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, p := range ig.negated {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	return true
}

// List returns the root-relative paths of files under root, gitignore
// filtered, sorted, capped at limit (0 means no cap).
func List(root string, limit int) ([]string, error) {
	ignore := LoadIgnore(root)
	var out []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if alwaysSkipped[d.Name()] || ignore.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.Match(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Glob returns root-relative entries matching a doublestar pattern,
// gitignore filtered.
func Glob(root, pattern string) ([]string, error) {
	paths, err := List(root, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, rel := range paths {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			out = append(out, rel)
		}
	}
	return out, nil
}
