package backend

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/haasonsaas/scout/pkg/models"
)

// Patterns for mining file changes out of backend output. Backends print in
// their own dialects; the union below covers the tools we spawn plus
// VCS-status-style lines.
var (
	createdPattern  = regexp.MustCompile(`(?im)^\s*(?:created?|added|wrote|new file)[: ]\s*(\S+)`)
	modifiedPattern = regexp.MustCompile(`(?im)^\s*(?:modified|updated|edited|changed|applied edit to)[: ]\s*(\S+)`)
	deletedPattern  = regexp.MustCompile(`(?im)^\s*(?:deleted|removed)[: ]\s*(\S+)`)

	// vcsStatusPattern matches porcelain-style single-letter prefixes.
	vcsStatusPattern = regexp.MustCompile(`(?m)^\s*([AMD])\s+(\S+)$`)

	// diffStatPattern matches a git-style summary line.
	diffStatPattern = regexp.MustCompile(`(\d+) files? changed(?:, (\d+) insertions?\(\+\))?(?:, (\d+) deletions?\(-\))?`)
)

// authErrorPatterns mark output that indicates rejected credentials even
// when the child exits zero.
var authErrorPatterns = []string{
	"invalid api key",
	"incorrect api key",
	"authentication failed",
	"authentication error",
	"unauthorized",
	"please login",
	"not logged in",
	"credentials not found",
	"missing api key",
}

// knownErrorPatterns mark output that indicates the run failed despite a
// zero exit code.
var knownErrorPatterns = []string{
	"traceback (most recent call last)",
	"fatal:",
	"panic:",
	"command not found",
	"no such file or directory",
	"unhandled exception",
}

// ParseChanges extracts file changes from combined backend output,
// deduplicated by path in order of first appearance.
func ParseChanges(output string) []models.FileChange {
	var changes []models.FileChange
	seen := make(map[string]bool)

	add := func(path string, kind models.ChangeKind) {
		path = strings.Trim(path, `"'`+"`")
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		changes = append(changes, models.FileChange{Path: path, Kind: kind})
	}

	for _, m := range createdPattern.FindAllStringSubmatch(output, -1) {
		add(m[1], models.ChangeCreated)
	}
	for _, m := range modifiedPattern.FindAllStringSubmatch(output, -1) {
		add(m[1], models.ChangeModified)
	}
	for _, m := range deletedPattern.FindAllStringSubmatch(output, -1) {
		add(m[1], models.ChangeDeleted)
	}
	for _, m := range vcsStatusPattern.FindAllStringSubmatch(output, -1) {
		switch m[1] {
		case "A":
			add(m[2], models.ChangeCreated)
		case "M":
			add(m[2], models.ChangeModified)
		case "D":
			add(m[2], models.ChangeDeleted)
		}
	}
	return changes
}

// ParseDiffStats extracts a diff summary line, reporting whether one was
// present.
func ParseDiffStats(output string) (models.DiffStats, bool) {
	m := diffStatPattern.FindStringSubmatch(output)
	if m == nil {
		return models.DiffStats{}, false
	}
	stats := models.DiffStats{FilesChanged: atoiOrZero(m[1])}
	if m[2] != "" {
		stats.Insertions = atoiOrZero(m[2])
	}
	if m[3] != "" {
		stats.Deletions = atoiOrZero(m[3])
	}
	return stats, true
}

// MatchesAuthError reports whether output indicates a credential problem.
func MatchesAuthError(output string) bool {
	return matchesAny(output, authErrorPatterns)
}

// MatchesKnownError reports whether output indicates a failed run.
func MatchesKnownError(output string) bool {
	return matchesAny(output, knownErrorPatterns)
}

func matchesAny(output string, patterns []string) bool {
	lower := strings.ToLower(output)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
