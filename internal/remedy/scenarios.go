package remedy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/verify"
)

func containsAny(text string, needles ...string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// BuiltinScenarios returns the stock registry. Order matters: more specific
// matchers come first so, e.g., a missing-module error on the dependencies
// component selects the dependency scenario and never the build one.
func BuiltinScenarios() []Scenario {
	return []Scenario{
		{
			ID:          "missing-dependencies",
			Context:     models.ScenarioShared,
			Description: "reinstall the dependency tree when modules cannot be resolved",
			Matches: func(issue models.Issue) bool {
				return containsAny(issue.Component, "depend") ||
					containsAny(issue.Description, "cannot find module", "module not found", "missing dependency")
			},
			AutoFixable: true,
			Confidence:  90,
			Fix:         reinstallDependencies,
		},
		{
			ID:          "stale-git-lock",
			Context:     models.ScenarioShared,
			Description: "remove a leftover git index lock",
			Matches: func(issue models.Issue) bool {
				return containsAny(issue.Description, "index.lock", "git lock")
			},
			AutoFixable: true,
			Confidence:  95,
			Fix:         removeGitLock,
		},
		{
			ID:          "stale-todos",
			Context:     models.ScenarioShared,
			Description: "archive completed or expired todo records",
			Matches: func(issue models.Issue) bool {
				return containsAny(issue.Description, "stale todo", "completed todo", "todo backlog")
			},
			AutoFixable: true,
			Confidence:  85,
			Fix:         archiveStaleTodos,
		},
		{
			ID:          "build-failure",
			Context:     models.ScenarioProject,
			Description: "build breakage needs a code change, not an automated repair",
			Matches: func(issue models.Issue) bool {
				return containsAny(issue.Description, "build failed", "compile error", "compilation failed") ||
					containsAny(issue.Component, "build")
			},
			AutoFixable: false,
			Confidence:  80,
		},
		{
			ID:          "framework-config-drift",
			Context:     models.ScenarioFramework,
			Description: "framework settings diverged from the installed manifest",
			Matches: func(issue models.Issue) bool {
				return containsAny(issue.Description, "config drift", "settings mismatch", "manifest mismatch")
			},
			AutoFixable: false,
			Confidence:  75,
		},
	}
}

func reinstallDependencies(ctx context.Context, issue models.Issue, wc verify.WorkingContext) (string, string, error) {
	manager := "npm"
	args := []string{"install"}
	if _, err := os.Stat(filepath.Join(wc.Root, "go.mod")); err == nil {
		manager = "go"
		args = []string{"mod", "download"}
	}

	before := fmt.Sprintf("dependency tree incomplete (%s)", issue.Description)
	cmd := exec.CommandContext(ctx, manager, args...)
	cmd.Dir = wc.Root
	if out, err := cmd.CombinedOutput(); err != nil {
		return before, "", fmt.Errorf("%s %s: %w: %s", manager, strings.Join(args, " "), err, firstLine(out))
	}
	return before, fmt.Sprintf("dependencies reinstalled via %s", manager), nil
}

func removeGitLock(ctx context.Context, issue models.Issue, wc verify.WorkingContext) (string, string, error) {
	lock := filepath.Join(wc.Root, ".git", "index.lock")
	info, err := os.Stat(lock)
	if err != nil {
		return "no lock file present", "nothing to do", nil
	}
	// Only a lock that nothing is holding is safe to clear.
	if time.Since(info.ModTime()) < 10*time.Minute {
		return "lock file present", "", fmt.Errorf("lock younger than 10m; a git process may still hold it")
	}
	if err := os.Remove(lock); err != nil {
		return "stale lock file present", "", fmt.Errorf("remove lock: %w", err)
	}
	return "stale lock file present", "lock removed", nil
}

func archiveStaleTodos(ctx context.Context, issue models.Issue, wc verify.WorkingContext) (string, string, error) {
	dir := filepath.Join(wc.Root, "todos")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "todo store unreadable", "nothing archived", nil
	}
	archive := filepath.Join(dir, "archive")
	if err := os.MkdirAll(archive, 0o755); err != nil {
		return "", "", fmt.Errorf("create archive dir: %w", err)
	}
	moved := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".done") {
			continue
		}
		src := filepath.Join(dir, entry.Name())
		if err := os.Rename(src, filepath.Join(archive, entry.Name())); err == nil {
			moved++
		}
	}
	return fmt.Sprintf("%d completed todos in store", moved), fmt.Sprintf("archived %d todos", moved), nil
}

func firstLine(out []byte) string {
	text := strings.TrimSpace(string(out))
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}
