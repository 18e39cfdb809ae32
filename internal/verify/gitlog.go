package verify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecGitHistory answers history checks by shelling out to git in the
// working root. Read-only; safe for concurrent use.
type ExecGitHistory struct {
	Root string
}

// RecentCommits counts commits in the window, optionally restricted to a
// path hint.
func (g ExecGitHistory) RecentCommits(ctx context.Context, pathHint string, window time.Duration) (int, error) {
	since := fmt.Sprintf("--since=%s", time.Now().Add(-window).Format(time.RFC3339))
	args := []string{"log", "--oneline", since}
	if pathHint != "" {
		args = append(args, "--", pathHint)
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("git log: %w", err)
	}

	trimmed := strings.TrimSpace(out.String())
	if trimmed == "" {
		return 0, nil
	}
	return len(strings.Split(trimmed, "\n")), nil
}
