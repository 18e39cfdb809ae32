// Package verify implements chain-of-verification: layer-specific evidence
// gatherers that confirm or refute detector claims against ground truth, and
// the recursion guard bounding concurrent verification runs.
package verify

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// Verifier is the contract shared by the three layer verifiers. A verifier
// that cannot complete its checks returns verified=false; it never
// propagates, so unverifiable issues are reported as such rather than
// silently dropped.
type Verifier interface {
	Layer() models.Layer
	Verify(ctx context.Context, issue models.Issue, wc WorkingContext) models.VerificationOutcome
}

// GitHistory exposes the commit activity checks verifiers rely on.
type GitHistory interface {
	// RecentCommits counts commits touching pathHint within the window.
	// An empty pathHint counts repository-wide activity.
	RecentCommits(ctx context.Context, pathHint string, window time.Duration) (int, error)
}

// PreferenceStore exposes stored user/team preferences for conflict checks.
type PreferenceStore interface {
	Get(key string) (string, bool)
	Keys() []string
}

// WorkingContext describes the environment a verification run operates in.
// Verifiers only read external state through it and write nothing shared.
type WorkingContext struct {
	Root string
	// FrameworkRepo is true when the run targets the platform's own
	// repository rather than an end-user project.
	FrameworkRepo bool
	FrameworkDir  string
	History       GitHistory
	Prefs         PreferenceStore
	// CheckTimeout bounds each verifier invocation; a stuck check fails
	// closed instead of hanging the batch.
	CheckTimeout time.Duration
}

const defaultCheckTimeout = 10 * time.Second

func (wc WorkingContext) checkTimeout() time.Duration {
	if wc.CheckTimeout <= 0 {
		return defaultCheckTimeout
	}
	return wc.CheckTimeout
}

func (wc WorkingContext) frameworkDir() string {
	if wc.FrameworkDir != "" {
		return wc.FrameworkDir
	}
	return filepath.Join(wc.Root, ".sentinel")
}

// pathToken matches file-path-looking fragments inside issue descriptions.
var pathToken = regexp.MustCompile(`[\w@./~-]*[\w-]+\.[A-Za-z]{1,6}\b|[\w-]+/[\w./-]+`)

// referencedPaths extracts candidate file paths from an issue.
func referencedPaths(issue models.Issue) []string {
	raw := pathToken.FindAllString(issue.Description+" "+issue.RootCause, 4)
	paths := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Trim(p, ".,:;")
		if p == "" || strings.Contains(p, "://") {
			continue
		}
		paths = append(paths, p)
	}
	return paths
}

// fileExists resolves a possibly relative path against the working root.
func fileExists(root, path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// outcome turns a completed check list into a VerificationOutcome. The issue
// is verified only when at least one check explicitly confirmed the claim;
// confidence is the confirming share of attempted checks.
func outcome(evidence []models.EvidenceItem, fix string) models.VerificationOutcome {
	passed := 0
	for _, item := range evidence {
		if item.Passed {
			passed++
		}
	}
	if passed == 0 || len(evidence) == 0 {
		return models.VerificationOutcome{Verified: false, Evidence: evidence}
	}
	confidence := math.Round(float64(passed) / float64(len(evidence)) * 100)
	return models.VerificationOutcome{
		Verified:       true,
		Confidence:     confidence,
		Evidence:       evidence,
		RecommendedFix: fix,
	}
}

// safeVerify runs fn under the working-context timeout and converts panics
// into an unverified outcome.
func safeVerify(ctx context.Context, wc WorkingContext, fn func(ctx context.Context) models.VerificationOutcome) (out models.VerificationOutcome) {
	ctx, cancel := context.WithTimeout(ctx, wc.checkTimeout())
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			out = models.VerificationOutcome{
				Verified: false,
				Evidence: []models.EvidenceItem{{
					Check:  "verifier-panic",
					Passed: false,
					Detail: fmt.Sprint(r),
				}},
			}
		}
	}()
	return fn(ctx)
}
