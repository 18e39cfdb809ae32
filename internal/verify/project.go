package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// ProjectVerifier checks claims about the end-user project: missing files or
// modules, broken builds, and whether git history corroborates recent churn
// in the implicated area.
type ProjectVerifier struct {
	logger *slog.Logger
}

// NewProjectVerifier constructs a project-layer verifier.
func NewProjectVerifier(logger *slog.Logger) *ProjectVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectVerifier{logger: logger}
}

// Layer reports the layer this verifier serves.
func (v *ProjectVerifier) Layer() models.Layer { return models.LayerProject }

// Verify gathers project-level ground truth for one issue.
func (v *ProjectVerifier) Verify(ctx context.Context, issue models.Issue, wc WorkingContext) models.VerificationOutcome {
	return safeVerify(ctx, wc, func(ctx context.Context) models.VerificationOutcome {
		var evidence []models.EvidenceItem
		desc := strings.ToLower(issue.Description)

		paths := referencedPaths(issue)
		for _, p := range paths {
			missing := !fileExists(wc.Root, p)
			evidence = append(evidence, models.EvidenceItem{
				Check:  "referenced-file-missing",
				Passed: missing,
				Detail: p,
			})
		}

		// Dependency claims are confirmed when the dependency tree is in
		// fact absent or incomplete.
		if strings.Contains(desc, "cannot find module") || strings.Contains(desc, "module not found") || strings.Contains(desc, "dependenc") {
			hasNodeModules := fileExists(wc.Root, "node_modules")
			hasGoSum := fileExists(wc.Root, "go.sum")
			evidence = append(evidence, models.EvidenceItem{
				Check:  "dependency-tree-incomplete",
				Passed: !hasNodeModules && !hasGoSum,
				Detail: fmt.Sprintf("node_modules=%v go.sum=%v", hasNodeModules, hasGoSum),
			})
		}

		if wc.History != nil {
			hint := ""
			if len(paths) > 0 {
				hint = paths[0]
			}
			commits, err := wc.History.RecentCommits(ctx, hint, 24*time.Hour)
			if err != nil {
				v.logger.Debug("project history check failed", slog.Any("error", err))
				evidence = append(evidence, models.EvidenceItem{Check: "recent-change-activity", Passed: false, Detail: err.Error()})
			} else {
				evidence = append(evidence, models.EvidenceItem{
					Check:  "recent-change-activity",
					Passed: commits > 0,
					Detail: fmt.Sprintf("%d commits in 24h touching %q", commits, hint),
				})
			}
		}

		if len(evidence) == 0 {
			// Nothing falsifiable to check; report unverifiable rather than
			// guessing.
			evidence = append(evidence, models.EvidenceItem{
				Check:  "no-falsifiable-claim",
				Passed: false,
				Detail: "issue references no file, module, or recent change",
			})
		}

		fix := issue.Recommendation
		if fix == "" {
			fix = "restore the missing artifact and re-run the failing step"
		}
		return outcome(evidence, fix)
	})
}
