package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// FrameworkVerifier checks claims about the platform's own infrastructure:
// install layout, hook/plugin manifests, and recent framework churn.
type FrameworkVerifier struct {
	logger *slog.Logger
}

// NewFrameworkVerifier constructs a framework-layer verifier.
func NewFrameworkVerifier(logger *slog.Logger) *FrameworkVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameworkVerifier{logger: logger}
}

// Layer reports the layer this verifier serves.
func (v *FrameworkVerifier) Layer() models.Layer { return models.LayerFramework }

// Verify gathers framework-level ground truth for one issue.
func (v *FrameworkVerifier) Verify(ctx context.Context, issue models.Issue, wc WorkingContext) models.VerificationOutcome {
	return safeVerify(ctx, wc, func(ctx context.Context) models.VerificationOutcome {
		var evidence []models.EvidenceItem

		dir := wc.frameworkDir()
		installOK := fileExists("", dir)
		evidence = append(evidence, models.EvidenceItem{
			Check:  "install-dir-missing",
			Passed: !installOK,
			Detail: fmt.Sprintf("install dir %s exists=%v", dir, installOK),
		})

		// A missing-file claim is confirmed when the referenced file is in
		// fact absent from the install tree.
		for _, p := range referencedPaths(issue) {
			missing := !fileExists(dir, p) && !fileExists(wc.Root, p)
			evidence = append(evidence, models.EvidenceItem{
				Check:  "referenced-file-missing",
				Passed: missing,
				Detail: p,
			})
		}

		// A healthy manifest refutes a corruption claim; only a missing,
		// unreadable, or malformed one confirms it.
		damaged, detail := manifestDamaged(filepath.Join(dir, "manifest.json"))
		evidence = append(evidence, models.EvidenceItem{
			Check:  "manifest-missing-or-invalid",
			Passed: damaged,
			Detail: detail,
		})

		if wc.History != nil {
			commits, err := wc.History.RecentCommits(ctx, dir, 72*time.Hour)
			if err != nil {
				v.logger.Debug("framework history check failed", slog.Any("error", err))
				evidence = append(evidence, models.EvidenceItem{Check: "recent-framework-churn", Passed: false, Detail: err.Error()})
			} else {
				evidence = append(evidence, models.EvidenceItem{
					Check:  "recent-framework-churn",
					Passed: commits > 0,
					Detail: fmt.Sprintf("%d commits in 72h", commits),
				})
			}
		}

		fix := issue.Recommendation
		if fix == "" {
			fix = "reinstall or repair the framework installation"
		}
		return outcome(evidence, fix)
	})
}

// manifestDamaged reports whether the install manifest is absent, unreadable,
// or not valid JSON.
func manifestDamaged(path string) (bool, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, fmt.Sprintf("%s absent", path)
		}
		return true, fmt.Sprintf("%s unreadable: %v", path, err)
	}
	if !json.Valid(data) {
		return true, fmt.Sprintf("%s is not valid JSON", path)
	}
	return false, fmt.Sprintf("%s valid", path)
}
