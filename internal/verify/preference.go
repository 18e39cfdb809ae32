package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// PreferenceVerifier checks context-layer claims: conflicts between detected
// values and stored user/team preferences or conventions.
type PreferenceVerifier struct {
	logger *slog.Logger
}

// NewPreferenceVerifier constructs a context-layer verifier.
func NewPreferenceVerifier(logger *slog.Logger) *PreferenceVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceVerifier{logger: logger}
}

// Layer reports the layer this verifier serves.
func (v *PreferenceVerifier) Layer() models.Layer { return models.LayerContext }

// Verify gathers preference-store ground truth for one issue.
func (v *PreferenceVerifier) Verify(ctx context.Context, issue models.Issue, wc WorkingContext) models.VerificationOutcome {
	return safeVerify(ctx, wc, func(ctx context.Context) models.VerificationOutcome {
		var evidence []models.EvidenceItem

		if wc.Prefs == nil {
			return models.VerificationOutcome{
				Verified: false,
				Evidence: []models.EvidenceItem{{
					Check:  "preference-store-available",
					Passed: false,
					Detail: "no preference store in working context",
				}},
			}
		}

		haystack := strings.ToLower(issue.Description + " " + issue.RootCause)
		mentioned := 0
		for _, key := range wc.Prefs.Keys() {
			if !strings.Contains(haystack, strings.ToLower(key)) {
				continue
			}
			mentioned++
			stored, _ := wc.Prefs.Get(key)
			// The claim is confirmed when the detector's reported value
			// disagrees with what the store actually holds.
			conflict := stored != "" && !strings.Contains(haystack, strings.ToLower(stored))
			evidence = append(evidence, models.EvidenceItem{
				Check:  "preference-conflict",
				Passed: conflict,
				Detail: fmt.Sprintf("key=%s stored=%q", key, stored),
			})
		}

		if mentioned == 0 {
			evidence = append(evidence, models.EvidenceItem{
				Check:  "preference-referenced",
				Passed: false,
				Detail: "issue references no stored preference key",
			})
		}

		todosDir := "todos"
		if strings.Contains(haystack, "todo") {
			present := fileExists(wc.Root, todosDir)
			evidence = append(evidence, models.EvidenceItem{
				Check:  "todo-store-present",
				Passed: present,
				Detail: todosDir,
			})
		}

		fix := issue.Recommendation
		if fix == "" {
			fix = "reconcile the detected value with the stored preference"
		}
		return outcome(evidence, fix)
	})
}
