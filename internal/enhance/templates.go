package enhance

import (
	"fmt"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// template generates the human-facing text and implementation plan for one
// enhancement category. The step count also feeds effort estimation.
type template struct {
	titleFmt string
	descFmt  string
	steps    []string
	agent    string
}

func (t template) title(p models.RootCausePattern) string {
	return fmt.Sprintf(t.titleFmt, p.Component)
}

func (t template) description(p models.RootCausePattern) string {
	return fmt.Sprintf(t.descFmt, p.Description, p.Occurrences, p.OccurrencesPerWeek)
}

var categoryTemplates = map[models.EnhancementCategory]template{
	models.CategoryAutoRemediation: {
		titleFmt: "Automate the recurring manual fix for %s",
		descFmt:  "%q has a known manual fix and recurred %d times (%.1f/week). Encoding it as a remediation scenario removes the manual step.",
		steps: []string{
			"capture the manual fix procedure as a scenario matcher and fix function",
			"add the scenario to the remediation registry with a measured confidence",
			"verify against the next recurrence in dry-run mode",
			"enable execution once the dry run confirms the matcher",
		},
		agent: "remediation-engineer",
	},
	models.CategoryMonitoring: {
		titleFmt: "Improve detection coverage for %s",
		descFmt:  "%q recurred %d times (%.1f/week) before being surfaced. Earlier detection shortens time-to-fix.",
		steps: []string{
			"add a health-check metric covering the failing behavior",
			"set a degradation threshold informed by the observed recurrences",
			"confirm the new check fires on the historical snapshots",
		},
		agent: "observability-engineer",
	},
	models.CategoryPerformance: {
		titleFmt: "Address recurring performance degradation in %s",
		descFmt:  "%q recurred %d times (%.1f/week). Profile and remove the bottleneck.",
		steps: []string{
			"profile the component during the degradation window",
			"identify the dominant cost from the profile",
			"apply and benchmark the fix",
			"add a regression guard to the health checks",
		},
		agent: "performance-engineer",
	},
	models.CategoryReliability: {
		titleFmt: "Harden %s against a recurring failure",
		descFmt:  "%q recurred %d times (%.1f/week). Make the component tolerate or prevent the failure.",
		steps: []string{
			"reproduce the failure from the recorded snapshots",
			"fix the root cause or add a guard at the failure point",
			"add a test pinning the fixed behavior",
		},
		agent: "project-maintainer",
	},
	models.CategorySecurity: {
		titleFmt: "Resolve recurring security finding in %s",
		descFmt:  "%q recurred %d times (%.1f/week) and is security relevant. Treat as elevated priority.",
		steps: []string{
			"confirm the finding and its blast radius",
			"apply the upstream fix or mitigation",
			"audit for other instances of the same weakness",
			"document the resolution",
		},
		agent: "security-engineer",
	},
}

func templateFor(category models.EnhancementCategory) template {
	if tmpl, ok := categoryTemplates[category]; ok {
		return tmpl
	}
	return categoryTemplates[models.CategoryReliability]
}
