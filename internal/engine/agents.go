package engine

import (
	"strings"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// issueCategory is the closed set of routing categories an issue can fall
// into. Unrecognized text falls through to categoryGeneral explicitly.
type issueCategory string

const (
	categoryBuild   issueCategory = "build"
	categoryDeps    issueCategory = "dependencies"
	categoryTests   issueCategory = "tests"
	categoryConfig  issueCategory = "configuration"
	categoryHygiene issueCategory = "hygiene"
	categoryGeneral issueCategory = "general"
)

// categorize buckets an issue for agent routing.
func categorize(issue models.Issue) issueCategory {
	text := strings.ToLower(issue.Component + " " + issue.Description)
	switch {
	case strings.Contains(text, "dependen") || strings.Contains(text, "module"):
		return categoryDeps
	case strings.Contains(text, "build") || strings.Contains(text, "compile"):
		return categoryBuild
	case strings.Contains(text, "test") || strings.Contains(text, "coverage"):
		return categoryTests
	case strings.Contains(text, "config") || strings.Contains(text, "setting") || strings.Contains(text, "manifest"):
		return categoryConfig
	case strings.Contains(text, "todo") || strings.Contains(text, "stale") || strings.Contains(text, "cleanup"):
		return categoryHygiene
	default:
		return categoryGeneral
	}
}

// agentTable routes layer × category to a remediation agent.
var agentTable = map[models.Layer]map[issueCategory]string{
	models.LayerFramework: {
		categoryBuild:   "framework-maintainer",
		categoryDeps:    "framework-maintainer",
		categoryConfig:  "framework-config-agent",
		categoryHygiene: "framework-janitor",
		categoryTests:   "framework-maintainer",
		categoryGeneral: "framework-maintainer",
	},
	models.LayerProject: {
		categoryBuild:   "build-agent",
		categoryDeps:    "dependency-agent",
		categoryTests:   "test-agent",
		categoryConfig:  "project-config-agent",
		categoryHygiene: "project-janitor",
		categoryGeneral: "project-maintainer",
	},
	models.LayerContext: {
		categoryConfig:  "preference-curator",
		categoryHygiene: "context-janitor",
		categoryGeneral: "preference-curator",
	},
}

// assignAgent resolves the remediation agent for a classified issue.
// Framework-only agents are never assigned when operating inside an end-user
// project: those issues are re-routed to the project maintainer instead.
func assignAgent(layer models.Layer, issue models.Issue, frameworkRepo bool) string {
	if layer == models.LayerFramework && !frameworkRepo {
		return agentTable[models.LayerProject][categoryGeneral]
	}
	category := categorize(issue)
	if agent, ok := agentTable[layer][category]; ok {
		return agent
	}
	return agentTable[layer][categoryGeneral]
}

// priorityFor derives ticket priority (1 highest) from severity, nudged by
// verification confidence.
func priorityFor(severity models.Severity, confidence float64) int {
	base := 5 - severity.Rank()
	if confidence >= 90 && base > 1 {
		base--
	}
	if base < 1 {
		base = 1
	}
	if base > 4 {
		base = 4
	}
	return base
}
