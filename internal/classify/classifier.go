// Package classify assigns a verification layer to raw issues via
// pattern voting over a data-driven table.
package classify

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// componentLayers is the exact component-name lookup table. A hit here is the
// highest-trust signal and short-circuits pattern voting.
var componentLayers = map[string]models.Layer{
	"core":            models.LayerFramework,
	"orchestrator":    models.LayerFramework,
	"scheduler":       models.LayerFramework,
	"hook-engine":     models.LayerFramework,
	"mcp-server":      models.LayerFramework,
	"installer":       models.LayerFramework,
	"updater":         models.LayerFramework,
	"telemetry":       models.LayerFramework,
	"build":           models.LayerProject,
	"tests":           models.LayerProject,
	"dependencies":    models.LayerProject,
	"lint":            models.LayerProject,
	"git":             models.LayerProject,
	"ci":              models.LayerProject,
	"preferences":     models.LayerContext,
	"conventions":     models.LayerContext,
	"session-context": models.LayerContext,
	"todo-hygiene":    models.LayerContext,
}

// layerPattern is one tagged vote rule. The table is data, not control flow,
// so it can be tested and extended without touching the classifier.
type layerPattern struct {
	layer models.Layer
	name  string
	re    *regexp.Regexp
}

var layerPatterns = []layerPattern{
	{models.LayerFramework, "framework-internals", regexp.MustCompile(`(?i)\b(hook|mcp|plugin|installer|updater|framework|bootstrap|daemon)\b`)},
	{models.LayerFramework, "framework-config", regexp.MustCompile(`(?i)\b(settings\.json|manifest|version mismatch|registry)\b`)},
	{models.LayerFramework, "framework-runtime", regexp.MustCompile(`(?i)\b(scheduler|orchestrat\w*|telemetry|session leak)\b`)},
	{models.LayerProject, "project-build", regexp.MustCompile(`(?i)\b(build|compile|bundler|webpack|tsc|makefile)\b`)},
	{models.LayerProject, "project-deps", regexp.MustCompile(`(?i)\b(dependenc\w+|node_modules|package\.json|go\.mod|module|import)\b`)},
	{models.LayerProject, "project-tests", regexp.MustCompile(`(?i)\b(test\w*|coverage|flaky|assertion)\b`)},
	{models.LayerProject, "project-vcs", regexp.MustCompile(`(?i)\b(git|branch|merge conflict|commit|\.gitignore)\b`)},
	{models.LayerProject, "project-files", regexp.MustCompile(`(?i)\b(source file|missing file|syntax error|lint\w*)\b`)},
	{models.LayerContext, "context-preferences", regexp.MustCompile(`(?i)\b(preference\w*|convention\w*|style guide|naming)\b`)},
	{models.LayerContext, "context-session", regexp.MustCompile(`(?i)\b(todo\w*|session context|memory|stale note|working agreement)\b`)},
	{models.LayerContext, "context-team", regexp.MustCompile(`(?i)\b(team|reviewer|approval setting|workflow preference)\b`)},
}

const (
	exactMatchConfidence = 95
	// defaultConfidence applies when no pattern votes: "project" is the most
	// common layer, chosen as an explicit tie-break, not a silent failure.
	defaultConfidence = 50
)

// Classifier is a pure, stateless layer classifier. Safe for concurrent use.
type Classifier struct{}

// New constructs a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify derives the layer for one issue. Deterministic and idempotent.
func (c *Classifier) Classify(issue models.Issue) models.LayerClassification {
	component := strings.ToLower(strings.TrimSpace(issue.Component))
	if layer, ok := componentLayers[component]; ok {
		return models.LayerClassification{
			Layer:           layer,
			Confidence:      exactMatchConfidence,
			MatchedPatterns: []string{"component:" + component},
			Reasoning:       fmt.Sprintf("component %q maps directly to the %s layer", issue.Component, layer),
		}
	}

	haystack := issue.Component + " " + issue.Description
	votes := make(map[models.Layer]int, 3)
	matched := make(map[models.Layer][]string, 3)
	total := 0
	for _, p := range layerPatterns {
		if p.re.MatchString(haystack) {
			votes[p.layer]++
			matched[p.layer] = append(matched[p.layer], p.name)
			total++
		}
	}

	if total == 0 {
		return models.LayerClassification{
			Layer:      models.LayerProject,
			Confidence: defaultConfidence,
			Reasoning:  "no pattern matched; defaulting to the project layer",
		}
	}

	winner := models.LayerProject
	best := -1
	// Fixed evaluation order keeps ties deterministic.
	for _, layer := range []models.Layer{models.LayerFramework, models.LayerProject, models.LayerContext} {
		if votes[layer] > best {
			best = votes[layer]
			winner = layer
		}
	}

	confidence := math.Round(float64(best) / float64(total) * 100)
	return models.LayerClassification{
		Layer:           winner,
		Confidence:      confidence,
		MatchedPatterns: matched[winner],
		Reasoning: fmt.Sprintf("%d of %d pattern votes favour the %s layer (%s)",
			best, total, winner, strings.Join(matched[winner], ", ")),
	}
}
