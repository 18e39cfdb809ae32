// Package dedup suppresses repeat remediation tickets via content
// fingerprinting and staleness windows, and batches related verified issues
// into bounded groups. Both mechanisms are deterministic given the same
// inputs, which is what makes idempotence testable.
package dedup

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// fingerprintLength is how much normalized description participates in the
// fingerprint. Long tails of stack traces vary run to run; the head is what
// identifies the issue.
const fingerprintLength = 100

// DefaultStalenessWindow is how long a duplicate keeps suppressing new
// tickets before the issue is considered recurring and refreshed.
const DefaultStalenessWindow = 24 * time.Hour

// Fingerprint returns the normalized content fingerprint of an issue:
// lower-cased, whitespace-collapsed, truncated to fingerprintLength runes.
func Fingerprint(issue models.Issue) string {
	normalized := strings.ToLower(issue.Description)
	normalized = strings.Join(strings.Fields(normalized), " ")
	runes := []rune(normalized)
	if len(runes) > fingerprintLength {
		runes = runes[:fingerprintLength]
	}
	return string(runes)
}

// FingerprintHash returns a short stable hash of the fingerprint, suitable
// for embedding in ticket filenames so staleness checks need no body parse.
func FingerprintHash(issue models.Issue) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(Fingerprint(issue)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// ExistingTicket is the metadata the ticket store exposes for suppression
// decisions.
type ExistingTicket struct {
	FingerprintHash string
	Body            string
	CreatedAt       time.Time
}

// Decision is the suppression verdict for one candidate issue.
type Decision string

const (
	// DecisionFile means no live duplicate exists; file a new ticket.
	DecisionFile Decision = "file"
	// DecisionSuppress means a fresh duplicate already exists.
	DecisionSuppress Decision = "suppress"
	// DecisionRefresh means a duplicate exists but is stale; re-file so a
	// recurring issue is never permanently silenced.
	DecisionRefresh Decision = "refresh"
)

// Deduplicator decides whether candidate issues should produce new tickets.
// Pure function of the store's existing contents plus the new batch.
type Deduplicator struct {
	staleness time.Duration
}

// New constructs a Deduplicator; non-positive staleness falls back to the
// 24h default.
func New(staleness time.Duration) *Deduplicator {
	if staleness <= 0 {
		staleness = DefaultStalenessWindow
	}
	return &Deduplicator{staleness: staleness}
}

// Check decides the fate of one candidate against existing tickets at the
// given instant.
func (d *Deduplicator) Check(issue models.Issue, existing []ExistingTicket, now time.Time) Decision {
	fp := Fingerprint(issue)
	hash := FingerprintHash(issue)
	if fp == "" {
		return DecisionFile
	}

	verdict := DecisionFile
	for _, t := range existing {
		match := t.FingerprintHash == hash
		if !match && t.Body != "" {
			match = strings.Contains(strings.ToLower(t.Body), fp)
		}
		if !match {
			continue
		}
		if now.Sub(t.CreatedAt) > d.staleness {
			// Stale duplicate: refresh unless a fresher copy also exists.
			if verdict == DecisionFile {
				verdict = DecisionRefresh
			}
			continue
		}
		return DecisionSuppress
	}
	return verdict
}

// Staleness reports the configured window.
func (d *Deduplicator) Staleness() time.Duration { return d.staleness }
