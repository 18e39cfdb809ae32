package dedup

import (
	"fmt"
	"sort"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// GroupStrategy selects the partition key for combined tickets.
type GroupStrategy string

const (
	GroupByAgent    GroupStrategy = "agent"
	GroupByPriority GroupStrategy = "priority"
	GroupByLayer    GroupStrategy = "layer"
)

// DefaultMaxGroupSize splits any larger group into numbered sub-groups so no
// single combined ticket is unbounded.
const DefaultMaxGroupSize = 10

// Group is one combined-ticket batch of related verified issues.
type Group struct {
	Key    string
	Part   int
	Issues []models.VerifiedIssue
}

// Grouper partitions verified issues into bounded groups. Deterministic for
// a given input ordering and configuration.
type Grouper struct {
	strategy GroupStrategy
	maxSize  int
}

// NewGrouper constructs a Grouper. Unknown strategies fall back to agent
// grouping; non-positive sizes fall back to the default.
func NewGrouper(strategy GroupStrategy, maxSize int) *Grouper {
	switch strategy {
	case GroupByAgent, GroupByPriority, GroupByLayer:
	default:
		strategy = GroupByAgent
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxGroupSize
	}
	return &Grouper{strategy: strategy, maxSize: maxSize}
}

func (g *Grouper) keyFor(v models.VerifiedIssue) string {
	switch g.strategy {
	case GroupByPriority:
		return fmt.Sprintf("p%d", v.Priority)
	case GroupByLayer:
		return string(v.Layer)
	default:
		return v.AssignedAgent
	}
}

// Group partitions the batch. Groups come back sorted by key, each split
// into numbered parts of at most maxSize issues.
func (g *Grouper) Group(verified []models.VerifiedIssue) []Group {
	buckets := make(map[string][]models.VerifiedIssue)
	for _, v := range verified {
		key := g.keyFor(v)
		buckets[key] = append(buckets[key], v)
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var groups []Group
	for _, key := range keys {
		issues := buckets[key]
		for part := 0; len(issues) > 0; part++ {
			n := g.maxSize
			if n > len(issues) {
				n = len(issues)
			}
			groups = append(groups, Group{Key: key, Part: part + 1, Issues: issues[:n]})
			issues = issues[n:]
		}
	}
	return groups
}

// Strategy reports the configured partition key.
func (g *Grouper) Strategy() GroupStrategy { return g.strategy }
