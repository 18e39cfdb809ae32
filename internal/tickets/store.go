// Package tickets persists verified-issue tickets as one JSON artifact per
// ticket in a shared store directory. Filenames carry agent, priority, layer
// and creation time so staleness and fingerprint checks never re-parse a
// ticket body; fingerprint marker files make concurrent creation safe.
package tickets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-heal/internal/dedup"
	"github.com/sentinelstack/sentinel-heal/internal/models"
)

// filePrefix namespaces this producer's artifacts; other tools writing the
// same store directory use their own prefixes.
const filePrefix = "heal"

const markerPrefix = "fp"

// DefaultRetention is how long tickets and markers are kept before cleanup.
const DefaultRetention = 168 * time.Hour

// ErrDuplicate is returned by Create when every fingerprint of the ticket is
// already claimed by a live marker.
var ErrDuplicate = errors.New("tickets: fingerprint already filed")

// Ticket is the stored artifact. One per verified issue, or one per group
// when combined ticketing is enabled.
type Ticket struct {
	ID           string                 `json:"id"`
	Agent        string                 `json:"agent"`
	Priority     int                    `json:"priority"`
	Layer        models.Layer           `json:"layer"`
	Summary      string                 `json:"summary"`
	Issues       []models.VerifiedIssue `json:"issues"`
	Fingerprints []string               `json:"fingerprints"`
	GroupKey     string                 `json:"group_key,omitempty"`
	Part         int                    `json:"part,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// marker reserves a fingerprint for the ticket file that claimed it.
type marker struct {
	TicketFile string    `json:"ticket_file"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store reads and writes a ticket directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore ensures the directory exists and returns a Store over it.
func NewStore(logger *slog.Logger, dir string) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ticket dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir reports the store directory.
func (s *Store) Dir() string { return s.dir }

// Create claims the ticket's fingerprints and writes the artifact. If every
// fingerprint is already held by a live marker the ticket is a concurrent
// duplicate and ErrDuplicate is returned without writing anything.
func (s *Store) Create(t Ticket) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	name := s.fileName(t)
	claimed := 0
	for _, hash := range t.Fingerprints {
		ok, err := s.claim(hash, name, t.CreatedAt)
		if err != nil {
			return "", err
		}
		if ok {
			claimed++
		}
	}
	if len(t.Fingerprints) > 0 && claimed == 0 {
		return "", ErrDuplicate
	}

	body, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), body, 0o644); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	return name, nil
}

// Refresh releases the ticket's fingerprint markers and files it again. Used
// when a duplicate has gone stale and the issue must resurface.
func (s *Store) Refresh(t Ticket) (string, error) {
	for _, hash := range t.Fingerprints {
		if err := os.Remove(s.markerPath(hash)); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("release marker: %w", err)
		}
	}
	return s.Create(t)
}

// claim creates the fingerprint marker with O_EXCL. A pre-existing marker
// means another run already filed this fingerprint.
func (s *Store) claim(hash, ticketFile string, createdAt time.Time) (bool, error) {
	f, err := os.OpenFile(s.markerPath(hash), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("claim fingerprint: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(marker{TicketFile: ticketFile, CreatedAt: createdAt}); err != nil {
		return false, fmt.Errorf("write marker: %w", err)
	}
	return true, nil
}

func (s *Store) markerPath(hash string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", markerPrefix, hash))
}

// fileName encodes routing metadata into the artifact name:
// heal-<agent>-p<priority>-<layer>-<unixts>-<hash>.json.
func (s *Store) fileName(t Ticket) string {
	hash := "none"
	if len(t.Fingerprints) > 0 {
		hash = t.Fingerprints[0]
	}
	return fmt.Sprintf("%s-%s-p%d-%s-%d-%s.json",
		filePrefix, sanitize(t.Agent), t.Priority, t.Layer, t.CreatedAt.Unix(), hash)
}

// sanitize keeps agent names filesystem and parser safe.
func sanitize(name string) string {
	if name == "" {
		return "unassigned"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Meta is the ticket metadata recoverable from a filename alone.
type Meta struct {
	File            string
	Agent           string
	Priority        int
	Layer           models.Layer
	FingerprintHash string
	CreatedAt       time.Time
}

// List returns metadata for every ticket artifact in the store, skipping
// files from other producers and unparsable names.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read ticket dir: %w", err)
	}
	metas := []Meta{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		meta, ok := parseName(entry.Name())
		if !ok {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Existing returns the suppression view of the store: per ticket, the
// fingerprint hash and creation time from the filename plus the body for
// content matching.
func (s *Store) Existing() ([]dedup.ExistingTicket, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	existing := make([]dedup.ExistingTicket, 0, len(metas))
	for _, meta := range metas {
		body, err := os.ReadFile(filepath.Join(s.dir, meta.File))
		if err != nil {
			s.logger.Warn("unreadable ticket body", slog.String("file", meta.File), slog.Any("error", err))
			body = nil
		}
		existing = append(existing, dedup.ExistingTicket{
			FingerprintHash: meta.FingerprintHash,
			Body:            string(body),
			CreatedAt:       meta.CreatedAt,
		})
	}
	return existing, nil
}

// Cleanup removes tickets and markers older than the retention window.
// Returns the number of files removed.
func (s *Store) Cleanup(now time.Time, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read ticket dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		createdAt, ok := s.createdAt(entry.Name())
		if !ok {
			continue
		}
		if now.Sub(createdAt) <= retention {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("cleanup remove failed", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		removed++
	}
	return removed, nil
}

// createdAt recovers the creation time of either artifact kind. Tickets
// encode it in the name; markers carry it in their body.
func (s *Store) createdAt(name string) (time.Time, bool) {
	if meta, ok := parseName(name); ok {
		return meta.CreatedAt, true
	}
	if strings.HasPrefix(name, markerPrefix+"-") && strings.HasSuffix(name, ".json") {
		body, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return time.Time{}, false
		}
		var m marker
		if err := json.Unmarshal(body, &m); err != nil || m.CreatedAt.IsZero() {
			return time.Time{}, false
		}
		return m.CreatedAt, true
	}
	return time.Time{}, false
}

// parseName decodes heal-<agent>-p<priority>-<layer>-<unixts>-<hash>.json.
// The agent may itself contain dashes, so fixed fields parse from the end.
func parseName(name string) (Meta, bool) {
	if !strings.HasPrefix(name, filePrefix+"-") || !strings.HasSuffix(name, ".json") {
		return Meta{}, false
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix+"-"), ".json")
	parts := strings.Split(trimmed, "-")
	if len(parts) < 5 {
		return Meta{}, false
	}

	hash := parts[len(parts)-1]
	ts, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return Meta{}, false
	}
	layer := models.Layer(parts[len(parts)-3])
	if !layer.Valid() {
		return Meta{}, false
	}
	priorityField := parts[len(parts)-4]
	if !strings.HasPrefix(priorityField, "p") {
		return Meta{}, false
	}
	priority, err := strconv.Atoi(strings.TrimPrefix(priorityField, "p"))
	if err != nil {
		return Meta{}, false
	}

	return Meta{
		File:            name,
		Agent:           strings.Join(parts[:len(parts)-4], "-"),
		Priority:        priority,
		Layer:           layer,
		FingerprintHash: hash,
		CreatedAt:       time.Unix(ts, 0).UTC(),
	}, true
}
