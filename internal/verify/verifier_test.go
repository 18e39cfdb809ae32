package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelstack/sentinel-heal/internal/models"
)

type fakeHistory struct {
	commits int
	err     error
}

func (f fakeHistory) RecentCommits(ctx context.Context, pathHint string, window time.Duration) (int, error) {
	return f.commits, f.err
}

func TestProjectVerifierConfirmsMissingFile(t *testing.T) {
	root := t.TempDir()
	wc := WorkingContext{Root: root, History: fakeHistory{commits: 2}}

	v := NewProjectVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "build",
		Description: "compile failed: src/widget.ts not found",
	}, wc)

	require.True(t, out.Verified)
	assert.Greater(t, out.Confidence, float64(0))
	assert.LessOrEqual(t, out.Confidence, float64(100))

	confirmed := false
	for _, item := range out.Evidence {
		if item.Check == "referenced-file-missing" && item.Passed {
			confirmed = true
		}
	}
	assert.True(t, confirmed, "missing file claim should be confirmed")
}

func TestProjectVerifierRefutesPresentFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "widget.ts"), []byte("ok"), 0o644))

	v := NewProjectVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "build",
		Description: "compile failed: src/widget.ts not found",
	}, WorkingContext{Root: root})

	for _, item := range out.Evidence {
		if item.Check == "referenced-file-missing" {
			assert.False(t, item.Passed, "present file must refute the claim")
		}
	}
}

func TestProjectVerifierDependencyClaim(t *testing.T) {
	root := t.TempDir()
	v := NewProjectVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "dependencies",
		Description: "Cannot find module 'leftpad'",
	}, WorkingContext{Root: root})

	require.True(t, out.Verified)
	found := false
	for _, item := range out.Evidence {
		if item.Check == "dependency-tree-incomplete" {
			found = true
			assert.True(t, item.Passed)
		}
	}
	assert.True(t, found)
}

func TestProjectVerifierNothingFalsifiable(t *testing.T) {
	v := NewProjectVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "misc",
		Description: "something feels slow",
	}, WorkingContext{Root: t.TempDir()})
	assert.False(t, out.Verified)
}

func TestPreferenceVerifierConflict(t *testing.T) {
	prefs := MapPreferenceStore{"indent": "tabs", "quotes": "single"}
	v := NewPreferenceVerifier(nil)

	out := v.Verify(context.Background(), models.Issue{
		Component:   "conventions",
		Description: "detected indent style spaces conflicts with configuration",
	}, WorkingContext{Root: t.TempDir(), Prefs: prefs})

	require.True(t, out.Verified)
	conflict := false
	for _, item := range out.Evidence {
		if item.Check == "preference-conflict" && item.Passed {
			conflict = true
		}
	}
	assert.True(t, conflict)
}

func TestPreferenceVerifierNoStore(t *testing.T) {
	v := NewPreferenceVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{Component: "conventions"}, WorkingContext{})
	assert.False(t, out.Verified)
}

func TestFrameworkVerifierMissingInstall(t *testing.T) {
	v := NewFrameworkVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "core",
		Description: "hook manifest hooks.json unreadable",
	}, WorkingContext{Root: t.TempDir(), History: fakeHistory{commits: 1}})

	// Install dir absent confirms an install-corruption claim.
	require.True(t, out.Verified)
	assert.GreaterOrEqual(t, out.Confidence, float64(0))
	assert.LessOrEqual(t, out.Confidence, float64(100))
}

func TestFrameworkVerifierHealthyInstallRefutes(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".sentinel")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"hooks":[]}`), 0o644))

	v := NewFrameworkVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "core",
		Description: "hook registry corrupt",
	}, WorkingContext{Root: root, History: fakeHistory{commits: 0}})

	// Install dir present and the manifest parses; nothing confirms the
	// corruption claim.
	require.False(t, out.Verified)
	assert.Zero(t, out.Confidence)
	for _, item := range out.Evidence {
		assert.False(t, item.Passed, "check %s confirmed against a healthy install", item.Check)
	}
}

func TestFrameworkVerifierCorruptManifest(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".sentinel")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{not json"), 0o644))

	v := NewFrameworkVerifier(nil)
	out := v.Verify(context.Background(), models.Issue{
		Component:   "core",
		Description: "hook registry corrupt",
	}, WorkingContext{Root: root, History: fakeHistory{commits: 0}})

	require.True(t, out.Verified)
	confirmed := false
	for _, item := range out.Evidence {
		if item.Check == "manifest-missing-or-invalid" && item.Passed {
			confirmed = true
		}
	}
	assert.True(t, confirmed)
}

func TestVerifierRecoversFromPanics(t *testing.T) {
	out := safeVerify(context.Background(), WorkingContext{}, func(ctx context.Context) models.VerificationOutcome {
		panic("detector exploded")
	})
	assert.False(t, out.Verified)
	require.Len(t, out.Evidence, 1)
	assert.Equal(t, "verifier-panic", out.Evidence[0].Check)
}

func TestLoadPreferencesMissingFile(t *testing.T) {
	store, err := LoadPreferences(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, store.Keys())
}

func TestLoadPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indent: tabs\nquotes: single\n"), 0o644))

	store, err := LoadPreferences(path)
	require.NoError(t, err)
	v, ok := store.Get("indent")
	require.True(t, ok)
	assert.Equal(t, "tabs", v)
	assert.Equal(t, []string{"indent", "quotes"}, store.Keys())
}
