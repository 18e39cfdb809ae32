package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/services"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSource) FetchLatest(ctx context.Context) (models.HealthSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.HealthSnapshot{}, f.err
	}
	f.calls++
	return models.HealthSnapshot{
		Timestamp:    time.Now().UTC(),
		OverallScore: 90,
	}, nil
}

type fakeRunner struct {
	mu         sync.Mutex
	cycles     int
	cleanups   int
	windowLens []int
	cleanupErr error
	block      chan struct{}
}

func (f *fakeRunner) RunCycle(ctx context.Context, snapshot models.HealthSnapshot, history []models.HealthSnapshot) services.CycleReport {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles++
	f.windowLens = append(f.windowLens, len(history))
	return services.CycleReport{SnapshotID: snapshot.Timestamp.Format(time.RFC3339)}
}

func (f *fakeRunner) Cleanup(now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
	return 0, f.cleanupErr
}

func TestHealthCycleTrimsHistoryWindow(t *testing.T) {
	source := &fakeSource{}
	runner := &fakeRunner{}
	o := New(nil, source, runner, Options{MaxHistory: 2})

	for i := 0; i < 3; i++ {
		if !o.RunHealthCycle(context.Background()) {
			t.Fatalf("cycle %d did not run", i)
		}
	}

	if o.HistoryLen() != 2 {
		t.Fatalf("HistoryLen = %d, want 2", o.HistoryLen())
	}
	want := []int{1, 2, 2}
	for i, n := range runner.windowLens {
		if n != want[i] {
			t.Fatalf("window %d had %d snapshots, want %d", i, n, want[i])
		}
	}
}

func TestSeedPreloadsWindow(t *testing.T) {
	o := New(nil, &fakeSource{}, &fakeRunner{}, Options{MaxHistory: 2})

	o.Seed([]models.HealthSnapshot{
		{OverallScore: 80},
		{OverallScore: 85},
		{OverallScore: 90},
	})
	if o.HistoryLen() != 2 {
		t.Fatalf("HistoryLen = %d, want 2", o.HistoryLen())
	}
}

func TestHealthCyclesDoNotOverlap(t *testing.T) {
	source := &fakeSource{}
	runner := &fakeRunner{block: make(chan struct{})}
	o := New(nil, source, runner, Options{})

	done := make(chan bool)
	go func() { done <- o.RunHealthCycle(context.Background()) }()

	// Wait until the first cycle is inside RunCycle, then try a second.
	deadline := time.After(time.Second)
	for !o.healthBusy.Load() {
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if o.RunHealthCycle(context.Background()) {
		t.Fatal("overlapping health cycle was allowed")
	}

	close(runner.block)
	if !<-done {
		t.Fatal("first cycle reported failure")
	}
}

func TestFetchFailureSkipsCycle(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	runner := &fakeRunner{}
	o := New(nil, source, runner, Options{})

	if o.RunHealthCycle(context.Background()) {
		t.Fatal("cycle reported success despite fetch failure")
	}
	if runner.cycles != 0 {
		t.Fatalf("runner ran %d cycles, want 0", runner.cycles)
	}
}

func TestCleanupCycle(t *testing.T) {
	runner := &fakeRunner{}
	o := New(nil, &fakeSource{}, runner, Options{})

	if !o.RunCleanupCycle() {
		t.Fatal("cleanup did not run")
	}
	if runner.cleanups != 1 {
		t.Fatalf("cleanups = %d, want 1", runner.cleanups)
	}

	runner.cleanupErr = errors.New("disk gone")
	if o.RunCleanupCycle() {
		t.Fatal("cleanup reported success despite error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &fakeSource{}
	runner := &fakeRunner{}
	o := New(nil, source, runner, Options{
		HealthInterval:  10 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(stopped)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.cycles < 2 {
		t.Fatalf("cycles = %d, want at least 2", runner.cycles)
	}
	if runner.cleanups < 1 {
		t.Fatalf("cleanups = %d, want at least 1", runner.cleanups)
	}
}
