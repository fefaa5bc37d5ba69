package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coin-price-etl/config"
	"coin-price-etl/models"
	"coin-price-etl/services"
	"coin-price-etl/storage"
	"coin-price-etl/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		ScrapeInterval:   time.Minute,
		ExtractTimeout:   2 * time.Second,
		TransformTimeout: 2 * time.Second,
	}
}

func rawItems(n int) []*models.RawItem {
	items := make([]*models.RawItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, &models.RawItem{
			Title:    fmt.Sprintf("Coin %d", i),
			RawPrice: fmt.Sprintf("€%d0,00", i+1),
			Metal:    "Silver",
			Link:     fmt.Sprintf("https://example.com/coins/%d", i),
		})
	}
	return items
}

// fakeExtractor counts invocations and tracks concurrent in-flight calls.
type fakeExtractor struct {
	mu          sync.Mutex
	items       []*models.RawItem
	err         error
	delay       time.Duration
	calls       int32
	inFlight    int32
	maxInFlight int32
}

func (f *fakeExtractor) Extract(ctx context.Context) ([]*models.RawItem, error) {
	atomic.AddInt32(&f.calls, 1)
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// countingTransformer wraps the real stats service and counts invocations.
type countingTransformer struct {
	inner *services.StatsService
	calls int32
	err   error
}

func (c *countingTransformer) Transform(ctx context.Context, date string, products []*models.Product) ([]*models.Stats, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Transform(ctx, date, products)
}

// failingStore wraps a Store and injects unavailability per operation.
type failingStore struct {
	storage.Store
	failAppendRaw   bool
	failAppendStats bool
}

func (f *failingStore) AppendRaw(ctx context.Context, products []*models.Product) (*storage.AppendReport, error) {
	if f.failAppendRaw {
		return nil, fmt.Errorf("%w: injected", models.ErrStoreUnavailable)
	}
	return f.Store.AppendRaw(ctx, products)
}

func (f *failingStore) AppendStats(ctx context.Context, st *models.Stats) error {
	if f.failAppendStats {
		return fmt.Errorf("%w: injected", models.ErrStoreUnavailable)
	}
	return f.Store.AppendStats(ctx, st)
}

func newTestPipeline(extractor Extractor, store storage.Store) (*Pipeline, *countingTransformer, *Snapshot) {
	logger := utils.NewLogger()
	snapshot := NewSnapshot()
	transformer := &countingTransformer{inner: services.NewStatsService(logger)}
	p := New(testConfig(), logger, store, extractor, transformer, snapshot)
	return p, transformer, snapshot
}

func TestCycleSuccess(t *testing.T) {
	store := storage.NewMemoryStore()
	p, transformer, snapshot := newTestPipeline(&fakeExtractor{items: rawItems(3)}, store)

	result := p.RunCycle(context.Background())
	if result.Status != models.CycleSuccess {
		t.Fatalf("status: got %s (%v), want success", result.Status, result.Err)
	}
	if result.Failed() {
		t.Error("a successful cycle must not report as failed")
	}
	if result.Persisted != 3 {
		t.Errorf("persisted: got %d, want 3", result.Persisted)
	}
	if result.StatsWritten == 0 {
		t.Error("expected stats records to be written")
	}
	if transformer.calls != 1 {
		t.Errorf("transform calls: got %d, want 1", transformer.calls)
	}
	if len(snapshot.Get()) != 3 {
		t.Errorf("snapshot: got %d products, want 3", len(snapshot.Get()))
	}

	all, _ := store.AllRaw(context.Background())
	if len(all) != 3 {
		t.Errorf("store: got %d products, want 3", len(all))
	}
}

func TestCyclesAccumulateSameDate(t *testing.T) {
	store := storage.NewMemoryStore()
	p, _, _ := newTestPipeline(&fakeExtractor{items: rawItems(3)}, store)

	p.RunCycle(context.Background())
	first, _ := store.AllRaw(context.Background())

	result := p.RunCycle(context.Background())
	if result.Status != models.CycleSuccess {
		t.Fatalf("second cycle failed: %v", result.Err)
	}

	second, _ := store.AllRaw(context.Background())
	if len(second) != len(first)+3 {
		t.Fatalf("records must accumulate: %d then %d", len(first), len(second))
	}
	ids := make(map[string]bool)
	for _, prod := range second {
		ids[prod.ProductID] = true
	}
	for _, prod := range first {
		if !ids[prod.ProductID] {
			t.Errorf("record %s from cycle 1 lost after cycle 2", prod.ProductID)
		}
	}
}

func TestOverlappingTriggerDropped(t *testing.T) {
	extractor := &fakeExtractor{items: rawItems(1), delay: 300 * time.Millisecond}
	p, _, _ := newTestPipeline(extractor, storage.NewMemoryStore())

	done := make(chan models.CycleResult, 1)
	go func() { done <- p.RunCycle(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	second := p.RunCycle(context.Background())
	if second.Status != models.CycleSkipped {
		t.Errorf("overlapping trigger: got %s, want skipped", second.Status)
	}
	if second.Failed() {
		t.Error("a dropped trigger is not a failure")
	}

	first := <-done
	if first.Status != models.CycleSuccess {
		t.Fatalf("first cycle: got %s (%v)", first.Status, first.Err)
	}
	if extractor.maxInFlight > 1 {
		t.Errorf("extraction ran %d times concurrently", extractor.maxInFlight)
	}
	if extractor.calls != 1 {
		t.Errorf("extract calls: got %d, want 1 (dropped trigger must not extract)", extractor.calls)
	}
}

func TestExtractionFailureIsTotal(t *testing.T) {
	store := storage.NewMemoryStore()
	extractor := &fakeExtractor{err: errors.New("selector not found")}
	p, transformer, _ := newTestPipeline(extractor, store)

	result := p.RunCycle(context.Background())
	if result.Status != models.CycleTotalFailure {
		t.Fatalf("status: got %s, want total_failure", result.Status)
	}
	if result.Phase != models.PhaseExtraction {
		t.Errorf("phase: got %q, want extraction", result.Phase)
	}
	if !result.Failed() {
		t.Error("a total failure must report as failed")
	}

	all, _ := store.AllRaw(context.Background())
	if len(all) != 0 {
		t.Errorf("nothing may be persisted on extraction failure, got %d", len(all))
	}
	if transformer.calls != 0 {
		t.Error("transform must not run after extraction failure")
	}

	// Scheduler keeps going: the next trigger succeeds once the source recovers.
	extractor.mu.Lock()
	extractor.err = nil
	extractor.items = rawItems(2)
	extractor.mu.Unlock()
	if r := p.RunCycle(context.Background()); r.Status != models.CycleSuccess {
		t.Errorf("recovered cycle: got %s (%v)", r.Status, r.Err)
	}
}

func TestExtractionTimeoutIsTotal(t *testing.T) {
	store := storage.NewMemoryStore()
	extractor := &fakeExtractor{items: rawItems(1), delay: time.Hour}
	logger := utils.NewLogger()
	cfg := testConfig()
	cfg.ExtractTimeout = 50 * time.Millisecond
	p := New(cfg, logger, store, extractor, &countingTransformer{inner: services.NewStatsService(logger)}, NewSnapshot())

	result := p.RunCycle(context.Background())
	if result.Status != models.CycleTotalFailure || result.Phase != models.PhaseExtraction {
		t.Fatalf("got %s/%s, want total_failure/extraction", result.Status, result.Phase)
	}
	all, _ := store.AllRaw(context.Background())
	if len(all) != 0 {
		t.Errorf("store must stay unchanged on timeout, got %d records", len(all))
	}
}

func TestPersistFailureIsPartial(t *testing.T) {
	store := &failingStore{Store: storage.NewMemoryStore(), failAppendRaw: true}
	p, transformer, _ := newTestPipeline(&fakeExtractor{items: rawItems(2)}, store)

	result := p.RunCycle(context.Background())
	if result.Status != models.CyclePartialFailure || result.Phase != models.PhasePersist {
		t.Fatalf("got %s/%s, want partial_failure/persist", result.Status, result.Phase)
	}
	if !result.Failed() {
		t.Error("a partial failure must report as failed")
	}
	if transformer.calls != 0 {
		t.Error("transform must not run when persistence failed")
	}
}

func TestTransformFailureKeepsRawRecords(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := utils.NewLogger()
	transformer := &countingTransformer{err: errors.New("stats step crashed")}
	p := New(testConfig(), logger, store, &fakeExtractor{items: rawItems(2)}, transformer, NewSnapshot())

	result := p.RunCycle(context.Background())
	if result.Status != models.CyclePartialFailure || result.Phase != models.PhaseTransform {
		t.Fatalf("got %s/%s, want partial_failure/transform", result.Status, result.Phase)
	}

	all, _ := store.AllRaw(context.Background())
	if len(all) != 2 {
		t.Errorf("raw records must not be rolled back, got %d", len(all))
	}
	stats, _ := store.AllStats(context.Background())
	if len(stats) != 0 {
		t.Errorf("no stats may be written, got %d", len(stats))
	}
}

func TestLoadFailureIsPartial(t *testing.T) {
	store := &failingStore{Store: storage.NewMemoryStore(), failAppendStats: true}
	p, _, _ := newTestPipeline(&fakeExtractor{items: rawItems(2)}, store)

	result := p.RunCycle(context.Background())
	if result.Status != models.CyclePartialFailure || result.Phase != models.PhaseLoad {
		t.Fatalf("got %s/%s, want partial_failure/load", result.Status, result.Phase)
	}
	all, _ := store.AllRaw(context.Background())
	if len(all) != 2 {
		t.Errorf("raw records must survive a load failure, got %d", len(all))
	}
}

func TestZeroRecordCycleSkipsTransform(t *testing.T) {
	store := storage.NewMemoryStore()
	p, transformer, snapshot := newTestPipeline(&fakeExtractor{items: nil}, store)

	result := p.RunCycle(context.Background())
	if result.Status != models.CycleSuccess {
		t.Fatalf("empty extraction must still be a success, got %s (%v)", result.Status, result.Err)
	}
	if transformer.calls != 0 {
		t.Error("transform must be skipped for a zero-record cycle")
	}
	if result.StatsWritten != 0 {
		t.Errorf("stats written: got %d, want 0", result.StatsWritten)
	}
	if len(snapshot.Get()) != 0 {
		t.Errorf("snapshot should be replaced with the empty result, got %d", len(snapshot.Get()))
	}
}

func TestSnapshotSwapNotMutate(t *testing.T) {
	s := NewSnapshot()
	first := s.Get()

	s.Replace([]*models.Product{{ProductID: "p1", Title: "A"}})
	if len(first) != 0 {
		t.Error("a published snapshot slice must never be mutated")
	}
	if len(s.Get()) != 1 {
		t.Errorf("snapshot after replace: got %d, want 1", len(s.Get()))
	}

	s.Merge([]*models.Product{{ProductID: "p2", Title: "B"}})
	if len(s.Get()) != 2 {
		t.Errorf("snapshot after merge: got %d, want 2", len(s.Get()))
	}
}
