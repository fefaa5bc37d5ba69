package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"coin-price-etl/config"
	"coin-price-etl/models"
	"coin-price-etl/services"
	"coin-price-etl/storage"
	"coin-price-etl/utils"
)

// Extractor is the extraction adapter boundary: one invocation returns the
// raw items currently visible at the source, or fails.
type Extractor interface {
	Extract(ctx context.Context) ([]*models.RawItem, error)
}

// Transformer is the transform adapter boundary: one day's persisted
// products in, derived stats records out.
type Transformer interface {
	Transform(ctx context.Context, date string, products []*models.Product) ([]*models.Stats, error)
}

// Pipeline drives the periodic extract→transform→load cycle. Cycles never
// overlap: a trigger that fires while one is in flight is dropped.
type Pipeline struct {
	cfg         *config.Config
	logger      *utils.Logger
	store       storage.Store
	extractor   Extractor
	cleaner     *services.Cleaner
	transformer Transformer
	snapshot    *Snapshot

	inFlight atomic.Bool
	now      func() time.Time
}

// New creates a Pipeline wired to the given collaborators.
func New(cfg *config.Config, logger *utils.Logger, store storage.Store, extractor Extractor, transformer Transformer, snapshot *Snapshot) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		extractor:   extractor,
		cleaner:     services.NewCleaner(logger),
		transformer: transformer,
		snapshot:    snapshot,
		now:         time.Now,
	}
}

// Run fires one immediate cycle, then one per ScrapeInterval until ctx is
// canceled. A failed cycle never stops the schedule.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("[pipeline] Scheduler started — interval %s", p.cfg.ScrapeInterval)

	p.report(p.RunCycle(ctx))

	ticker := time.NewTicker(p.cfg.ScrapeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("[pipeline] Scheduler stopped")
			return
		case <-ticker.C:
			p.report(p.RunCycle(ctx))
		}
	}
}

// RunCycle executes one extract→transform→load attempt. Extraction failure
// aborts the cycle with nothing persisted; transform/load failures leave the
// already-persisted raw records in place.
func (p *Pipeline) RunCycle(ctx context.Context) (result models.CycleResult) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Warn("[pipeline] Cycle still running — dropping trigger")
		return models.CycleResult{Status: models.CycleSkipped}
	}
	defer p.inFlight.Store(false)

	start := p.now()
	date := start.Format(models.DateFormat)
	result = models.CycleResult{Status: models.CycleSuccess}
	defer func() { result.Duration = time.Since(start) }()

	extractCtx, cancelExtract := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	raw, err := p.extractor.Extract(extractCtx)
	cancelExtract()
	if err != nil {
		result.Status = models.CycleTotalFailure
		result.Phase = models.PhaseExtraction
		result.Err = err
		return result
	}
	result.Extracted = len(raw)

	products, rejected := p.cleaner.Clean(date, raw)
	result.Rejected = len(rejected)
	p.snapshot.Replace(products)

	// Zero-record policy: a cycle that extracts nothing usable completes as
	// a success and skips the transform step entirely.
	if len(products) == 0 {
		p.logger.Info("[pipeline] No usable records this cycle — transform skipped")
		return result
	}

	report, err := p.store.AppendRaw(ctx, products)
	if report != nil {
		result.Persisted = report.Written
		result.Rejected += len(report.Rejected)
	}
	if err != nil {
		result.Status = models.CyclePartialFailure
		result.Phase = models.PhasePersist
		result.Err = err
		return result
	}

	transformCtx, cancelTransform := context.WithTimeout(ctx, p.cfg.TransformTimeout)
	defer cancelTransform()

	// Transform works off the persisted day partition, not the snapshot, so
	// it also covers records from earlier cycles on the same date.
	dayProducts, err := p.store.RawByDate(transformCtx, date)
	if err != nil {
		result.Status = models.CyclePartialFailure
		result.Phase = models.PhaseTransform
		result.Err = err
		return result
	}

	statsRecords, err := p.transformer.Transform(transformCtx, date, dayProducts)
	if err != nil {
		result.Status = models.CyclePartialFailure
		result.Phase = models.PhaseTransform
		result.Err = err
		return result
	}

	for _, st := range statsRecords {
		if err := p.store.AppendStats(transformCtx, st); err != nil {
			result.Status = models.CyclePartialFailure
			result.Phase = models.PhaseLoad
			result.Err = err
			return result
		}
		result.StatsWritten++
	}

	return result
}

func (p *Pipeline) report(r models.CycleResult) {
	if r.Failed() {
		p.logger.Error("[pipeline] Cycle %s at %s phase: %v", r.Status, r.Phase, r.Err)
		return
	}
	if r.Status == models.CycleSkipped {
		// already logged at drop time
		return
	}
	p.logger.Info("[pipeline] Cycle done in %s — extracted %d, persisted %d, rejected %d, stats %d",
		r.Duration, r.Extracted, r.Persisted, r.Rejected, r.StatsWritten)
}
