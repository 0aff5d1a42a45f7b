// Package pipeline coordinates the full ingestion run: walking search
// listings, fetching and classifying decision documents, deduplicating
// across categories, and persisting incremental progress.
package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fairclaim/fos-cli/internal/config"
	"github.com/fairclaim/fos-cli/internal/extractor"
	"github.com/fairclaim/fos-cli/internal/fetcher"
	"github.com/fairclaim/fos-cli/internal/model"
	"github.com/fairclaim/fos-cli/internal/output"
	"github.com/fairclaim/fos-cli/internal/store"
	"github.com/fairclaim/fos-cli/internal/walker"
)

// RunResult carries everything a completed (or partially completed)
// run produced.
type RunResult struct {
	RunID     string
	Decisions []model.ClassifiedDecision
	Stats     *model.RunStatistics
}

// Pipeline orchestrates walking, fetching, extraction, deduplication,
// and persistence across all configured search categories.
type Pipeline struct {
	cfg       *config.Config
	fetcher   fetcher.Fetcher
	walker    *walker.Walker
	extractor *extractor.Extractor
	store     store.Store
	writer    *output.Writer

	// Shared mutable run state; everything below mu is only touched
	// while holding it. The dedup set treats two documents with the
	// same reference as the same logical decision, whichever category
	// search surfaced them.
	mu            sync.Mutex
	seen          map[string]bool
	decisions     []model.ClassifiedDecision
	skipped       int
	fetchFailures int

	// flushMu serializes whole-file output rewrites; category workers
	// flush concurrently and the writer's temp-file path is shared.
	flushMu sync.Mutex
}

// New creates a Pipeline with explicit dependencies.
func New(
	cfg *config.Config,
	f fetcher.Fetcher,
	w *walker.Walker,
	ex *extractor.Extractor,
	st store.Store,
	out *output.Writer,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   f,
		walker:    w,
		extractor: ex,
		store:     st,
		writer:    out,
		seen:      make(map[string]bool),
	}
}

// Run executes the full pipeline over every configured category.
// Per-document and per-page failures are absorbed and counted; only
// store/writer failures and cancellation propagate. Partial results are
// flushed after every listing page, so an interrupted run keeps what it
// collected.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	run, err := p.store.CreateRun(ctx, p.cfg.Source.Categories)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return p.execute(ctx, run.ID, p.cfg.Source.Categories)
}

// Resume continues an interrupted run under its original ID. Decisions
// the earlier attempt persisted are loaded so outputs and statistics
// stay complete, and their references are skipped instead of refetched.
func (p *Pipeline) Resume(ctx context.Context, runID string) (*RunResult, error) {
	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resume %s", runID)
	}
	prior, err := p.store.ListDecisions(ctx, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resume %s", runID)
	}
	p.mu.Lock()
	p.decisions = append(p.decisions, prior...)
	p.mu.Unlock()

	categories := run.Categories
	if len(categories) == 0 {
		categories = p.cfg.Source.Categories
	}
	return p.execute(ctx, run.ID, categories)
}

func (p *Pipeline) execute(ctx context.Context, runID string, categories []string) (*RunResult, error) {
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: starting run",
		zap.Strings("categories", categories),
		zap.Int("max_pages", p.cfg.Source.MaxPagesPerCategory),
	)

	if err := p.store.UpdateRunStatus(ctx, runID, model.RunStatusWalking); err != nil {
		log.Warn("pipeline: failed to update status", zap.Error(err))
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)

	for _, category := range categories {
		g.Go(func() error {
			return p.runCategory(gCtx, runID, category)
		})
	}

	runErr := g.Wait()

	decisions := p.snapshot()
	skipped, fetchFailures := p.counts()
	stats := BuildStatistics(decisions, skipped, fetchFailures)
	result := &RunResult{RunID: runID, Decisions: decisions, Stats: stats}

	if runErr != nil {
		if err := p.store.UpdateRunStatus(context.WithoutCancel(ctx), runID, model.RunStatusFailed); err != nil {
			log.Warn("pipeline: failed to mark run failed", zap.Error(err))
		}
		return result, eris.Wrap(runErr, "pipeline: run")
	}

	if err := p.flush(decisions); err != nil {
		return result, err
	}
	if err := p.writer.WriteStatistics(stats); err != nil {
		return result, err
	}
	if err := p.store.CompleteRun(ctx, runID, stats); err != nil {
		log.Warn("pipeline: failed to complete run", zap.Error(err))
	}

	log.Info("pipeline: run complete",
		zap.Int("decisions", len(decisions)),
		zap.Int("skipped", stats.Skipped),
		zap.Int("fetch_failures", stats.FetchFailures),
	)
	return result, nil
}

// runCategory walks one category's listings and processes each page's
// documents. Progress is flushed after every page.
func (p *Pipeline) runCategory(ctx context.Context, runID, category string) error {
	log := zap.L().With(zap.String("category", category))

	err := p.walker.WalkPages(ctx, category, p.cfg.Source.MaxPagesPerCategory, func(page int, urls []string) error {
		p.processPage(ctx, runID, category, urls)

		// Whole-file overwrite per category keeps the on-disk state
		// consistent even if the run dies mid-page.
		if err := p.flush(p.snapshot()); err != nil {
			return err
		}
		log.Debug("pipeline: page processed", zap.Int("page", page), zap.Int("urls", len(urls)))
		return nil
	})
	if err != nil {
		return eris.Wrapf(err, "pipeline: category %s", category)
	}
	return nil
}

// processPage fetches and classifies one listing page's documents with
// bounded concurrent workers. Every failure mode here is local: fetch
// failures and unclassifiable documents are counted and skipped.
func (p *Pipeline) processPage(ctx context.Context, runID, category string, urls []string) {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.Workers)

	for _, docURL := range urls {
		if !p.claim(ctx, runID, walker.ReferenceFromURL(docURL)) {
			continue
		}
		g.Go(func() error {
			p.processDocument(gCtx, runID, category, docURL)
			return nil
		})
	}
	_ = g.Wait()
}

// processDocument runs fetch → parse → extract → persist for a single
// decision URL.
func (p *Pipeline) processDocument(ctx context.Context, runID, category, docURL string) {
	log := zap.L().With(zap.String("url", docURL), zap.String("category", category))

	html, err := p.fetcher.FetchPage(ctx, docURL)
	if err != nil {
		if fetcher.IsFetchFailure(err) {
			log.Warn("pipeline: document fetch failed, skipping", zap.Error(err))
			p.countFetchFailure()
			return
		}
		// Cancellation or a hard client error: nothing more to do for
		// this document.
		log.Debug("pipeline: document fetch aborted", zap.Error(err))
		return
	}

	raw := walker.ParseDocument(html, docURL, p.cfg.Source.Categories)
	if raw == nil {
		log.Debug("pipeline: document unparseable, skipping")
		p.countSkip()
		return
	}

	decision := p.extractor.Extract(raw)
	if decision == nil {
		log.Debug("pipeline: document too short to classify, skipping",
			zap.String("reference", raw.Reference),
		)
		p.countSkip()
		return
	}

	p.record(*decision)
	if err := p.store.SaveDecision(ctx, runID, decision); err != nil {
		log.Warn("pipeline: failed to persist decision",
			zap.String("reference", decision.Reference),
			zap.Error(err),
		)
	}
	log.Info("pipeline: classified decision",
		zap.String("reference", decision.Reference),
		zap.String("complaint_category", string(decision.ComplaintCategory)),
		zap.Float64("outcome_score", decision.OutcomeScore),
	)
}

// claim reserves a reference for processing. It returns false when the
// reference was already claimed by this run (by any category worker)
// or already persisted by an earlier attempt at it, so a decision
// discovered twice is fetched and recorded once. URLs without a
// parseable reference are always claimed: the reference is re-checked
// after the document itself is parsed.
func (p *Pipeline) claim(ctx context.Context, runID, reference string) bool {
	if reference == "" {
		return true
	}
	p.mu.Lock()
	if p.seen[reference] {
		p.mu.Unlock()
		return false
	}
	// Marked before the store lookup so a concurrent claim of the same
	// reference settles here, not on the query.
	p.seen[reference] = true
	p.mu.Unlock()

	stored, err := p.store.HasReference(ctx, runID, reference)
	if err != nil {
		zap.L().Debug("pipeline: stored reference lookup failed",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return true
	}
	return !stored
}

// record appends a decision, dropping it if its reference was already
// recorded (covers documents whose reference only became known after
// parsing the page body).
func (p *Pipeline) record(d model.ClassifiedDecision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.decisions {
		if existing.Reference == d.Reference {
			return
		}
	}
	p.seen[d.Reference] = true
	p.decisions = append(p.decisions, d)
}

func (p *Pipeline) countSkip() {
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()
}

func (p *Pipeline) countFetchFailure() {
	p.mu.Lock()
	p.fetchFailures++
	p.mu.Unlock()
}

// snapshot copies the collected decisions for flushing without holding
// the lock across file writes.
func (p *Pipeline) snapshot() []model.ClassifiedDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ClassifiedDecision, len(p.decisions))
	copy(out, p.decisions)
	return out
}

// counts returns (skipped, fetchFailures).
func (p *Pipeline) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped, p.fetchFailures
}

// flush rewrites the per-category and upheld output files.
func (p *Pipeline) flush(decisions []model.ClassifiedDecision) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	if err := p.writer.WriteCategories(decisions); err != nil {
		return err
	}
	return p.writer.WriteUpheld(decisions)
}
