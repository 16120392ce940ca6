package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracewire/inventorygraph/checkpoint"
)

// DeltaUpdate re-ingests the named files: their entities are removed from the
// graph first (citations from other files survive), then the files are
// processed again. Entities whose ids are stable across runs merge back in
// instead of duplicating.
func (p *Pipeline) DeltaUpdate(ctx context.Context, paths []string, opts RunOptions) (*Result, error) {
	if len(paths) == 0 {
		return nil, errors.New("delta update needs at least one file path")
	}

	p.mu.Lock()
	removed := 0
	for _, path := range paths {
		removed += p.graph.RemoveEntitiesByFile(path)
	}
	p.mu.Unlock()
	p.logger.Info("delta update: removed %d entities for %d files", removed, len(paths))

	if p.store != nil {
		cp, err := p.store.Load(ctx, p.source.Name())
		switch {
		case err == nil:
			for _, path := range paths {
				cp.ClearProcessed(path)
				cp.ClearFailure(path)
			}
			cp.Touch()
			if err := p.store.Save(ctx, cp); err != nil {
				return nil, fmt.Errorf("failed to save checkpoint: %w", err)
			}
		case !errors.Is(err, checkpoint.ErrNotFound):
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
	}

	opts.Whitelist = paths
	return p.Run(ctx, opts)
}

// Retry re-runs only the files that failed in the last run. Files at the
// attempt ceiling are refused unless opts.Force is set.
func (p *Pipeline) Retry(ctx context.Context, opts RunOptions) (*Result, error) {
	if p.store == nil {
		return nil, errors.New("retry requires a checkpoint store")
	}

	cp, err := p.store.Load(ctx, p.source.Name())
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, fmt.Errorf("nothing to retry: %w", err)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if len(cp.FailedFiles) == 0 {
		return nil, errors.New("nothing to retry: no failed files recorded")
	}

	var eligible []string
	for _, f := range cp.FailedFiles {
		if opts.Force || f.Attempts < p.maxAttempts {
			eligible = append(eligible, f.FilePath)
		}
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("all failed files reached the attempt ceiling, retry with force: %s",
			describeFailures(cp.FailedFiles))
	}

	// Reopen the run so Run resumes it instead of starting fresh.
	cp.Completed = false
	cp.Touch()
	if err := p.store.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	opts.Whitelist = eligible
	return p.Run(ctx, opts)
}

// Status returns the stored checkpoint for this pipeline's source.
func (p *Pipeline) Status(ctx context.Context) (*checkpoint.Checkpoint, error) {
	if p.store == nil {
		return nil, errors.New("no checkpoint store configured")
	}
	return p.store.Load(ctx, p.source.Name())
}

// Reset discards the stored checkpoint so the next run re-ingests every
// document from scratch. Graph contents are untouched; callers that also
// want the extracted entities gone purge them by source toolkit first.
func (p *Pipeline) Reset(ctx context.Context) error {
	if p.store == nil {
		return errors.New("no checkpoint store configured")
	}
	if err := p.store.Delete(ctx, p.source.Name()); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	p.logger.Info("checkpoint for source %q reset", p.source.Name())
	return nil
}
