package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"myhome-publisher/browser"
	"myhome-publisher/config"
	"myhome-publisher/models"
	"myhome-publisher/storage"
	"myhome-publisher/utils"
)

// Submitter fills and publishes the form for one listing.
type Submitter interface {
	Submit(ctx context.Context, page browser.Page, listing *models.Listing, photos []string) error
}

// BatchRunner walks a directory of listing folders and submits them one by
// one on a single page.
type BatchRunner struct {
	cfg        *config.Config
	logger     *utils.Logger
	page       browser.Page
	loader     storage.DescriptorSource
	normalizer *Normalizer
	submitter  Submitter
	pacer      *utils.Pacer
}

// NewBatchRunner wires a runner around the session page.
func NewBatchRunner(cfg *config.Config, logger *utils.Logger, page browser.Page,
	loader storage.DescriptorSource, submitter Submitter) *BatchRunner {
	return &BatchRunner{
		cfg:        cfg,
		logger:     logger,
		page:       page,
		loader:     loader,
		normalizer: NewNormalizer(logger),
		submitter:  submitter,
		pacer:      utils.NewPacer(cfg.RateLimitMs),
	}
}

// Run submits every listing folder directly under root, in name order.
//
// A listing that keeps timing out is abandoned after the retry budget and the
// batch moves on. Any other failure stops the batch and is returned. Either
// way the page ends on the overview URL, and the summary holds every result
// recorded so far.
func (b *BatchRunner) Run(ctx context.Context, root string) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		RunID:     uuid.NewString(),
		Root:      root,
		StartedAt: time.Now(),
	}
	logger := b.logger.With("run", summary.RunID)
	logger.Info("[batch] Publishing listings from %s", root)

	err := b.traverse(ctx, logger, root, summary)
	if err != nil {
		summary.Aborted = true
		logger.Error("[batch] Aborted: %v", err)
	}

	if navErr := b.page.Navigate(ctx, b.cfg.OverviewURL); navErr != nil {
		logger.Warn("[batch] Could not open the overview page: %v", navErr)
	}

	summary.FinishedAt = time.Now()
	logger.Info("[batch] Done in %v: %d published, %d abandoned, %d skipped, %d failed",
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond),
		summary.Count(models.StatusPublished), summary.Count(models.StatusAbandoned),
		summary.Count(models.StatusSkipped), summary.Count(models.StatusFailed))
	return summary, err
}

func (b *BatchRunner) traverse(ctx context.Context, logger *utils.Logger, root string, summary *models.RunSummary) error {
	if err := b.openForm(ctx, true); err != nil {
		return err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("batch: read %s: %w", root, err)
	}

	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		result, err := b.process(ctx, logger, summary.RunID, dir)
		summary.Results = append(summary.Results, result)
		if err != nil {
			return err
		}
		if result.Status == models.StatusSkipped {
			continue
		}
		if err := b.openForm(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

// process submits one folder. A non-nil error means the batch must stop.
func (b *BatchRunner) process(ctx context.Context, logger *utils.Logger, runID, dir string) (*models.SubmissionResult, error) {
	name := filepath.Base(dir)
	result := &models.SubmissionResult{
		RunID:     runID,
		Folder:    name,
		StartedAt: time.Now(),
	}
	finish := func(status models.Status, err error) {
		result.Status = status
		result.FinishedAt = time.Now()
		if err != nil {
			result.Error = err.Error()
		}
	}

	listing, err := b.load(dir)
	if err != nil {
		if b.cfg.DescriptorPolicy == config.DescriptorSkip {
			logger.Warn("[batch] Skipping %s: %v", name, err)
			finish(models.StatusSkipped, err)
			return result, nil
		}
		finish(models.StatusFailed, err)
		return result, err
	}
	result.ProductID = listing.ProductID
	result.Address = listing.Address

	photos, err := storage.ListPhotos(dir, b.cfg.PhotoExtensions)
	if err != nil {
		logger.Warn("[batch] %s: no photos: %v", name, err)
	}
	if b.cfg.MaxPhotos > 0 && len(photos) > b.cfg.MaxPhotos {
		photos = photos[:b.cfg.MaxPhotos]
	}
	result.Photos = len(photos)

	logger.Info("[batch] Processing %s: %s, %d rooms, %s m2, $%s, %d photos",
		name, listing.Address, listing.Rooms, listing.Area, listing.PriceUSD, len(photos))

	if err := b.pacer.Wait(ctx); err != nil {
		finish(models.StatusFailed, err)
		return result, err
	}

	retry := &utils.RetryConfig{
		MaxAttempts: b.cfg.MaxRetries + 1,
		BaseDelay:   time.Duration(b.cfg.RetryDelayMs) * time.Millisecond,
		Logger:      logger,
		Retryable:   browser.IsTimeout,
		BeforeRetry: func(ctx context.Context, attempt int) error {
			logger.Info("[batch] %s: attempt %d, reloading the form", name, attempt)
			return b.page.Navigate(ctx, b.cfg.FormURL)
		},
	}
	attempts, err := retry.Do(ctx, "submit "+name, func(ctx context.Context) error {
		return b.submitter.Submit(ctx, b.page, listing, photos)
	})
	result.Attempts = attempts

	switch {
	case err == nil:
		finish(models.StatusPublished, nil)
	case browser.IsTimeout(err) && ctx.Err() == nil:
		logger.Error("[batch] Giving up on %s after %d attempts: %v", name, attempts, err)
		finish(models.StatusAbandoned, err)
	default:
		finish(models.StatusFailed, err)
		return result, fmt.Errorf("batch: %s: %w", name, err)
	}
	return result, nil
}

// load reads and normalizes the descriptor of one folder.
func (b *BatchRunner) load(dir string) (*models.Listing, error) {
	raw, err := b.loader.Load(dir)
	if err != nil {
		return nil, err
	}
	return b.normalizer.Normalize(filepath.Base(dir), raw)
}

// openForm puts the page back on the empty form. With onlyIfAway set it
// leaves a page that already shows the form alone.
func (b *BatchRunner) openForm(ctx context.Context, onlyIfAway bool) error {
	if onlyIfAway {
		current, err := b.page.URL(ctx)
		if err != nil {
			return fmt.Errorf("batch: %w", err)
		}
		if current == b.cfg.FormURL {
			return nil
		}
	}
	if err := b.page.Navigate(ctx, b.cfg.FormURL); err != nil {
		return fmt.Errorf("batch: open form: %w", err)
	}
	return nil
}

// IsDescriptorError reports whether err came from a broken descriptor.
func IsDescriptorError(err error) bool {
	return errors.Is(err, storage.ErrDescriptor)
}
