package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myhome-publisher/browser"
	"myhome-publisher/browser/browsertest"
	"myhome-publisher/config"
	"myhome-publisher/models"
	"myhome-publisher/publisher/myhome"
	"myhome-publisher/storage"
)

const (
	formURL     = "https://form.test/create"
	overviewURL = "https://overview.test/my"
)

func batchConfig() *config.Config {
	return &config.Config{
		FormURL:          formURL,
		OverviewURL:      overviewURL,
		City:             "Tbilisi",
		DescriptorFile:   "info.txt",
		MaxRetries:       3,
		MaxPhotos:        12,
		PhotoExtensions:  []string{".jpg"},
		DescriptorPolicy: config.DescriptorAbort,
		ElementTimeout:   time.Second,
		PaymentTimeout:   time.Second,
	}
}

func writeFolder(t *testing.T, root, name, descriptor string, photos int) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if descriptor != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "info.txt"), []byte(descriptor), 0o644))
	}
	for i := 1; i <= photos; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d.jpg", i)), []byte("jpg"), 0o644))
	}
}

func descriptor(agreementType, realEstateType int) string {
	return fmt.Sprintf(`{
		"productId": "16262020",
		"priceUSD": "1,500",
		"totalFloors": "8",
		"floor": "4",
		"bedrooms": 2,
		"rooms": 3,
		"area": "136.70 m²",
		"address": "Bakhtrioni street",
		"agreementType": "%d",
		"realEstateType": %d,
		"description": "Lorem ipsum"
	}`, agreementType, realEstateType)
}

// fakeSubmitter replays one scripted error per call for each folder; folders
// without a script publish on the first attempt.
type fakeSubmitter struct {
	script   map[string][]error
	calls    []string
	onSubmit func()
}

func (f *fakeSubmitter) Submit(_ context.Context, _ browser.Page, l *models.Listing, _ []string) error {
	f.calls = append(f.calls, l.Folder)
	if f.onSubmit != nil {
		f.onSubmit()
	}
	errs := f.script[l.Folder]
	if len(errs) == 0 {
		return nil
	}
	f.script[l.Folder] = errs[1:]
	return errs[0]
}

func newRunner(t *testing.T, cfg *config.Config, page browser.Page, sub Submitter) *BatchRunner {
	t.Helper()
	loader, err := storage.NewDescriptorLoader(cfg.DescriptorFile)
	require.NoError(t, err)
	return NewBatchRunner(cfg, newTestLogger(), page, loader, sub)
}

func TestRunPublishesFoldersInOrder(t *testing.T) {
	root := t.TempDir()
	writeFolder(t, root, "B", descriptor(1, 0), 0)
	writeFolder(t, root, "A", descriptor(0, 1), 3)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("not a listing"), 0o644))

	cfg := batchConfig()
	page := browsertest.NewPage()
	runner := newRunner(t, cfg, page, myhome.New(cfg, newTestLogger()))

	summary, err := runner.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "A", summary.Results[0].Folder)
	assert.Equal(t, "B", summary.Results[1].Folder)
	for _, r := range summary.Results {
		assert.Equal(t, models.StatusPublished, r.Status, r.Folder)
		assert.Equal(t, 1, r.Attempts)
		assert.Equal(t, summary.RunID, r.RunID)
	}
	assert.Equal(t, 3, summary.Results[0].Photos)
	assert.Equal(t, 0, summary.Results[1].Photos)
	assert.False(t, summary.Aborted)
	assert.NotEmpty(t, summary.RunID)

	// Every listing starts from a freshly loaded form and the run ends on
	// the overview page.
	var trail []string
	for _, a := range page.Actions() {
		switch a.Kind {
		case browsertest.KindNavigate:
			trail = append(trail, a.Target)
		case browsertest.KindClickNav:
			trail = append(trail, "publish")
		case browsertest.KindUpload:
			trail = append(trail, "upload")
		}
	}
	assert.Equal(t, []string{
		formURL, "upload", "upload", "upload", "publish",
		formURL, "publish",
		formURL, overviewURL,
	}, trail)
	assert.Equal(t, overviewURL, page.CurrentURL)
}

func TestRunStaysOnFormWhenAlreadyThere(t *testing.T) {
	root := t.TempDir()
	writeFolder(t, root, "A", descriptor(0, 0), 0)

	page := browsertest.NewPage()
	page.CurrentURL = formURL
	sub := &fakeSubmitter{}
	_, err := newRunner(t, batchConfig(), page, sub).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{formURL, overviewURL}, page.Targets(browsertest.KindNavigate))
}

func TestRunRetriesTimeoutsThenMovesOn(t *testing.T) {
	root := t.TempDir()
	writeFolder(t, root, "A", descriptor(0, 0), 0)
	writeFolder(t, root, "B", descriptor(0, 0), 0)

	slow := fmt.Errorf("wait for publish: %w", browser.ErrTimeout)
	sub := &fakeSubmitter{script: map[string][]error{
		"A": {slow, slow, slow, slow, slow},
	}}
	page := browsertest.NewPage()

	summary, err := newRunner(t, batchConfig(), page, sub).Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "A", "A", "A", "B"}, sub.calls)
	require.Len(t, summary.Results, 2)
	assert.Equal(t, models.StatusAbandoned, summary.Results[0].Status)
	assert.Equal(t, 4, summary.Results[0].Attempts)
	assert.Contains(t, summary.Results[0].Error, "timed out")
	assert.Equal(t, models.StatusPublished, summary.Results[1].Status)

	// initial, three retries, after A, after B, overview
	assert.Equal(t, []string{formURL, formURL, formURL, formURL, formURL, formURL, overviewURL},
		page.Targets(browsertest.KindNavigate))
}

func TestRunRecoversAfterOneTimeout(t *testing.T) {
	root := t.TempDir()
	writeFolder(t, root, "A", descriptor(0, 0), 0)

	sub := &fakeSubmitter{script: map[string][]error{"A": {browser.ErrTimeout}}}
	summary, err := newRunner(t, batchConfig(), browsertest.NewPage(), sub).Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, summary.Results[0].Status)
	assert.Equal(t, 2, summary.Results[0].Attempts)
}

func TestRunAbortsOnStructuralFailure(t *testing.T) {
	root := t.TempDir()
	writeFolder(t, root, "A", descriptor(0, 0), 0)
	writeFolder(t, root, "B", descriptor(0, 0), 0)

	broken := fmt.Errorf("publish: %w", browser.ErrNotFound)
	sub := &fakeSubmitter{script: map[string][]error{"A": {broken}}}
	page := browsertest.NewPage()

	summary, err := newRunner(t, batchConfig(), page, sub).Run(context.Background(), root)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrNotFound)

	assert.Equal(t, []string{"A"}, sub.calls, "no retry and no further folders")
	assert.True(t, summary.Aborted)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, models.StatusFailed, summary.Results[0].Status)
	assert.Equal(t, 1, summary.Results[0].Attempts)
	assert.Equal(t, overviewURL, page.CurrentURL)
}

func TestRunDescriptorPolicy(t *testing.T) {
	setup := func(t *testing.T) string {
		root := t.TempDir()
		writeFolder(t, root, "A", descriptor(0, 0), 0)
		writeFolder(t, root, "B", `{"address": "no deal type"`, 0)
		writeFolder(t, root, "C", "", 2)
		writeFolder(t, root, "D", descriptor(1, 1), 0)
		return root
	}

	t.Run("abort", func(t *testing.T) {
		sub := &fakeSubmitter{}
		page := browsertest.NewPage()
		summary, err := newRunner(t, batchConfig(), page, sub).Run(context.Background(), setup(t))

		assert.True(t, IsDescriptorError(err), "got %v", err)
		assert.Equal(t, []string{"A"}, sub.calls)
		require.Len(t, summary.Results, 2)
		assert.Equal(t, models.StatusFailed, summary.Results[1].Status)
		assert.Equal(t, overviewURL, page.CurrentURL)
	})

	t.Run("skip", func(t *testing.T) {
		cfg := batchConfig()
		cfg.DescriptorPolicy = config.DescriptorSkip
		sub := &fakeSubmitter{}
		summary, err := newRunner(t, cfg, browsertest.NewPage(), sub).Run(context.Background(), setup(t))

		require.NoError(t, err)
		assert.Equal(t, []string{"A", "D"}, sub.calls)
		var statuses []models.Status
		for _, r := range summary.Results {
			statuses = append(statuses, r.Status)
		}
		assert.Equal(t, []models.Status{
			models.StatusPublished, models.StatusSkipped, models.StatusSkipped, models.StatusPublished,
		}, statuses)
	})
}

func TestRunMissingRoot(t *testing.T) {
	page := browsertest.NewPage()
	summary, err := newRunner(t, batchConfig(), page, &fakeSubmitter{}).
		Run(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, summary.Aborted)
	assert.Empty(t, summary.Results)
	assert.Equal(t, overviewURL, page.CurrentURL)
}

func TestRunCancelledIsNotAbandoned(t *testing.T) {
	root := t.TempDir()
	writeFolder(t, root, "A", descriptor(0, 0), 0)
	writeFolder(t, root, "B", descriptor(0, 0), 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &fakeSubmitter{
		script:   map[string][]error{"A": {fmt.Errorf("wait: %w", context.DeadlineExceeded)}},
		onSubmit: cancel,
	}

	summary, err := newRunner(t, batchConfig(), browsertest.NewPage(), sub).Run(ctx, root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.True(t, summary.Aborted)
	assert.Equal(t, []string{"A"}, sub.calls)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, models.StatusFailed, summary.Results[0].Status)
}
