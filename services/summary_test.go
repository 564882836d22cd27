package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"myhome-publisher/models"
)

func sampleRun() *models.RunSummary {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	at := func(s int) time.Time { return start.Add(time.Duration(s) * time.Second) }
	return &models.RunSummary{
		RunID:     "run-1",
		StartedAt: start,
		Results: []*models.SubmissionResult{
			{Folder: "A", Status: models.StatusPublished, Attempts: 1, Photos: 3, StartedAt: at(0), FinishedAt: at(40)},
			{Folder: "B", Status: models.StatusAbandoned, Attempts: 4, Error: "browser: timed out", StartedAt: at(40), FinishedAt: at(200)},
			{Folder: "C", Status: models.StatusPublished, Attempts: 2, Photos: 12, StartedAt: at(200), FinishedAt: at(280)},
			{Folder: "D", Status: models.StatusSkipped, Error: "descriptor: missing", StartedAt: at(280), FinishedAt: at(280)},
		},
		FinishedAt: at(290),
	}
}

func TestSummaryCounts(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(sampleRun())
	if r.Total != 4 {
		t.Errorf("Total: got %d, want 4", r.Total)
	}
	if r.Published != 2 || r.Abandoned != 1 || r.Skipped != 1 || r.Failed != 0 {
		t.Errorf("counts: got %d/%d/%d/%d", r.Published, r.Abandoned, r.Skipped, r.Failed)
	}
	if r.Photos != 15 {
		t.Errorf("Photos: got %d, want 15", r.Photos)
	}
}

func TestSummaryTiming(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(sampleRun())
	if r.AvgPublish != 60*time.Second {
		t.Errorf("AvgPublish: got %v, want 60s", r.AvgPublish)
	}
	if r.Slowest == nil || r.Slowest.Folder != "C" {
		t.Fatalf("Slowest: got %+v, want C", r.Slowest)
	}
	if r.Elapsed != 290*time.Second {
		t.Errorf("Elapsed: got %v", r.Elapsed)
	}
}

func TestSummaryProblems(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(sampleRun())
	if len(r.Problems) != 2 {
		t.Fatalf("Problems: got %d, want 2", len(r.Problems))
	}
	if r.Problems[0].Folder != "B" || r.Problems[1].Folder != "D" {
		t.Errorf("Problems order: got %s, %s", r.Problems[0].Folder, r.Problems[1].Folder)
	}
}

func TestSummaryEmpty(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	r := svc.Generate(&models.RunSummary{})
	if r.Total != 0 || r.Slowest != nil || r.AvgPublish != 0 {
		t.Errorf("empty run should produce an empty report, got %+v", r)
	}
	if nilReport := svc.Generate(nil); nilReport.Total != 0 {
		t.Errorf("nil run: got %+v", nilReport)
	}
}

func TestSummaryPrint(t *testing.T) {
	svc := NewSummaryService(newTestLogger())
	run := sampleRun()
	run.Aborted = true

	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(run))
	out := buf.String()

	for _, want := range []string{"run-1", "Published", "abandoned", "descriptor: missing", "aborted"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short: got %q", got)
	}
	if got := truncate("ვაჟა-ფშაველას გამზირი", 8); got != "ვაჟა-..." {
		t.Errorf("truncate runes: got %q", got)
	}
}
