package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"myhome-publisher/models"
	"myhome-publisher/utils"
)

// RunReport is the digest of one batch run printed at the end.
type RunReport struct {
	RunID      string
	Total      int
	Published  int
	Abandoned  int
	Skipped    int
	Failed     int
	Photos     int
	Aborted    bool
	Elapsed    time.Duration
	AvgPublish time.Duration
	Slowest    *models.SubmissionResult
	Problems   []*models.SubmissionResult
}

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

func (s *SummaryService) Generate(run *models.RunSummary) *RunReport {
	report := &RunReport{}
	if run == nil {
		return report
	}

	report.RunID = run.RunID
	report.Total = len(run.Results)
	report.Aborted = run.Aborted
	report.Elapsed = run.FinishedAt.Sub(run.StartedAt)
	report.Published = run.Count(models.StatusPublished)
	report.Abandoned = run.Count(models.StatusAbandoned)
	report.Skipped = run.Count(models.StatusSkipped)
	report.Failed = run.Count(models.StatusFailed)

	var publishTime time.Duration
	for _, r := range run.Results {
		if r.Status != models.StatusPublished {
			report.Problems = append(report.Problems, r)
			continue
		}
		report.Photos += r.Photos
		publishTime += r.Duration()
		if report.Slowest == nil || r.Duration() > report.Slowest.Duration() {
			report.Slowest = r
		}
	}
	if report.Published > 0 {
		report.AvgPublish = (publishTime / time.Duration(report.Published)).Round(time.Millisecond)
	}

	return report
}

func (s *SummaryService) Print(w io.Writer, r *RunReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  MYHOME PUBLISH RUN %s\033[0m\n", r.RunID)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Listings attempted : \033[1m%d\033[0m\n", r.Total)
	fmt.Fprintf(w, "  Published          : \033[1;32m%d\033[0m\n", r.Published)
	fmt.Fprintf(w, "  Abandoned          : \033[1;33m%d\033[0m\n", r.Abandoned)
	fmt.Fprintf(w, "  Skipped            : \033[1;33m%d\033[0m\n", r.Skipped)
	fmt.Fprintf(w, "  Failed             : \033[1;31m%d\033[0m\n", r.Failed)
	fmt.Fprintf(w, "  Photos uploaded    : %d\n", r.Photos)
	fmt.Fprintf(w, "  Elapsed            : %v\n", r.Elapsed.Round(time.Second))
	if r.Aborted {
		fmt.Fprintf(w, "  \033[1;31mBatch aborted before the last folder\033[0m\n")
	}
	fmt.Fprintln(w)

	// Timing
	if r.Slowest != nil {
		fmt.Fprintf(w, "\033[1;33m  Timing\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  Average per listing : %v\n", r.AvgPublish)
		fmt.Fprintf(w, "  Slowest             : %s (%v)\n",
			truncate(r.Slowest.Folder, 30), r.Slowest.Duration().Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	// Problems
	fmt.Fprintf(w, "\033[1;33m  Not published\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Problems) == 0 {
		fmt.Fprintf(w, "  Nothing, every listing went through\n")
	} else {
		for _, p := range r.Problems {
			fmt.Fprintf(w, "  %-24s %-9s x%d  %s\n",
				truncate(p.Folder, 24), p.Status, p.Attempts, truncate(p.Error, 60))
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
