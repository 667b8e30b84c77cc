package main

import (
	"fmt"
	"io"
	"time"

	"graft/internal/driver"
	"graft/internal/observ"
	"graft/internal/pipeline"
)

func printStageTimings(out io.Writer, timings pipeline.Timings) {
	if out == nil {
		return
	}
	var printErr error
	if timings.Has(pipeline.StageLoad) {
		_, printErr = fmt.Fprintf(out, "loaded %.1f ms\n", toMillis(timings.Duration(pipeline.StageLoad)))
		if printErr != nil {
			panic(printErr)
		}
	}
	if timings.Has(pipeline.StageElaborate) {
		_, printErr = fmt.Fprintf(out, "elaborated %.1f ms\n", toMillis(timings.Duration(pipeline.StageElaborate)))
		if printErr != nil {
			panic(printErr)
		}
	}
	if timings.Has(pipeline.StageDiagnose) {
		_, printErr = fmt.Fprintf(out, "diagnosed %.1f ms\n", toMillis(timings.Duration(pipeline.StageDiagnose)))
		if printErr != nil {
			panic(printErr)
		}
	}
}

// printPhaseReports folds per-dump phase timers into one table.
func printPhaseReports(out io.Writer, results []*driver.Result) {
	reports := make([]observ.Report, 0, len(results))
	for _, r := range results {
		if r == nil || r.Timing == nil {
			continue
		}
		reports = append(reports, *r.Timing)
	}
	if len(reports) == 0 {
		return
	}
	fmt.Fprint(out, observ.MergeReports(reports...).Summary())
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
