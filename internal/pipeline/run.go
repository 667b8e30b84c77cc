package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"graft/internal/driver"
)

// Request configures a progress-reporting check run over a set of dumps.
type Request struct {
	// Paths are the elaboration dumps to check, already discovered and
	// sorted by the caller (driver.ListDumps).
	Paths   []string
	Options driver.CheckOptions
	Jobs    int
	// Progress receives per-dump events; nil disables reporting.
	Progress ProgressSink
}

// Result captures per-dump check results and stage timings.
type Result struct {
	// Results is index-aligned with Request.Paths. Entries stay nil for
	// dumps that never ran because an earlier infrastructure error
	// cancelled the run.
	Results []*driver.Result
	Timings Timings
}

// HasErrors reports whether any checked dump produced error diagnostics.
func (r Result) HasErrors() bool {
	for _, res := range r.Results {
		if res != nil && res.Bag.HasErrors() {
			return true
		}
	}
	return false
}

// Run checks every dump in the request, reporting progress per dump.
// Unlike driver.CheckMany it attaches a phase observer to each check,
// so a UI can follow the load/elaborate/diagnose stages as they happen.
// A PhaseObserver already set in Options keeps firing alongside it.
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing pipeline request")
	}
	if len(req.Paths) == 0 {
		return result, nil
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	emitQueued(req.Progress, req.Paths)

	result.Results = make([]*driver.Result, len(req.Paths))
	observers := make([]*phaseObserver, len(req.Paths))
	userObserver := req.Options.PhaseObserver

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(req.Paths)))

	for i, path := range req.Paths {
		g.Go(func(i int, path string) func() error {
			return func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				ob := &phaseObserver{sink: req.Progress, dump: path}
				observers[i] = ob

				opts := req.Options
				opts.PhaseObserver = ob.OnPhase
				if userObserver != nil {
					opts.PhaseObserver = func(ev driver.PhaseEvent) {
						ob.OnPhase(ev)
						userObserver(ev)
					}
				}

				start := time.Now()
				res, err := driver.Check(gctx, path, opts)
				if err != nil {
					ob.emit(ob.lastStage(), StatusError, err, time.Since(start))
					return fmt.Errorf("%s: %w", path, err)
				}

				result.Results[i] = res
				ob.emit(StageDiagnose, StatusDone, nil, time.Since(start))
				return nil
			}
		}(i, path))
	}

	err := g.Wait()

	// Суммируем длительности стадий по всем дампам. Наблюдатели пишутся
	// каждый своей горутиной, после Wait читать безопасно.
	var load, elaborate, diagnose time.Duration
	for _, ob := range observers {
		if ob == nil {
			continue
		}
		load += ob.load
		diagnose += ob.diagnose
		// Раунды диагностики идут внутри elaborate, вычитаем их.
		if d := ob.elaborate - ob.diagnose; d > 0 {
			elaborate += d
		}
	}
	result.Timings.Set(StageLoad, load)
	result.Timings.Set(StageElaborate, elaborate)
	result.Timings.Set(StageDiagnose, diagnose)

	return result, err
}

// phaseObserver translates driver phase events for one dump into
// progress events and accumulates per-stage durations.
type phaseObserver struct {
	sink ProgressSink
	dump string

	loadStarted bool
	elabStarted bool
	diagStarted bool

	load      time.Duration
	elaborate time.Duration
	diagnose  time.Duration
}

// OnPhase runs on the goroutine checking the observer's dump.
func (p *phaseObserver) OnPhase(ev driver.PhaseEvent) {
	if p == nil {
		return
	}
	switch ev.Status {
	case driver.PhaseStart:
		switch ev.Name {
		case "load_dump":
			if p.loadStarted {
				return
			}
			p.loadStarted = true
			p.emit(StageLoad, StatusWorking, nil, 0)
		case "elaborate":
			if p.elabStarted {
				return
			}
			p.elabStarted = true
			p.emit(StageElaborate, StatusWorking, nil, 0)
		case "diagnose":
			if p.diagStarted {
				return
			}
			p.diagStarted = true
			p.emit(StageDiagnose, StatusWorking, nil, 0)
		}
	case driver.PhaseEnd:
		switch ev.Name {
		case "load_dump":
			p.load += ev.Elapsed
		case "elaborate":
			p.elaborate += ev.Elapsed
		case "diagnose":
			p.diagnose += ev.Elapsed
		}
	}
}

// lastStage returns the deepest stage that was started, for error events.
func (p *phaseObserver) lastStage() Stage {
	switch {
	case p.diagStarted:
		return StageDiagnose
	case p.elabStarted:
		return StageElaborate
	default:
		return StageLoad
	}
}

func (p *phaseObserver) emit(stage Stage, status Status, err error, elapsed time.Duration) {
	if p.sink == nil {
		return
	}
	p.sink.OnEvent(Event{Dump: p.dump, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
}

func emitQueued(sink ProgressSink, paths []string) {
	if sink == nil {
		return
	}
	for _, path := range paths {
		sink.OnEvent(Event{Dump: path, Stage: StageLoad, Status: StatusQueued})
	}
}
