package dumpfile

import (
	"runtime"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fractalqb/wikisnip"
)

// Job is one dump shard of a Batch.
type Job struct {
	// RunID identifies the job in diagnostics.
	RunID  string
	Input  string
	Output string
}

// Jobs creates one job per input writing its output into dir, see
// OutputName.
func Jobs(inputs []string, dir, suffix string) []Job {
	res := make([]Job, len(inputs))
	for i, in := range inputs {
		res[i] = Job{
			RunID:  uuid.NewString(),
			Input:  in,
			Output: OutputName(in, dir, suffix),
		}
	}
	return res
}

type Result struct {
	Job
	Stats wikisnip.Stats
	Err   error
}

// Batch filters several dump shards concurrently with the same
// Filter settings. Each shard gets a run of its own. Filter.OnSelect must
// be safe for concurrent use, Filter.OnProgress is replaced by the
// Batch's OnProgress.
type Batch struct {
	Filter wikisnip.Filter
	// Limit is the maximum number of concurrent runs. Defaults to the
	// number of CPUs.
	Limit      int
	OnProgress func(Job, wikisnip.Progress)
	// OnDone is called when a job completes, successfully or not.
	OnDone func(Result)
}

// Run runs all jobs. The results are in the order of jobs. The error is
// the first error of any job; other jobs are not stopped by it.
func (b *Batch) Run(jobs []Job) ([]Result, error) {
	limit := b.Limit
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	var grp errgroup.Group
	grp.SetLimit(limit)
	res := make([]Result, len(jobs))
	for i := range jobs {
		i := i
		grp.Go(func() error {
			job := jobs[i]
			f := b.Filter
			f.OnProgress = nil
			if b.OnProgress != nil {
				f.OnProgress = func(p wikisnip.Progress) { b.OnProgress(job, p) }
			}
			stats, err := FilterFile(&f, job.Input, job.Output)
			res[i] = Result{Job: job, Stats: stats, Err: err}
			if b.OnDone != nil {
				b.OnDone(res[i])
			}
			return err
		})
	}
	err := grp.Wait()
	return res, err
}
