package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fractalqb/wikisnip"
	"github.com/fractalqb/wikisnip/dumpfile"
)

func init() {
	batchCmd.RunE = batchDumps
	flags := batchCmd.Flags()
	flags.StringVarP(&batchCmd.ids,
		"ids", "i", "",
		"Set the id list file")
	batchCmd.MarkFlagRequired("ids")
	flags.StringP("out-dir", "d", ".",
		"Set the directory for output files")
	flags.String("suffix", ".snip.xml",
		"Set the suffix of output file names, e.g. .snip.xml.gz to compress")
	flags.IntP("jobs", "j", 0,
		"Set the maximum number of shards filtered at the same time (default: number of CPUs)")
	flags.BoolVarP(&batchCmd.summary,
		"summary", "s", false,
		"Print a YAML summary of all runs")
	rootCmd.AddCommand(&batchCmd.Command)
}

var batchCmd = struct {
	cobra.Command
	ids     string
	summary bool
}{
	Command: cobra.Command{
		Use:   "batch --ids IDLIST INPUT...",
		Short: "Filter several dump shards concurrently",
		Long: `Filter several dump shards concurrently with the same id list.

Each INPUT is filtered into a file of its own in the output directory.
The output name is the INPUT's base name without compression suffix and
.xml extension followed by the output suffix.`,
		Args: cobra.MinimumNArgs(1),
	},
}

func batchDumps(cmd *cobra.Command, inputs []string) error {
	log, cfg := rootCmd.log, rootCmd.cfg
	outDir := cfg.GetString("out-dir")
	jobs := dumpfile.Jobs(inputs, outDir, cfg.GetString("suffix"))
	seen := make(map[string]string)
	for _, job := range jobs {
		if in, ok := seen[job.Output]; ok {
			return fmt.Errorf("inputs %s and %s both write %s", in, job.Input, job.Output)
		}
		seen[job.Output] = job.Input
	}
	ids, err := dumpfile.LoadIDs(batchCmd.ids)
	if err != nil {
		return err
	}
	log.Info("loaded id list", "file", batchCmd.ids, "ids", len(ids))
	if err = os.MkdirAll(outDir, 0777); err != nil {
		return err
	}
	b := dumpfile.Batch{
		Filter: newFilter(cfg),
		Limit:  cfg.GetInt("jobs"),
		OnProgress: func(job dumpfile.Job, p wikisnip.Progress) {
			logProgress(log, p, "run", job.RunID)
		},
		OnDone: func(res dumpfile.Result) {
			if res.Err != nil {
				log.Error("shard failed", "run", res.RunID, "input", res.Input, "err", res.Err)
				return
			}
			log.Info("shard done",
				"run", res.RunID,
				"input", res.Input,
				"pages", res.Stats.Pages,
				"matches", res.Stats.Hits,
				"elapsed", res.Stats.Elapsed,
			)
		},
	}
	b.Filter.Select = ids
	for _, job := range jobs {
		log.Debug("shard queued", "run", job.RunID, "input", job.Input, "output", job.Output)
	}
	results, err := b.Run(jobs)
	if batchCmd.summary {
		runs := make([]summary, len(results))
		for i, res := range results {
			runs[i] = newSummary(res.RunID, res.Input, res.Output, res.Stats, res.Err)
		}
		if serr := writeSummary(os.Stdout, runs); serr != nil && err == nil {
			err = serr
		}
	}
	return err
}
