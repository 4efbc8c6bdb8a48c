package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fractalqb/wikisnip"
	"github.com/fractalqb/wikisnip/dumpfile"
)

func init() {
	filterCmd.RunE = filterDump
	filterCmd.Flags().StringVarP(&filterCmd.titles,
		"titles", "t", "",
		"Write id and title of each selected page to this file")
	filterCmd.Flags().BoolVarP(&filterCmd.summary,
		"summary", "s", false,
		"Print a YAML summary of the run")
	rootCmd.AddCommand(&filterCmd.Command)
}

var filterCmd = struct {
	cobra.Command
	titles  string
	summary bool
}{
	Command: cobra.Command{
		Use:   "filter INPUT OUTPUT [IDLIST]",
		Short: "Copy the pages listed in IDLIST from dump INPUT to OUTPUT",
		Long: `Copy the pages listed in IDLIST from dump INPUT to OUTPUT.

IDLIST is a CSV file (TSV if its name ends with .tsv) with one header
line. The first field of each following line is a page id. Without
IDLIST all pages are copied. Use - as INPUT or OUTPUT for stdin and
stdout.`,
		Args: cobra.RangeArgs(2, 3),
	},
}

func filterDump(cmd *cobra.Command, args []string) (err error) {
	log := rootCmd.log
	input, output := args[0], args[1]
	flt := newFilter(rootCmd.cfg)
	if len(args) > 2 {
		ids, err := dumpfile.LoadIDs(args[2])
		if err != nil {
			return err
		}
		log.Info("loaded id list", "file", args[2], "ids", len(ids))
		flt.Select = ids
	}
	if filterCmd.titles != "" {
		var tw *titleWriter
		if tw, err = openTitles(filterCmd.titles, &flt); err != nil {
			return err
		}
		defer func() {
			if cerr := tw.Close(); err == nil && cerr != nil {
				err = cerr
			}
		}()
	}
	flt.OnProgress = func(p wikisnip.Progress) { logProgress(log, p) }
	log.Info("filter dump", "input", input, "output", output)
	stats, err := dumpfile.FilterFile(&flt, input, output)
	if filterCmd.summary {
		var w io.Writer = os.Stdout
		if output == dumpfile.StdStream {
			w = os.Stderr
		}
		if serr := writeSummary(w, []summary{
			newSummary("", input, output, stats, err),
		}); serr != nil && err == nil {
			err = serr
		}
	}
	if err != nil {
		return err
	}
	log.Info("filter done",
		"pages", stats.Pages,
		"matches", stats.Hits,
		"lines", stats.Lines,
		"elapsed", stats.Elapsed,
	)
	return nil
}

type titleWriter struct {
	file io.WriteCloser
	wr   *bufio.Writer
	err  error
}

// openTitles makes flt write the title of each selected page to file.
func openTitles(file string, flt *wikisnip.Filter) (*titleWriter, error) {
	f, err := dumpfile.Create(file)
	if err != nil {
		return nil, err
	}
	tw := &titleWriter{file: f, wr: bufio.NewWriter(f)}
	flt.OnSelect = func(id uint64, title string) {
		if tw.err == nil {
			_, tw.err = fmt.Fprintf(tw.wr, "%d\t%s\n", id, title)
		}
	}
	return tw, nil
}

func (tw *titleWriter) Close() error {
	err := tw.err
	if ferr := tw.wr.Flush(); err == nil {
		err = ferr
	}
	if cerr := tw.file.Close(); err == nil {
		err = cerr
	}
	return err
}
