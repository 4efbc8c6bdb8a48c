// A command line tool to extract pages from MediaWiki XML dumps
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fractalqb/wikisnip"
)

var rootCmd = struct {
	cobra.Command
	cfgFile string
	cfg     *viper.Viper
	log     *slog.Logger
	logFile io.Closer
}{
	Command: cobra.Command{
		Use:   "wikisnip",
		Short: "Extract pages from MediaWiki XML dumps",
		Long: `wikisnip copies selected pages from a MediaWiki XML dump into a new,
smaller dump. Pages are selected by their page id. The dump's <siteinfo>
is kept.

Dumps may be compressed with bzip2 (.bz2), gzip (.gz) or zstd (.zst).
Outputs are compressed if their name ends with .gz or .zst.

Settings can also be given in a YAML config file or in environment
variables with prefix WIKISNIP_, e.g. WIKISNIP_PROGRESS=5000.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootCmd.cfgFile, "config", "",
		"config file (default: ./wikisnip.yaml or ~/.config/wikisnip/wikisnip.yaml)")
	pf.String("log", "",
		"append diagnostics to this file instead of writing them to stderr")
	pf.String("log-level", "info",
		"diagnostic level: debug, info, warn or error")
	pf.Int("progress", wikisnip.DefaultProgressEvery,
		"report progress every this many pages")
	pf.Int("max-line", wikisnip.DefaultMaxLineSize>>20,
		"maximum length of a dump line in MiB")
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentPostRunE = teardown
}

func setup(cmd *cobra.Command, args []string) (err error) {
	if rootCmd.cfg, err = loadConfig(cmd, rootCmd.cfgFile); err != nil {
		return err
	}
	rootCmd.log, rootCmd.logFile, err = newLogger(rootCmd.cfg)
	return err
}

func teardown(cmd *cobra.Command, args []string) error {
	if rootCmd.logFile != nil {
		return rootCmd.logFile.Close()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "ERROR")
	fmt.Fprintf(os.Stderr, " %s: %s\n", errorKind(err), err)
	os.Exit(1)
}

func errorKind(err error) string {
	var (
		serr wikisnip.StructureError
		ierr wikisnip.IDError
		lerr wikisnip.IDListError
		perr *os.PathError
	)
	switch {
	case errors.Is(err, wikisnip.ErrMalformedTag):
		return "classification error"
	case errors.As(err, &serr):
		return "structural error"
	case errors.As(err, &ierr):
		return "page id error"
	case errors.As(err, &lerr):
		return "id list error"
	case errors.As(err, &perr):
		return "i/o error"
	}
	return "error"
}
