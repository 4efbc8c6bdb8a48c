package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fractalqb/wikisnip"
)

// loadConfig layers flags over environment over config file.
func loadConfig(cmd *cobra.Command, cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("WIKISNIP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("wikisnip")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/wikisnip")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

func newLogger(v *viper.Viper) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return nil, nil, fmt.Errorf("log-level: %w", err)
	}
	var (
		w   io.Writer = os.Stderr
		cls io.Closer
	)
	if name := v.GetString("log"); name != "" {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return nil, nil, err
		}
		w, cls = f, f
	}
	log := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return log, cls, nil
}

func newFilter(v *viper.Viper) wikisnip.Filter {
	return wikisnip.Filter{
		ProgressEvery: v.GetInt("progress"),
		MaxLineSize:   v.GetInt("max-line") << 20,
	}
}

func logProgress(log *slog.Logger, p wikisnip.Progress, attrs ...any) {
	log.Info("progress", append(attrs,
		"pages", p.Pages,
		"matches", p.Hits,
		"id", p.ID,
		"title", p.Title,
		"elapsed", p.Elapsed.Round(time.Second),
	)...)
}

type summary struct {
	RunID       string `yaml:"run,omitempty"`
	Input       string `yaml:"input"`
	Output      string `yaml:"output"`
	Pages       uint64 `yaml:"pages"`
	Hits        uint64 `yaml:"hits"`
	Lines       int    `yaml:"lines"`
	PeakPending int    `yaml:"peak_pending_bytes"`
	Elapsed     string `yaml:"elapsed"`
	Error       string `yaml:"error,omitempty"`
}

func newSummary(runID, input, output string, stats wikisnip.Stats, err error) summary {
	s := summary{
		RunID:       runID,
		Input:       input,
		Output:      output,
		Pages:       stats.Pages,
		Hits:        stats.Hits,
		Lines:       stats.Lines,
		PeakPending: stats.PeakPending,
		Elapsed:     stats.Elapsed.Round(time.Millisecond).String(),
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func writeSummary(w io.Writer, runs []summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return err
	}
	return enc.Close()
}
