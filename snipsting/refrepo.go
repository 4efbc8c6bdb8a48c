// Package snipsting supports testing filter output against reference
// files in your Go tests.
//
// Example compares with the reference file testdata/TestFilter.xml:
//
//	func TestFilter(t *testing.T) {
//		var out bytes.Buffer
//		f := wikisnip.Filter{Select: wikisnip.NewIDSet(10, 12)}
//		if _, err := f.Run(&out, dump); err != nil {
//			t.Fatal(err)
//		}
//		snipsting.Fatal(t, "", &out)
//	}
//
// References are compared line by line including the line separators.
package snipsting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/fractalqb/wikisnip"
)

// When this environment variable is set to a regexp and the name of the current
// test matches calls to Error or Fatal will record the subj as new reference
// data instead of comparing it. E.g.
//
//	WIKISNIP_RECORD=TestRecording go test .
const RecordEnv = "WIKISNIP_RECORD"

// GoTestdataDir is the name of Go's default directory for testdata (see go help
// test).
const GoTestdataDir = "testdata"

func Error(t *testing.T, hint string, subj io.Reader) error {
	return defaultConfig.Error(t, hint, subj)
}

func Fatal(t *testing.T, hint string, subj io.Reader) {
	defaultConfig.Fatal(t, hint, subj)
}

func Record(t *testing.T, hint string, subj io.Reader) {
	defaultConfig.Record(t, hint, subj)
}

type RefRepo struct {
	Dir    string
	Suffix string
}

const (
	StdSuffix = ".xml"
	NoSuffix  = "\x00"
)

func (rr RefRepo) Filename(t *testing.T, hint string) string {
	suffix := rr.Suffix
	switch suffix {
	case "":
		suffix = StdSuffix
	case NoSuffix:
		suffix = ""
	}
	if hint == "" {
		return filepath.Join(rr.Dir, t.Name()+suffix)
	}
	if suffix == "" || strings.HasSuffix(hint, suffix) {
		return filepath.Join(rr.Dir, t.Name(), hint)
	}
	return filepath.Join(rr.Dir, t.Name(), hint+suffix)
}

type Config struct {
	RefFileName     func(t *testing.T, hint string) string
	MismatchLimit   int
	RecordOverwrite bool
	KeepSubject     bool
}

var defaultConfig = Config{
	RefFileName:     RefRepo{Dir: GoTestdataDir}.Filename,
	MismatchLimit:   1,
	RecordOverwrite: false,
	KeepSubject:     true,
}

func (cfg Config) Error(t *testing.T, hint string, subj io.Reader) error {
	if recordTest(t) {
		cfg.Record(t, hint, subj)
		return nil
	}
	err := cfg.compare(t, hint, subj)
	if err != nil {
		t.Error(err)
	}
	return err
}

func (cfg Config) Fatal(t *testing.T, hint string, subj io.Reader) {
	if recordTest(t) {
		cfg.Record(t, hint, subj)
		return
	}
	if err := cfg.compare(t, hint, subj); err != nil {
		t.Fatal(err)
	}
}

func recordTest(t *testing.T) bool {
	rec := os.Getenv(RecordEnv)
	if rec == "" {
		return false
	}
	r, err := regexp.Compile(rec)
	if err != nil {
		t.Logf("snipsting: invalid regexp '%s' in %s, not recording: %s", rec, RecordEnv, err)
		return false
	}
	return r.MatchString(t.Name())
}

// MismatchCount is returned when subject and reference differ.
type MismatchCount int

func (mc MismatchCount) Error() string {
	return fmt.Sprintf("%d mismatches", mc)
}

// MismatchFunc is called for each line that differs. The line texts
// include their separators. A nil text means the line is missing.
type MismatchFunc func(lno int, ref, subj []byte)

// Compare compares subj to ref line by line. It stops after limit
// mismatches if limit > 0.
func Compare(ref, subj io.Reader, limit int, onMismatch MismatchFunc) (int, error) {
	rlr := wikisnip.NewLineReader(ref, 0)
	slr := wikisnip.NewLineReader(subj, 0)
	misses, lno := 0, 0
	for {
		rok, sok := rlr.Next(), slr.Next()
		if !rok && !sok {
			break
		}
		lno++
		if rok && sok &&
			bytes.Equal(rlr.Line(), slr.Line()) &&
			bytes.Equal(rlr.Sep(), slr.Sep()) {
			continue
		}
		misses++
		if onMismatch != nil {
			onMismatch(lno, fullLine(rlr, rok), fullLine(slr, sok))
		}
		if limit > 0 && misses >= limit {
			break
		}
	}
	if err := rlr.Err(); err != nil {
		return misses, fmt.Errorf("reference: %w", err)
	}
	if err := slr.Err(); err != nil {
		return misses, fmt.Errorf("subject: %w", err)
	}
	return misses, nil
}

func fullLine(lr *wikisnip.LineReader, ok bool) []byte {
	if !ok {
		return nil
	}
	res := make([]byte, 0, len(lr.Line())+len(lr.Sep()))
	return append(append(res, lr.Line()...), lr.Sep()...)
}

func (cfg *Config) compare(t *testing.T, hint string, subj io.Reader) (err error) {
	reffile := cfg.RefFileName(t, hint)
	if _, err := os.Stat(reffile); os.IsNotExist(err) {
		t.Logf("to record a references file run '%[1]s=%[2]s go test -run %[2]s'",
			RecordEnv,
			t.Name(),
		)
		return fmt.Errorf("reference file %s does not exists", reffile)
	}
	ref, err := os.Open(reffile)
	if err != nil {
		return err
	}
	defer ref.Close()
	if cfg.KeepSubject {
		keepfile := strings.TrimSuffix(reffile, filepath.Ext(reffile))
		var k *os.File
		k, err = os.CreateTemp(filepath.Dir(keepfile), filepath.Base(keepfile)+".")
		if err != nil {
			return err
		}
		defer func() {
			k.Close()
			if err == nil {
				os.Remove(k.Name())
			}
		}()
		subj = io.TeeReader(subj, k)
	}
	misses, err := Compare(ref, subj, cfg.MismatchLimit, MismatchError(t, hint))
	if cfg.KeepSubject {
		io.Copy(io.Discard, subj)
	}
	switch {
	case err != nil:
		return err
	case misses > 0:
		return MismatchCount(misses)
	}
	return nil
}

func (cfg Config) Record(t *testing.T, hint string, subj io.Reader) {
	reffile := cfg.RefFileName(t, hint)
	if _, err := os.Stat(reffile); !os.IsNotExist(err) && !cfg.RecordOverwrite {
		t.Fatalf("TestRecord: reference file '%s' already exists", reffile)
	}
	dir := filepath.Dir(reffile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = os.MkdirAll(dir, 0777); err != nil {
			t.Fatal(err)
		}
	}
	wr, err := os.Create(reffile)
	if err != nil {
		t.Fatal(err)
	}
	defer wr.Close()
	if _, err = io.Copy(wr, subj); err != nil {
		t.Error(err)
	}
	t.Errorf("snipsting recorder wrote: %s", reffile)
}

func MismatchError(t *testing.T, hint string) MismatchFunc {
	if hint == "" {
		hint = "subject"
	}
	return func(ln int, ref, subj []byte) {
		lnstr := strconv.Itoa(ln)
		t.Errorf("%s:%s %s", hint, lnstr, quoteLine(subj))
		pad := strings.Repeat(" ", len(hint)+len(lnstr))
		t.Logf("%s ref %s", pad, quoteLine(ref))
	}
}

func quoteLine(l []byte) string {
	if l == nil {
		return "<missing>"
	}
	return strconv.Quote(string(l))
}
